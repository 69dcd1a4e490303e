package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindMessages maps a Go struct field name and a failed validation tag to
// the text shown to the client.
type bindMessages map[string]map[string]string

// describe returns the message for the first failed field that has one.
func (m bindMessages) describe(verrs validator.ValidationErrors) (string, bool) {
	for _, verr := range verrs {
		if msg := m[verr.StructField()][verr.Tag()]; msg != "" {
			return msg, true
		}
	}
	return "", false
}

func bindJSON(c *gin.Context, req any, messages bindMessages, fallback string) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": bindErrorMessage(err, messages, fallback)})
	return false
}

// bindErrorMessage picks a described message when one exists, then the
// caller's fallback. Without a fallback a validation failure names the JSON
// field that failed.
func bindErrorMessage(err error, messages bindMessages, fallback string) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return orDefault(fallback)
	}
	if msg, ok := messages.describe(verrs); ok {
		return msg
	}
	if fallback != "" {
		return fallback
	}
	return fmt.Sprintf("%s is invalid", verrs[0].Field())
}

func orDefault(fallback string) string {
	if fallback == "" {
		return "invalid request"
	}
	return fallback
}
