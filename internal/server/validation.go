package server

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"outsider/internal/game"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	maxNameLength  = 20
	maxGuessLength = 64
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		// Report JSON names from FieldError.Field; messages key on StructField.
		engine.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = engine.RegisterValidation("playername", func(fl validator.FieldLevel) bool {
			_, err := validateName(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
			return game.ValidCode(fl.Field().String())
		})
		_ = engine.RegisterValidation("roundminutes", func(fl validator.FieldLevel) bool {
			minutes, ok := fl.Field().Interface().(game.Minutes)
			return ok && minutes.Validate() == nil
		})
	})
}

func validateName(name string) (string, error) {
	return validateText("name", name, maxNameLength)
}

// guessName keeps a guess exactly as typed apart from surrounding space.
// Catalog names always pass; anything else only has to fit in the room's
// echo of it.
func (s *Server) guessName(raw string) (string, bool) {
	guess := strings.TrimSpace(raw)
	if guess == "" {
		return "", false
	}
	if _, ok := s.catalog.Lookup(guess); ok {
		return guess, true
	}
	return guess, utf8.RuneCountInString(guess) <= maxGuessLength
}

func validateText(label, text string, maxLen int) (string, error) {
	trimmed := normalizeText(text)
	if trimmed == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return "", fmt.Errorf("%s must be %d characters or fewer", label, maxLen)
	}
	if !isSafeText(trimmed) {
		return "", fmt.Errorf("%s contains unsupported characters", label)
	}
	return trimmed, nil
}

func normalizeText(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	return strings.Join(fields, " ")
}

func isSafeText(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		switch r {
		case ' ', '-', '_', '\'', '.', ',', '!', '?', '&', '(', ')':
			continue
		default:
			return false
		}
	}
	return true
}
