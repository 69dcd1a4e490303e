package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"outsider/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type createRoomRequest struct {
	RoundDurationMinutes *game.Minutes `json:"roundDurationMinutes" binding:"omitempty,roundminutes"`
	// Older clients send gameDurationMinutes.
	GameDurationMinutes *game.Minutes `json:"gameDurationMinutes" binding:"omitempty,roundminutes"`
}

type validateRoomRequest struct {
	RoomCode string `json:"roomCode" binding:"required"`
}

var createRoomMessages = bindMessages{
	"RoundDurationMinutes": {"roundminutes": "Round duration must be 1-60 minutes or unlimited"},
	"GameDurationMinutes":  {"roundminutes": "Round duration must be 1-60 minutes or unlimited"},
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   bindErrorMessage(err, createRoomMessages, `Round duration must be a number of minutes or "unlimited"`),
		})
		return
	}
	minutes := game.Minutes(s.cfg.DefaultRoundMinutes)
	switch {
	case req.RoundDurationMinutes != nil:
		minutes = *req.RoundDurationMinutes
	case req.GameDurationMinutes != nil:
		minutes = *req.GameDurationMinutes
	}
	code := s.dir.CreateRoom(minutes.Duration())
	s.history.RoomCreated(code, minutes, time.Now().UTC())
	log.Info().Str("room", code).Int("minutes", int(minutes)).Msg("room created")
	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"roomCode":             code,
		"roundDurationMinutes": minutes,
	})
}

func (s *Server) handleValidateRoom(c *gin.Context) {
	var req validateRoomRequest
	if !bindJSON(c, &req, nil, "Room code is required") {
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.RoomCode))
	var (
		phase   game.Phase
		players []game.PlayerView
	)
	err := s.dir.UpdateRoom(code, func(room *game.Room) error {
		snap := room.Snapshot()
		phase = snap.Phase
		players = snap.Players
		return nil
	})
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Room not found"})
		return
	}
	if phase != game.PhaseWaiting {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Game already in progress"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"roomCode": code,
		"players":  players,
	})
}

func (s *Server) handleScenarios(c *gin.Context) {
	key := "scenarios"
	if strings.HasSuffix(c.FullPath(), "/locations") {
		key = "locations"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		key:       s.catalog.Names(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.dir.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"rooms":       stats.Rooms,
		"connections": stats.Connections,
		"timers":      s.activeTimers(),
	})
}
