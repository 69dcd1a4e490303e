package server

import (
	"net/http"
	"slices"
	"sync"

	"outsider/internal/config"
	"outsider/internal/game"
	"outsider/internal/logging"
	"outsider/internal/scenario"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Server struct {
	dir      *game.Directory
	catalog  *scenario.Catalog
	cfg      config.Config
	hub      *hub
	history  *Recorder
	upgrader websocket.Upgrader
	newID    func() string
	timersMu sync.Mutex
	timers   map[string]*roundTimer
}

// New wires the gateway to a directory. history may be nil.
func New(dir *game.Directory, catalog *scenario.Catalog, cfg config.Config, history *Recorder) *Server {
	if catalog == nil {
		catalog = scenario.Default()
	}
	s := &Server{
		dir:     dir,
		catalog: catalog,
		cfg:     cfg,
		hub:     newHub(),
		history: history,
		newID:   func() string { return uuid.NewString() },
		timers:  make(map[string]*roundTimer),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return s.originAllowed(r.Header.Get("Origin")) },
	}
	dir.OnRoomDeleted(s.roomDeleted)
	registerValidators()
	return s
}

func (s *Server) Handler() http.Handler {
	if s.cfg.GinMode != "" {
		gin.SetMode(s.cfg.GinMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware())
	r.GET("/health", s.handleHealth)

	r.Use(s.requireAllowedOrigin)
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  s.originAllowed,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	api := r.Group("/api")
	api.POST("/create-room", s.handleCreateRoom)
	api.POST("/validate-room", s.handleValidateRoom)
	api.GET("/scenarios", s.handleScenarios)
	api.GET("/locations", s.handleScenarios)
	r.GET("/ws", s.handleWebsocket)
	return r
}

// Requests without an Origin header come from non-browser clients and are
// let through; browsers must match the allow-list.
func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) requireAllowedOrigin(c *gin.Context) {
	if s.originAllowed(c.GetHeader("Origin")) {
		c.Next()
		return
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "forbidden origin"})
}

func (s *Server) roomDeleted(code string) {
	s.cancelRoundTimer(code)
	s.hub.dropRoom(code)
	s.history.RoomDeleted(code)
}
