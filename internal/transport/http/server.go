package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-minutes/internal/config"
	"github.com/vovakirdan/wirechat-minutes/internal/core"
)

// NewServer builds the HTTP server: health, the WebSocket endpoint and the room API.
func NewServer(hub *core.Hub, transcripts TranscriptReader, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if cfg.LogLevel != "debug" && cfg.LogLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg.WS, logger)))

	rooms := NewRoomHandlers(hub, transcripts, logger)
	api := router.Group("/api")
	api.GET("/rooms", rooms.ListRooms)
	api.GET("/rooms/:room/transcript", rooms.Transcript)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
