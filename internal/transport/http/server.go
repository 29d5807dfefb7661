package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/xzytten/eventsy-chat-server/internal/auth"
	"github.com/xzytten/eventsy-chat-server/internal/config"
	"github.com/xzytten/eventsy-chat-server/internal/relay"
)

// NewServer builds the HTTP server hosting the chat relay.
// The storefront dials ws://host:port/?email=..., so the WebSocket handler
// is mounted at the root as well as at /ws.
func NewServer(hub *relay.Hub, gate *auth.Gate, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	wsHandler := NewWSHandler(hub, gate, logger)
	router.GET("/", gin.WrapH(wsHandler))
	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
