package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/auth"
	"github.com/roomchat/roomchat-server/internal/config"
	"github.com/roomchat/roomchat-server/internal/core"
	"github.com/roomchat/roomchat-server/internal/store"
)

// NewServer builds the HTTP server with REST and websocket routes.
// lifecycle is canceled on shutdown and terminates all active sessions.
func NewServer(lifecycle context.Context, cfg *config.Config, authService *auth.Service, st store.Store, registry *core.Registry, broadcaster *core.Broadcaster, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	authHandlers := NewAuthHandlers(authService, st, logger)
	roomHandlers := NewRoomHandlers(st, logger)
	messageHandlers := NewMessageHandlers(st, logger)
	analyticsHandlers := NewAnalyticsHandlers(st, logger)
	wsHandler := NewWSHandler(lifecycle, cfg, authService, st, registry, broadcaster, logger)

	router.GET("/health", healthHandler)
	router.GET("/ws/:room_id", wsHandler.Handle)

	api := router.Group("/api")
	api.POST("/signup", authHandlers.Signup)
	api.POST("/login", authHandlers.Login)

	authed := api.Group("", AuthMiddleware(authService, logger))
	authed.GET("/users/me", authHandlers.Me)
	authed.POST("/rooms", roomHandlers.CreateRoom)
	authed.GET("/rooms", roomHandlers.ListRooms)
	authed.POST("/rooms/:room_id/join", roomHandlers.JoinRoom)
	authed.GET("/rooms/:room_id/messages", messageHandlers.ListMessages)

	admin := authed.Group("", RequireAdmin(logger))
	admin.GET("/admin/users", authHandlers.ListUsers)
	admin.GET("/analytics/rooms", analyticsHandlers.RoomStats)
	admin.GET("/analytics/users", analyticsHandlers.UserStats)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"status": "ok"})
}
