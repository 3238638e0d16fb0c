package httpapi

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/elishakaranja/Mindset-coach/internal/common"
	"github.com/elishakaranja/Mindset-coach/internal/httpapi/handlers"
	"github.com/elishakaranja/Mindset-coach/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(h.Log))
	r.Use(middleware.Recovery(h.Log))
	r.Use(corsMiddleware(corsOrigins))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/", h.Root)
	r.GET("/ping", h.Ping)

	// auth
	r.POST("/token", h.Token)
	r.POST("/users", h.CreateUser)
	r.POST("/users/", h.CreateUser)
	r.GET("/personalities", h.ListPersonalities)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(h.Users))
	authGroup.GET("/users/me", h.Me)
	authGroup.PUT("/personalities/me", h.SetPersonality)

	// Chat (JWT required)
	authGroup.POST("/chat", h.SendChatMessage)
	authGroup.POST("/chat/stream", h.SendChatMessageStream)
	authGroup.GET("/chat/conversations", h.ListConversations)
	authGroup.GET("/chat/conversations/:id", h.GetConversation)
	authGroup.DELETE("/chat/conversations/:id", h.DeleteConversation)
	authGroup.GET("/chat/history", h.ChatHistory)
	if h.Chat.AsyncEnabled() {
		authGroup.POST("/chat/async", h.SendChatMessageAsync)
		authGroup.GET("/chat/jobs/:job_id", h.GetChatJob)
	}
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
