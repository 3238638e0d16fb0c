package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elishakaranja/Mindset-coach/internal/chat"
	"github.com/elishakaranja/Mindset-coach/internal/common"
	"github.com/elishakaranja/Mindset-coach/internal/httpapi/middleware"
	"github.com/elishakaranja/Mindset-coach/internal/persona"
	"github.com/elishakaranja/Mindset-coach/internal/store/redisstore"
	"github.com/elishakaranja/Mindset-coach/internal/users"
)

type Handler struct {
	Users    *users.Service
	Chat     *chat.Service
	Personas *persona.Registry
	Throttle *redisstore.LoginThrottle // nil disables throttling
	Log      *zap.Logger
}

func NewHandler(u *users.Service, c *chat.Service, p *persona.Registry, t *redisstore.LoginThrottle, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Users: u, Chat: c, Personas: p, Throttle: t, Log: log}
}

// statusFor maps the error taxonomy onto an HTTP status and envelope code.
func statusFor(err error) (int, int) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, 40001
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, 40101
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, 40401
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, 40901
	case errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests, 42901
	case errors.Is(err, common.ErrModel):
		return http.StatusInternalServerError, 50002
	default:
		return http.StatusInternalServerError, 50001
	}
}

// fail writes err with its mapped status. Unclassified errors are logged and
// hidden behind a generic message; model errors keep their cause.
func (h *Handler) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if code == 50001 {
		h.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err))
		msg = "internal error"
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	common.Fail(c, status, code, msg)
}

func (h *Handler) caller(c *gin.Context) (*users.User, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	}
	return u, ok
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Mindset Coach API"})
}
