package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/elishakaranja/Mindset-coach/internal/common"
	"github.com/elishakaranja/Mindset-coach/internal/users"
)

const UserKey = "user"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*users.User, error)
}

// AuthRequired resolves the bearer token to an active user and stores it
// under UserKey. Every failure is the same 401.
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			unauthorized(c)
			return
		}
		u, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if errors.Is(err, common.ErrUnauthorized) {
			unauthorized(c)
			return
		}
		if err != nil {
			_ = c.Error(err)
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
		c.Set(UserKey, u)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	common.Fail(c, http.StatusUnauthorized, 40101, "could not validate credentials")
}

// CurrentUser returns the user set by AuthRequired.
func CurrentUser(c *gin.Context) (*users.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*users.User)
	return u, ok && u != nil
}
