package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elishakaranja/Mindset-coach/internal/common"
	"github.com/elishakaranja/Mindset-coach/internal/users"
)

type createUserReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID                  uint64 `json:"id"`
	Email               string `json:"email"`
	IsActive            bool   `json:"is_active"`
	SelectedPersonality string `json:"selected_personality"`
}

func viewUser(u *users.User) userView {
	return userView{ID: u.ID, Email: u.Email, IsActive: u.IsActive, SelectedPersonality: u.SelectedPersonality}
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	u, err := h.Users.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewUser(u))
}

// Token is the OAuth2 password grant: form fields username (the email) and
// password.
func (h *Handler) Token(c *gin.Context) {
	email := users.NormalizeEmail(c.PostForm("username"))
	password := c.PostForm("password")
	if email == "" || password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "username and password required")
		return
	}

	ctx := c.Request.Context()
	if !h.Throttle.Allowed(ctx, email) {
		h.fail(c, fmt.Errorf("%w: too many failed logins, try again later", common.ErrTooManyAttempts))
		return
	}

	token, err := h.Users.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			h.Throttle.Failed(context.WithoutCancel(ctx), email)
		}
		h.fail(c, err)
		return
	}
	h.Throttle.Succeeded(ctx, email)

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (h *Handler) Me(c *gin.Context) {
	u, ok := h.caller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewUser(u))
}
