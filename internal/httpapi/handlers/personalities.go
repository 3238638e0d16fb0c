package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elishakaranja/Mindset-coach/internal/common"
)

func (h *Handler) ListPersonalities(c *gin.Context) {
	c.JSON(http.StatusOK, h.Personas.List())
}

type setPersonalityReq struct {
	Personality string `json:"personality"`
}

func (h *Handler) SetPersonality(c *gin.Context) {
	u, ok := h.caller(c)
	if !ok {
		return
	}
	var req setPersonalityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	updated, err := h.Users.SetPersonality(c.Request.Context(), u, req.Personality)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewUser(updated))
}
