package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/youthdreamers/scholarhub/internal/db"
)

// DemoHandler exposes the demo login roster in dev environments.
type DemoHandler struct {
	enabled bool
}

func NewDemoHandler(enabled bool) *DemoHandler {
	return &DemoHandler{enabled: enabled}
}

func (h *DemoHandler) Credentials(ctx *gin.Context) {
	if !h.enabled {
		RespondNotFound(ctx, "Not found")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"credentials": db.DemoAccounts})
}
