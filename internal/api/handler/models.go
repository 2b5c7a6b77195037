package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ProviderStatus reports which caption model is active.
type ProviderStatus interface {
	ActiveProvider() string
	UsingRemote() bool
}

// ModelInfo describes one caption model.
type ModelInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Provider       string `json:"provider"`
	Type           string `json:"type"` // local or api
	RequiresAPIKey bool   `json:"requires_api_key"`
	Active         bool   `json:"active"`
}

// ModelsHandler lists caption models.
type ModelsHandler struct {
	status ProviderStatus
	models []ModelInfo
}

// NewModelsHandler creates a new models handler.
// Parameters:
//   - status: live provider selection.
//   - models: configured models; Active is filled in per request.
// Returns:
//   - *ModelsHandler: initialized handler.
func NewModelsHandler(status ProviderStatus, models []ModelInfo) *ModelsHandler {
	return &ModelsHandler{status: status, models: models}
}

// List handles GET /api/models.
func (h *ModelsHandler) List(c *gin.Context) {
	current := h.status.ActiveProvider()
	models := make([]ModelInfo, len(h.models))
	for i, m := range h.models {
		m.Active = m.ID == current
		models[i] = m
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"models":        models,
		"current_model": current,
		"using_remote":  h.status.UsingRemote(),
	})
}
