package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/yoockh/scribe/internal/api/middleware"
	"github.com/yoockh/scribe/internal/services"
)

type PageHandler struct {
	provider string
	model    string
}

func NewPageHandler(provider, model string) *PageHandler {
	return &PageHandler{provider: provider, model: model}
}

type ServiceInfo struct {
	Service    string   `json:"service"`
	Provider   string   `json:"provider"`
	Model      string   `json:"model"`
	Extensions []string `json:"allowed_extensions"`
	Username   string   `json:"username,omitempty"`
}

func (h *PageHandler) Index(c *gin.Context) {
	_, username := currentUser(c)
	if !middleware.WantsHTML(c) {
		c.JSON(http.StatusOK, ServiceInfo{
			Service:    "scribe",
			Provider:   h.provider,
			Model:      h.model,
			Extensions: services.AllowedExtensions,
			Username:   username,
		})
		return
	}

	accept := strings.Join(lo.Map(services.AllowedExtensions, func(e string, _ int) string { return "." + e }), ",")
	render(c, http.StatusOK, "index.html", gin.H{
		"Accept":   accept,
		"Provider": h.provider,
		"Model":    h.model,
	})
}

