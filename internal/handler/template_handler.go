package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bizlens/internal/domain"
	"bizlens/internal/service"
)

// TemplateHandler handles prompt-template endpoints.
type TemplateHandler struct {
	templateService service.TemplateService
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(templateService service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

// GetActive handles GET /api/v1/prompt-templates/:source_type
func (h *TemplateHandler) GetActive(c *gin.Context) {
	_, _, _, ok := extractAuthContext(c)
	if !ok {
		return
	}

	sourceType := domain.SourceType(c.Param("source_type"))

	tpl, err := h.templateService.GetActive(c.Request.Context(), sourceType)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, tpl)
}

// Update handles PUT /api/v1/prompt-templates/:source_type
func (h *TemplateHandler) Update(c *gin.Context) {
	_, _, userID, ok := extractAuthContext(c)
	if !ok {
		return
	}

	sourceType := domain.SourceType(c.Param("source_type"))

	var req struct {
		Name string `json:"name"`
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "body is required")
		return
	}

	tpl, err := h.templateService.Update(c.Request.Context(), &service.UpdateTemplateInput{
		SourceType: sourceType,
		Name:       req.Name,
		Body:       req.Body,
		UpdatedBy:  userID,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, tpl)
}
