package handler

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bizlens/internal/csvexport"
	"bizlens/internal/middleware"
	"bizlens/internal/service"
)

// ChunkHandler handles chunk read and export endpoints.
type ChunkHandler struct {
	chunkService service.ChunkService
}

// NewChunkHandler creates a new ChunkHandler.
func NewChunkHandler(chunkService service.ChunkService) *ChunkHandler {
	return &ChunkHandler{chunkService: chunkService}
}

// ListByDocument handles GET /api/v1/documents/:id/chunks
func (h *ChunkHandler) ListByDocument(c *gin.Context) {
	tenantID, _, _, ok := extractAuthContext(c)
	if !ok {
		return
	}

	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return
	}

	chunks, err := h.chunkService.ListByDocument(c.Request.Context(), tenantID, documentID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, chunks)
}

// ListByRun handles GET /api/v1/chunk-runs/:id/chunks
func (h *ChunkHandler) ListByRun(c *gin.Context) {
	tenantID, _, _, ok := extractAuthContext(c)
	if !ok {
		return
	}

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid run ID")
		return
	}

	chunks, err := h.chunkService.ListByRun(c.Request.Context(), tenantID, runID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, chunks)
}

// List handles GET /api/v1/chunks, scoped to the caller's company.
func (h *ChunkHandler) List(c *gin.Context) {
	tenantID, companyID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}

	offset, limit := parsePagination(c)

	chunks, total, err := h.chunkService.ListByCompany(c.Request.Context(), tenantID, companyID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, chunks, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// ExportCSV handles GET /api/v1/chunks/export, streaming the company's
// chunks as a CSV download.
func (h *ChunkHandler) ExportCSV(c *gin.Context) {
	tenantID, companyID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}

	filename := csvexport.BuildFilename("chunks")
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if err := h.chunkService.ExportCSV(c.Request.Context(), c.Writer, tenantID, companyID); err != nil {
		// Headers are already written; log and truncate the stream.
		log.Printf("handler: csv export failed request_id=%s: %v", middleware.GetRequestID(c), err)
	}
}
