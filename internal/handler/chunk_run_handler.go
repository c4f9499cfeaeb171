package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bizlens/internal/chunking"
	"bizlens/internal/domain"
	"bizlens/internal/service"
	"bizlens/internal/spreadsheet"
)

// ChunkRunHandler handles chunking-run endpoints.
type ChunkRunHandler struct {
	runService service.RunService
	packer     spreadsheet.Packer
}

// NewChunkRunHandler creates a new ChunkRunHandler.
func NewChunkRunHandler(runService service.RunService, packer spreadsheet.Packer) *ChunkRunHandler {
	return &ChunkRunHandler{runService: runService, packer: packer}
}

// Create handles POST /api/v1/chunk-runs. The request stages its payload and
// returns 202 with the queued run; processing happens asynchronously.
func (h *ChunkRunHandler) Create(c *gin.Context) {
	tenantID, companyID, userID, ok := extractAuthContext(c)
	if !ok {
		return
	}

	var req struct {
		SourceType domain.SourceType          `json:"source_type" binding:"required"`
		Document   *chunking.DocumentPayload  `json:"document"`
		Connector  *chunking.ConnectorPayload `json:"connector"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "source_type is required")
		return
	}

	run, err := h.runService.Enqueue(c.Request.Context(), &service.EnqueueRunInput{
		TenantID:    tenantID,
		CompanyID:   companyID,
		SourceType:  req.SourceType,
		Document:    req.Document,
		Connector:   req.Connector,
		RequestedBy: userID,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondAccepted(c, run)
}

// CreateFromSpreadsheet handles POST /api/v1/chunk-runs/spreadsheet. It
// accepts an XLSX workbook as a multipart upload, renders its sheets into
// token-bounded text pages, and queues a document run over them. An optional
// document_id form field ties the run to an existing document record.
func (h *ChunkRunHandler) CreateFromSpreadsheet(c *gin.Context) {
	tenantID, companyID, userID, ok := extractAuthContext(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "file is required")
		return
	}

	documentID := uuid.New()
	if raw := c.PostForm("document_id"); raw != "" {
		documentID, err = uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
			return
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		HandleError(c, err)
		return
	}
	defer func() { _ = file.Close() }()

	pages, err := spreadsheet.ExtractPages(file, h.packer)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_WORKBOOK", "could not read workbook: "+err.Error())
		return
	}

	run, err := h.runService.Enqueue(c.Request.Context(), &service.EnqueueRunInput{
		TenantID:   tenantID,
		CompanyID:  companyID,
		SourceType: domain.SourceTypeDocument,
		Document: &chunking.DocumentPayload{
			DocumentID: documentID,
			FileName:   fileHeader.Filename,
			Pages:      pages,
		},
		RequestedBy: userID,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondAccepted(c, run)
}

// GetByID handles GET /api/v1/chunk-runs/:id
func (h *ChunkRunHandler) GetByID(c *gin.Context) {
	tenantID, _, _, ok := extractAuthContext(c)
	if !ok {
		return
	}

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid run ID")
		return
	}

	run, err := h.runService.GetByID(c.Request.Context(), tenantID, runID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, run)
}

// List handles GET /api/v1/chunk-runs
func (h *ChunkRunHandler) List(c *gin.Context) {
	tenantID, _, _, ok := extractAuthContext(c)
	if !ok {
		return
	}

	offset, limit := parsePagination(c)

	runs, total, err := h.runService.List(c.Request.Context(), tenantID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, runs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// parsePagination extracts offset and limit from query params with defaults.
func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
