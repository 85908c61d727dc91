// internal/handlers/bulk.go
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clayfire/storefront-api/internal/config"
	"github.com/clayfire/storefront-api/internal/i18n"
	"github.com/clayfire/storefront-api/internal/services"
	"github.com/clayfire/storefront-api/internal/utils"
)

type BulkHandler struct {
	importService *services.ImportService
	exportService *services.ExportService
	config        *config.Config
}

func NewBulkHandler(importService *services.ImportService, exportService *services.ExportService, config *config.Config) *BulkHandler {
	return &BulkHandler{
		importService: importService,
		exportService: exportService,
		config:        config,
	}
}

// POST /admin/products/bulk-import
func (h *BulkHandler) ImportProducts(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyImportNoFile), nil)
		return
	}
	defer file.Close()

	maxSize := h.config.Import.MaxFileSize
	if maxSize > 0 && header.Size > maxSize {
		utils.BadRequestResponse(c, fmt.Sprintf("File too large, maximum size is %d bytes", maxSize), nil)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error())
		return
	}

	result, err := h.importService.ImportProducts(c.Request.Context(), header.Filename, content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrImportNotCSV):
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyImportNotCSV), nil)
		case errors.Is(err, services.ErrImportTooFewRows):
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyImportTooFewRows), nil)
		case errors.Is(err, services.ErrImportTooManyRows):
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyImportTooManyRows, h.importService.MaxRows()), nil)
		default:
			respondError(c, err)
		}
		return
	}

	// Partial failure is still a 200; the counts tell the caller what happened.
	c.JSON(http.StatusOK, result)
}

// POST /admin/products/bulk-export
func (h *BulkHandler) ExportProducts(c *gin.Context) {
	var req services.ExportRequest
	if !bindJSON(c, &req) {
		return
	}

	file, err := h.exportService.ExportProducts(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
