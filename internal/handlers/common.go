// internal/handlers/common.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clayfire/storefront-api/internal/i18n"
	"github.com/clayfire/storefront-api/internal/middleware"
	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/services"
	"github.com/clayfire/storefront-api/internal/utils"
)

// respondError maps service errors onto the API's status codes. Anything
// unrecognised is a 500 carrying the underlying message.
func respondError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	switch {
	case errors.Is(err, services.ErrProductNotFound):
		utils.NotFoundResponse(c, "product")
	case errors.Is(err, services.ErrCategoryNotFound):
		utils.NotFoundResponse(c, "category")
	case errors.Is(err, services.ErrOrderNotFound):
		utils.NotFoundResponse(c, "order")
	case errors.Is(err, services.ErrProfileNotFound):
		utils.NotFoundResponse(c, "profile")
	case errors.Is(err, services.ErrNoProductsToExport):
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", i18n.T(lang, i18n.KeyExportNoProducts), nil)

	case errors.Is(err, services.ErrProductInUse):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyProductInUse), nil)
	case errors.Is(err, services.ErrCategoryInUse):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyCategoryInUse), nil)
	case errors.Is(err, services.ErrNoExportFields):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyExportNoFields), nil)
	case errors.Is(err, services.ErrMissingSignature):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyWebhookMissingSignature), nil)
	case errors.Is(err, services.ErrCategoryCycle),
		errors.Is(err, services.ErrInvalidSlug),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrShippingRequired),
		errors.Is(err, services.ErrInsufficientInventory),
		errors.Is(err, services.ErrInvalidAdjustment),
		errors.Is(err, services.ErrSelfDemotion),
		errors.Is(err, services.ErrProductUnavailable),
		errors.Is(err, services.ErrPaymentNotConfirmed),
		errors.Is(err, services.ErrInvalidExportFilter),
		errors.Is(err, services.ErrMalformedWebhook),
		errors.Is(err, services.ErrImportNotCSV),
		errors.Is(err, services.ErrImportTooFewRows),
		errors.Is(err, services.ErrImportTooManyRows):
		utils.BadRequestResponse(c, err.Error(), nil)

	case errors.Is(err, services.ErrInvalidSignature):
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyWebhookInvalidSignature))
	case errors.Is(err, services.ErrOrderForbidden):
		utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyOrderForbidden))
	case errors.Is(err, services.ErrSKUTaken), errors.Is(err, services.ErrSlugTaken):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrPaymentNotConfigured):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "PAYMENT_UNAVAILABLE", i18n.T(lang, i18n.KeyPaymentNotConfigured), nil)

	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		utils.InternalErrorResponse(c, "Internal server error", err.Error())
	}
}

func parseIDParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+label+" ID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds and validates a request body, writing the 400 itself.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)

	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

// currentProfile returns the caller's profile, creating the local mirror on
// first use. Anonymous callers get nil.
func currentProfile(c *gin.Context, users *services.UserService) (*models.Profile, error) {
	if p, exists := c.Get(middleware.ContextProfile); exists {
		if profile, ok := p.(*models.Profile); ok {
			return profile, nil
		}
	}

	authID, ok := utils.GetAuthIDFromContext(c)
	if !ok {
		return nil, nil
	}

	profile, err := users.EnsureProfile(authID, c.GetString(middleware.ContextEmail))
	if err != nil {
		return nil, err
	}
	c.Set(middleware.ContextProfile, profile)
	return profile, nil
}
