// internal/services/errors.go
package services

import "errors"

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrProductInUse          = errors.New("product is referenced by existing orders")
	ErrSKUTaken              = errors.New("sku already exists")
	ErrProductUnavailable    = errors.New("product is not available")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidAdjustment     = errors.New("exactly one of delta or quantity is required")

	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryInUse    = errors.New("category has products or subcategories")
	ErrCategoryCycle    = errors.New("category cannot be its own ancestor")
	ErrSlugTaken        = errors.New("slug already exists")
	ErrInvalidSlug      = errors.New("slug must contain letters or digits")

	ErrImportNotCSV      = errors.New("file must be a CSV")
	ErrImportTooFewRows  = errors.New("CSV must contain a header row and at least one data row")
	ErrImportTooManyRows = errors.New("CSV has too many data rows")

	ErrNoExportFields      = errors.New("at least one export field is required")
	ErrInvalidExportFilter = errors.New("invalid export filter")
	ErrNoProductsToExport  = errors.New("no products found matching the criteria")

	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderForbidden       = errors.New("order belongs to another customer")
	ErrShippingRequired     = errors.New("shipping address is required")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrPaymentNotConfirmed  = errors.New("payment has not been confirmed by the gateway")
	ErrPaymentNotConfigured = errors.New("payment gateway is not configured")

	ErrProfileNotFound = errors.New("profile not found")
	ErrSelfDemotion    = errors.New("admins cannot remove their own admin role")

	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedWebhook = errors.New("malformed webhook payload")
)
