// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired      = "auth.required"
	KeyAuthInvalidToken  = "auth.invalid_token"
	KeyAuthTokenExpired  = "auth.token_expired"
	KeyAdminAccessDenied = "admin.access_denied"

	// Products
	KeyProductCreated   = "product.created"
	KeyProductUpdated   = "product.updated"
	KeyProductDeleted   = "product.deleted"
	KeyProductNotFound  = "product.not_found"
	KeyProductInUse     = "product.in_use"
	KeyInventoryUpdated = "inventory.updated"

	// Categories
	KeyCategoryCreated  = "category.created"
	KeyCategoryUpdated  = "category.updated"
	KeyCategoryDeleted  = "category.deleted"
	KeyCategoryNotFound = "category.not_found"
	KeyCategoryInUse    = "category.in_use"

	// Orders
	KeyOrderCreated   = "order.created"
	KeyOrderUpdated   = "order.updated"
	KeyOrderNotFound  = "order.not_found"
	KeyOrderForbidden = "order.forbidden"

	// Profiles
	KeyProfileNotFound = "profile.not_found"
	KeyProfileUpdated  = "profile.updated"

	// Payments
	KeyPaymentSuccess          = "payment.success"
	KeyPaymentFailed           = "payment.failed"
	KeyWebhookProcessed        = "webhook.processed"
	KeyWebhookMissingSignature = "webhook.missing_signature"
	KeyWebhookInvalidSignature = "webhook.invalid_signature"
	KeyPaymentNotConfigured    = "payment.not_configured"

	// Bulk
	KeyImportNoFile      = "import.no_file"
	KeyImportNotCSV      = "import.not_csv"
	KeyImportTooFewRows  = "import.too_few_rows"
	KeyImportTooManyRows = "import.too_many_rows"
	KeyExportNoFields    = "export.no_fields"
	KeyExportNoProducts  = "export.no_products"

	// Invoices
	KeyInvoiceGenerated = "invoice.generated"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// File Upload
	KeyFileUploadSuccess = "file.upload_success"
	KeyFileUploadFailed  = "file.upload_failed"
)
