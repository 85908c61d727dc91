// internal/router/router.go
package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/config"
	"github.com/clayfire/storefront-api/internal/handlers"
	"github.com/clayfire/storefront-api/internal/middleware"
	"github.com/clayfire/storefront-api/internal/services"
)

func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, error) {
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// A nil gateway leaves checkout working without online payment.
	var gateway services.PaymentGateway
	if cfg.Payment.StripeSecretKey != "" {
		gateway = services.NewStripeGateway(cfg.Payment.StripeSecretKey)
	}

	// Initialize services
	notificationService := services.NewNotificationService(cfg)
	userService := services.NewUserService(db)
	categoryService := services.NewCategoryService(db)
	productService := services.NewProductService(db, storageService)
	importService := services.NewImportService(db, cfg, categoryService)
	exportService := services.NewExportService(db)
	invoiceService := services.NewInvoiceService(db, cfg, storageService)
	paymentService := services.NewPaymentService(db, cfg, gateway, invoiceService, notificationService)
	orderService := services.NewOrderService(db, cfg, paymentService, notificationService)
	adminService := services.NewAdminService(db)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	userHandler := handlers.NewUserHandler(userService)
	productHandler := handlers.NewProductHandler(productService, storageService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	bulkHandler := handlers.NewBulkHandler(importService, exportService, cfg)
	orderHandler := handlers.NewOrderHandler(orderService, userService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, orderService, userService)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceService, orderService, notificationService, userService)
	adminHandler := handlers.NewAdminHandler(adminService)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit(cfg.RateLimit))

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Public catalog
		v1.GET("/products", productHandler.GetPublicProducts)
		v1.GET("/products/:slug", productHandler.GetPublicProduct)
		v1.GET("/categories", categoryHandler.GetPublicCategories)

		// Payment provider callbacks authenticate by signature, not session.
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/payment", paymentHandler.HandleWebhook)
		}

		// Profile routes
		me := v1.Group("/me")
		me.Use(middleware.AuthRequired())
		{
			me.GET("", userHandler.GetProfile)
			me.PUT("", userHandler.UpdateProfile)
		}

		// Order routes
		orders := v1.Group("/orders")
		{
			orders.POST("", middleware.OptionalAuth(), orderHandler.CreateOrder)

			protected := orders.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.GET("/mine", orderHandler.GetMyOrders)
				protected.GET("/:id", orderHandler.GetOrder)
				protected.POST("/:id/payment/confirm", paymentHandler.ConfirmPayment)
			}
		}

		// Invoice routes
		invoices := v1.Group("/invoices")
		invoices.Use(middleware.AuthRequired())
		{
			invoices.POST("/generate", invoiceHandler.GenerateInvoice)
			invoices.GET("/:orderId", invoiceHandler.GetInvoice)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired())
		admin.Use(middleware.AdminRequired(db))
		admin.Use(middleware.AuditLogMiddleware(db))
		{
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)
			admin.GET("/analytics", adminHandler.GetAnalytics)
			admin.GET("/profiles", adminHandler.GetProfiles)
			admin.PUT("/profiles/:id/role", adminHandler.UpdateProfileRole)
			admin.GET("/audit-logs", adminHandler.GetAuditLogs)

			products := admin.Group("/products")
			{
				products.GET("", productHandler.GetProducts)
				products.POST("", productHandler.CreateProduct)
				products.POST("/bulk", productHandler.BulkOperation)
				products.POST("/bulk-import", middleware.UploadRateLimit(cfg.RateLimit), bulkHandler.ImportProducts)
				products.POST("/bulk-export", bulkHandler.ExportProducts)
				products.GET("/:id", productHandler.GetProduct)
				products.PUT("/:id", productHandler.UpdateProduct)
				products.DELETE("/:id", productHandler.DeleteProduct)
				products.PATCH("/:id/inventory", productHandler.AdjustInventory)
				products.POST("/:id/images", middleware.UploadRateLimit(cfg.RateLimit), productHandler.UploadImage)
				products.DELETE("/:id/images", productHandler.RemoveImage)
			}

			categories := admin.Group("/categories")
			{
				categories.GET("", categoryHandler.GetCategories)
				categories.POST("", categoryHandler.CreateCategory)
				categories.GET("/:id", categoryHandler.GetCategory)
				categories.PUT("/:id", categoryHandler.UpdateCategory)
				categories.DELETE("/:id", categoryHandler.DeleteCategory)
			}

			adminOrders := admin.Group("/orders")
			{
				adminOrders.GET("", orderHandler.GetOrders)
				adminOrders.PUT("/:id/status", orderHandler.UpdateOrderStatus)
			}
		}
	}

	return r, nil
}
