// internal/handlers/invoice.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/services"
)

type InvoiceHandler struct {
	invoiceService      *services.InvoiceService
	orderService        *services.OrderService
	notificationService *services.NotificationService
	userService         *services.UserService
}

type GenerateInvoiceRequest struct {
	OrderID   uuid.UUID `json:"orderId" validate:"required"`
	SendEmail bool      `json:"sendEmail"`
}

func NewInvoiceHandler(invoiceService *services.InvoiceService, orderService *services.OrderService, notificationService *services.NotificationService, userService *services.UserService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService:      invoiceService,
		orderService:        orderService,
		notificationService: notificationService,
		userService:         userService,
	}
}

// POST /invoices/generate
func (h *InvoiceHandler) GenerateInvoice(c *gin.Context) {
	var req GenerateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, order, ok := h.generateForCaller(c, req.OrderID)
	if !ok {
		return
	}

	if req.SendEmail {
		if err := h.notificationService.SendInvoiceEmail(order, invoice); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"order_id":       order.ID,
				"invoice_number": invoice.InvoiceNumber,
			}).Error("Failed to send invoice email")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"invoice": invoice,
	})
}

// GET /invoices/:orderId
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	orderID, ok := parseIDParam(c, "orderId", "order")
	if !ok {
		return
	}

	invoice, _, ok := h.generateForCaller(c, orderID)
	if !ok {
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(invoice.HTML))
}

// generateForCaller checks that the caller may see the order before the
// invoice is numbered or rendered.
func (h *InvoiceHandler) generateForCaller(c *gin.Context, orderID uuid.UUID) (*services.Invoice, *models.Order, bool) {
	profile, err := currentProfile(c, h.userService)
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}

	if _, err := h.orderService.GetOrderForViewer(c.Request.Context(), orderID, profile); err != nil {
		respondError(c, err)
		return nil, nil, false
	}

	invoice, order, err := h.invoiceService.GenerateInvoice(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}

	return invoice, order, true
}
