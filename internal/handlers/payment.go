// internal/handlers/payment.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clayfire/storefront-api/internal/i18n"
	"github.com/clayfire/storefront-api/internal/services"
	"github.com/clayfire/storefront-api/internal/utils"
)

const (
	HeaderWebhookSignature = "x-provider-signature"
	HeaderWebhookEventID   = "x-provider-event-id"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
	orderService   *services.OrderService
	userService    *services.UserService
}

func NewPaymentHandler(paymentService *services.PaymentService, orderService *services.OrderService, userService *services.UserService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		orderService:   orderService,
		userService:    userService,
	}
}

// POST /webhooks/payment
func (h *PaymentHandler) HandleWebhook(c *gin.Context) {
	// The signature covers the exact bytes sent, so read them before any
	// decoding happens.
	body, err := c.GetRawData()
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read request body", err.Error())
		return
	}

	result, err := h.paymentService.HandleWebhook(
		c.Request.Context(),
		body,
		c.GetHeader(HeaderWebhookSignature),
		c.GetHeader(HeaderWebhookEventID),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": result.Message,
	})
}

// POST /orders/:id/payment/confirm
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseIDParam(c, "id", "order")
	if !ok {
		return
	}

	profile, err := currentProfile(c, h.userService)
	if err != nil {
		respondError(c, err)
		return
	}

	order, err := h.orderService.GetOrderForViewer(c.Request.Context(), id, profile)
	if err != nil {
		respondError(c, err)
		return
	}

	order, err = h.paymentService.ConfirmPayment(c.Request.Context(), order)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPaymentSuccess),
		"order":   order,
	})
}
