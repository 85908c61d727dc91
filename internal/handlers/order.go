// internal/handlers/order.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clayfire/storefront-api/internal/i18n"
	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/services"
	"github.com/clayfire/storefront-api/internal/utils"
)

type OrderHandler struct {
	orderService *services.OrderService
	userService  *services.UserService
}

func NewOrderHandler(orderService *services.OrderService, userService *services.UserService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		userService:  userService,
	}
}

// POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.ShippingAddress.IsEmpty() {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "shipping address"), nil)
		return
	}

	// Guests may check out; signed-in customers get the order on their account.
	profile, err := currentProfile(c, h.userService)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.orderService.CreateOrder(c.Request.Context(), &req, profile)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyOrderCreated),
		"checkout": result,
	})
}

// GET /orders/mine
func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	profile, err := currentProfile(c, h.userService)
	if err != nil {
		respondError(c, err)
		return
	}
	if profile == nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	orders, total, err := h.orderService.ListCustomerOrders(c.Request.Context(), profile.ID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(orders, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
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

	utils.SuccessResponse(c, order)
}

// GET /admin/orders
func (h *OrderHandler) GetOrders(c *gin.Context) {
	params := services.OrderSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}

	if status := c.Query("status"); status != "" {
		orderStatus := models.OrderStatus(status)
		params.Status = &orderStatus
	}

	if paymentStatus := c.Query("payment_status"); paymentStatus != "" {
		ps := models.PaymentStatus(paymentStatus)
		params.PaymentStatus = &ps
	}

	if fromStr := c.Query("from"); fromStr != "" {
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid from date, expected YYYY-MM-DD", nil)
			return
		}
		params.From = &from
	}

	if toStr := c.Query("to"); toStr != "" {
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid to date, expected YYYY-MM-DD", nil)
			return
		}
		params.To = &to
	}

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(orders, total, params.PaginationParams)
	utils.PaginatedResponse(c, result)
}

// PUT /admin/orders/:id/status
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseIDParam(c, "id", "order")
	if !ok {
		return
	}

	var req services.UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderUpdated),
		"order":   order,
	})
}
