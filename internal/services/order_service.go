// internal/services/order_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/config"
	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

const orderNumberCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type OrderService struct {
	db            *gorm.DB
	config        *config.Config
	payments      *PaymentService
	notifications *NotificationService
}

type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=100"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	CustomerEmail   string             `json:"customer_email" validate:"required,email"`
	CustomerName    string             `json:"customer_name" validate:"required,max=255"`
	CustomerPhone   string             `json:"customer_phone,omitempty" validate:"max=32"`
	ShippingAddress models.Address     `json:"shipping_address"`
	BillingAddress  *models.Address    `json:"billing_address,omitempty"`
	Notes           string             `json:"notes,omitempty" validate:"max=1000"`
}

type CheckoutResult struct {
	Order          *models.Order `json:"order"`
	ClientSecret   string        `json:"client_secret,omitempty"`
	PublishableKey string        `json:"publishable_key,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required,oneof=confirmed failed processing shipped delivered cancelled"`
	Note   string             `json:"note,omitempty" validate:"max=1000"`
}

type OrderSearchParams struct {
	utils.PaginationParams
	Status        *models.OrderStatus   `json:"status,omitempty"`
	PaymentStatus *models.PaymentStatus `json:"payment_status,omitempty"`
	From          *time.Time            `json:"from,omitempty"`
	To            *time.Time            `json:"to,omitempty"`
}

func NewOrderService(db *gorm.DB, config *config.Config, payments *PaymentService, notifications *NotificationService) *OrderService {
	return &OrderService{
		db:            db,
		config:        config,
		payments:      payments,
		notifications: notifications,
	}
}

// CreateOrder prices the cart from the catalog, reserves stock and opens the
// gateway order, all inside one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest, customer *models.Profile) (*CheckoutResult, error) {
	if req.ShippingAddress.IsEmpty() {
		return nil, ErrShippingRequired
	}

	quantities := mergeOrderItems(req.Items)
	result := &CheckoutResult{PublishableKey: s.config.Payment.StripePublishableKey}

	var orderID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := make([]models.OrderItem, 0, len(quantities))
		subtotal := decimal.Zero

		for _, line := range quantities {
			var product models.Product
			if err := tx.First(&product, "id = ?", line.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
				}
				return fmt.Errorf("database error: %w", err)
			}
			if !product.IsActive {
				return fmt.Errorf("%w: %s", ErrProductUnavailable, product.Name)
			}
			if !product.CanFulfil(line.Quantity) {
				return fmt.Errorf("%w: %s", ErrInsufficientInventory, product.Name)
			}

			if product.TrackInventory {
				res := tx.Model(&models.Product{}).
					Where("id = ? AND (allow_backorder = ? OR inventory_quantity >= ?)", product.ID, true, line.Quantity).
					UpdateColumn("inventory_quantity", gorm.Expr("inventory_quantity - ?", line.Quantity))
				if res.Error != nil {
					return fmt.Errorf("failed to reserve inventory: %w", res.Error)
				}
				if res.RowsAffected == 0 {
					return fmt.Errorf("%w: %s", ErrInsufficientInventory, product.Name)
				}
			}

			unit := decimal.NewFromFloat(product.Price).Round(2)
			lineTotal := unit.Mul(decimal.NewFromInt(int64(line.Quantity)))
			subtotal = subtotal.Add(lineTotal)

			items = append(items, models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				ProductSKU:  product.SKU,
				Quantity:    line.Quantity,
				UnitPrice:   unit.InexactFloat64(),
				TotalPrice:  lineTotal.InexactFloat64(),
			})
		}

		shipping, tax, total := s.orderTotals(subtotal)

		orderNumber, err := generateOrderNumber(time.Now())
		if err != nil {
			return err
		}

		billing := req.ShippingAddress
		if req.BillingAddress != nil && !req.BillingAddress.IsEmpty() {
			billing = *req.BillingAddress
		}

		order := &models.Order{
			OrderNumber:     orderNumber,
			CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
			CustomerName:    strings.TrimSpace(req.CustomerName),
			CustomerPhone:   req.CustomerPhone,
			Subtotal:        subtotal.InexactFloat64(),
			ShippingAmount:  shipping.InexactFloat64(),
			TaxAmount:       tax.InexactFloat64(),
			TotalAmount:     total.InexactFloat64(),
			Currency:        s.config.Store.Currency,
			Status:          models.OrderStatusPending,
			PaymentStatus:   models.PaymentStatusPending,
			ShippingAddress: datatypes.NewJSONType(req.ShippingAddress),
			BillingAddress:  datatypes.NewJSONType(billing),
			Notes:           req.Notes,
			Items:           items,
		}
		if customer != nil {
			order.UserID = &customer.ID
		}

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		gatewayOrder, err := s.payments.CreateGatewayOrder(ctx, order)
		if err != nil {
			return err
		}
		if gatewayOrder != nil {
			if err := tx.Model(order).Update("gateway_order_id", gatewayOrder.ID).Error; err != nil {
				return fmt.Errorf("failed to link gateway order: %w", err)
			}
			result.ClientSecret = gatewayOrder.ClientSecret
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	result.Order = order

	logrus.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.TotalAmount,
	}).Info("Order created")

	if s.notifications != nil {
		if err := s.notifications.SendOrderConfirmationEmail(order); err != nil {
			logrus.WithError(err).WithField("order_id", order.ID).Warn("Failed to send order confirmation")
		}
	}

	return result, nil
}

// orderTotals applies flat shipping below the free-shipping threshold and tax
// at the configured rate on the subtotal.
func (s *OrderService) orderTotals(subtotal decimal.Decimal) (shipping, tax, total decimal.Decimal) {
	store := s.config.Store

	shipping = decimal.NewFromFloat(store.FlatShipping)
	if store.FreeShippingThreshold > 0 && subtotal.GreaterThanOrEqual(decimal.NewFromFloat(store.FreeShippingThreshold)) {
		shipping = decimal.Zero
	}

	tax = subtotal.Mul(decimal.NewFromFloat(store.TaxRatePercent)).Div(decimal.NewFromInt(100)).Round(2)
	total = subtotal.Add(shipping).Add(tax).Round(2)
	return shipping, tax, total
}

func mergeOrderItems(items []OrderItemRequest) []OrderItemRequest {
	totals := make(map[uuid.UUID]int, len(items))
	order := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, seen := totals[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		totals[item.ProductID] += item.Quantity
	}

	merged := make([]OrderItemRequest, 0, len(order))
	for _, id := range order {
		merged = append(merged, OrderItemRequest{ProductID: id, Quantity: totals[id]})
	}
	return merged
}

func generateOrderNumber(now time.Time) (string, error) {
	suffix, err := utils.GenerateRandomString(6, orderNumberCharset)
	if err != nil {
		return "", fmt.Errorf("failed to generate order number: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix), nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &order, nil
}

// GetOrderForViewer returns the order when viewer is an admin or the
// customer who placed it.
func (s *OrderService) GetOrderForViewer(ctx context.Context, id uuid.UUID, viewer *models.Profile) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanViewOrder(order, viewer) {
		return nil, ErrOrderForbidden
	}
	return order, nil
}

func CanViewOrder(order *models.Order, viewer *models.Profile) bool {
	if viewer == nil {
		return false
	}
	if viewer.IsAdmin() {
		return true
	}
	return order.UserID != nil && *order.UserID == viewer.ID
}

func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params utils.PaginationParams) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", customerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "total_amount", "status"})
	query = utils.ApplyPagination(query, params)

	var orders []models.Order
	if err := query.Preload("Items").Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, total, nil
}

func (s *OrderService) ListOrders(ctx context.Context, params OrderSearchParams) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *params.PaymentStatus)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", params.From.UTC())
	}
	if params.To != nil {
		query = query.Where("created_at < ?", params.To.UTC().AddDate(0, 0, 1))
	}
	if params.Search != "" {
		term := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(order_number) LIKE ? OR LOWER(customer_email) LIKE ? OR LOWER(customer_name) LIKE ?", term, term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "updated_at", "total_amount", "status", "order_number"})
	query = utils.ApplyPagination(query, params.PaginationParams)

	var orders []models.Order
	if err := query.Preload("Items").Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, total, nil
}

// UpdateOrderStatus moves an order along the status machine. Cancelling a
// paid order refunds it through the gateway, and cancelling restores any
// stock the order reserved.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, req *UpdateOrderStatusRequest) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.CanTransitionTo(req.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, req.Status)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     req.Status,
			"updated_at": time.Now(),
		}
		if req.Note != "" {
			updates["notes"] = strings.TrimSpace(order.Notes + "\n" + req.Note)
		}

		if req.Status == models.OrderStatusCancelled {
			if err := restoreInventory(tx, order.Items); err != nil {
				return err
			}
			if order.PaymentStatus == models.PaymentStatusPaid {
				if err := s.payments.RefundOrder(ctx, order, req.Note); err != nil {
					return err
				}
				updates["payment_status"] = models.PaymentStatusRefunded
			}
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update order status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id": id,
		"from":     order.Status,
		"to":       updated.Status,
	}).Info("Order status updated")

	if s.notifications != nil {
		if err := s.notifications.SendOrderStatusEmail(updated); err != nil {
			logrus.WithError(err).WithField("order_id", id).Warn("Failed to send order status email")
		}
	}

	return updated, nil
}

func restoreInventory(tx *gorm.DB, items []models.OrderItem) error {
	// Lock rows in a stable order.
	sorted := append([]models.OrderItem{}, items...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})

	for _, item := range sorted {
		res := tx.Model(&models.Product{}).
			Where("id = ? AND track_inventory = ?", item.ProductID, true).
			UpdateColumn("inventory_quantity", gorm.Expr("inventory_quantity + ?", item.Quantity))
		if res.Error != nil {
			return fmt.Errorf("failed to restore inventory: %w", res.Error)
		}
	}
	return nil
}
