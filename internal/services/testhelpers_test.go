// internal/services/testhelpers_test.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/config"
	"github.com/clayfire/storefront-api/internal/models"
)

const testWebhookSecret = "whsec_test"

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Payment: config.PaymentConfig{
			StripePublishableKey: "pk_test",
			WebhookSecret:        testWebhookSecret,
		},
		Store: config.StoreConfig{
			Currency:              "inr",
			CurrencySymbol:        "₹",
			TaxRatePercent:        0,
			FlatShipping:          0,
			FreeShippingThreshold: 0,
		},
		Company: config.CompanyConfig{
			Name:    "Clayfire Pottery",
			Address: "12 Kiln Lane, Jaipur",
			Email:   "hello@clayfire.test",
		},
		Import: config.ImportConfig{
			MaxRows:     1000,
			MaxFileSize: 5 << 20,
		},
	}
}

// fakeGateway stands in for the payment provider.
type fakeGateway struct {
	mu        sync.Mutex
	created   int
	payments  map[string]*GatewayPayment
	refunds   []string
	createErr error
	refundErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*GatewayPayment{}}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string, metadata map[string]string) (*GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created++
	id := fmt.Sprintf("gw_order_%d", g.created)
	return &GatewayOrder{ID: id, ClientSecret: id + "_secret", Status: "requires_payment_method"}, nil
}

func (g *fakeGateway) FetchPayment(ctx context.Context, gatewayOrderID string) (*GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	payment, ok := g.payments[gatewayOrderID]
	if !ok {
		return nil, errors.New("no such payment")
	}
	return payment, nil
}

func (g *fakeGateway) Refund(ctx context.Context, gatewayOrderID string, amount float64, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, gatewayOrderID)
	return nil
}

func (g *fakeGateway) succeed(gatewayOrderID, paymentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[gatewayOrderID] = &GatewayPayment{
		OrderID:   gatewayOrderID,
		PaymentID: paymentID,
		Method:    "card",
		Status:    "succeeded",
		Succeeded: true,
	}
}

// recordingMailer captures outgoing mail instead of talking to SMTP.
type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *recordingMailer) send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newTestNotifications(cfg *config.Config) (*NotificationService, *recordingMailer) {
	mailer := &recordingMailer{}
	notifications := NewNotificationService(cfg)
	notifications.send = mailer.send
	return notifications, mailer
}

func createTestProduct(t *testing.T, db *gorm.DB, sku string, price float64, stock int) *models.Product {
	t.Helper()

	product := &models.Product{
		Name:              "Product " + sku,
		Slug:              strings.ToLower(sku),
		SKU:               sku,
		Price:             price,
		InventoryQuantity: stock,
		TrackInventory:    true,
		LowStockThreshold: 5,
		IsActive:          true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func createTestOrder(t *testing.T, db *gorm.DB, product *models.Product, qty int, status models.OrderStatus, payment models.PaymentStatus, gatewayOrderID string) *models.Order {
	t.Helper()

	total := product.Price * float64(qty)
	order := &models.Order{
		OrderNumber:   "ORD-TEST-" + strings.ToUpper(uuid.NewString()[:8]),
		CustomerEmail: "buyer@example.com",
		CustomerName:  "Asha Buyer",
		Subtotal:      total,
		TotalAmount:   total,
		Currency:      "inr",
		Status:        status,
		PaymentStatus: payment,
		ShippingAddress: datatypes.NewJSONType(models.Address{
			FullName:   "Asha Buyer",
			Line1:      "4 Potter Street",
			City:       "Jaipur",
			PostalCode: "302001",
			Country:    "IN",
		}),
		Items: []models.OrderItem{{
			ProductID:   product.ID,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
			Quantity:    qty,
			UnitPrice:   product.Price,
			TotalPrice:  total,
		}},
	}
	if gatewayOrderID != "" {
		order.GatewayOrderID = &gatewayOrderID
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func reloadOrder(t *testing.T, db *gorm.DB, order *models.Order) *models.Order {
	t.Helper()

	var fresh models.Order
	require.NoError(t, db.Preload("Items").First(&fresh, "id = ?", order.ID).Error)
	return &fresh
}

func reloadProduct(t *testing.T, db *gorm.DB, product *models.Product) *models.Product {
	t.Helper()

	var fresh models.Product
	require.NoError(t, db.First(&fresh, "id = ?", product.ID).Error)
	return &fresh
}
