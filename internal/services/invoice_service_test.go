// internal/services/invoice_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/clayfire/storefront-api/internal/database"
	"github.com/clayfire/storefront-api/internal/models"
)

func newTestInvoiceService(t *testing.T) *InvoiceService {
	db := database.NewTestDB(t)
	storage, err := NewStorageService(testConfig())
	require.NoError(t, err)

	svc := NewInvoiceService(db, testConfig(), storage)
	svc.now = func() time.Time { return time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC) }
	return svc
}

func TestGenerateInvoiceNumbersSequentiallyPerDay(t *testing.T) {
	svc := newTestInvoiceService(t)
	product := createTestProduct(t, svc.db, "MUG-1", 450, 10)
	first := createTestOrder(t, svc.db, product, 2, models.OrderStatusConfirmed, models.PaymentStatusPaid, "")
	second := createTestOrder(t, svc.db, product, 1, models.OrderStatusConfirmed, models.PaymentStatusPaid, "")

	invoice, order, err := svc.GenerateInvoice(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "CF-20240517-0001", invoice.InvoiceNumber)
	assert.Equal(t, first.OrderNumber, invoice.OrderNumber)
	require.NotNil(t, order.InvoiceNumber)
	assert.Equal(t, "CF-20240517-0001", *order.InvoiceNumber)

	invoice, _, err = svc.GenerateInvoice(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "CF-20240517-0002", invoice.InvoiceNumber)

	stored := reloadOrder(t, svc.db, first)
	require.NotNil(t, stored.InvoiceNumber)
	assert.Equal(t, "CF-20240517-0001", *stored.InvoiceNumber)
}

func TestGenerateInvoiceIsIdempotent(t *testing.T) {
	svc := newTestInvoiceService(t)
	product := createTestProduct(t, svc.db, "MUG-1", 450, 10)
	order := createTestOrder(t, svc.db, product, 1, models.OrderStatusConfirmed, models.PaymentStatusPaid, "")

	first, _, err := svc.GenerateInvoice(context.Background(), order.ID)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Date(2024, 5, 18, 9, 30, 0, 0, time.UTC) }
	again, _, err := svc.GenerateInvoice(context.Background(), order.ID)
	require.NoError(t, err)

	assert.Equal(t, first.InvoiceNumber, again.InvoiceNumber)
}

func TestGenerateInvoiceUnknownOrder(t *testing.T) {
	svc := newTestInvoiceService(t)

	_, _, err := svc.GenerateInvoice(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRenderInvoice(t *testing.T) {
	svc := newTestInvoiceService(t)
	product := createTestProduct(t, svc.db, "JAR-7", 1234.5, 10)
	order := createTestOrder(t, svc.db, product, 2, models.OrderStatusConfirmed, models.PaymentStatusPaid, "")
	require.NoError(t, svc.db.Model(order).Update("customer_name", "<b>Asha</b>").Error)

	invoice, _, err := svc.GenerateInvoice(context.Background(), order.ID)
	require.NoError(t, err)
	html := invoice.HTML

	assert.Contains(t, html, "Invoice No: <strong>CF-20240517-0001</strong>")
	assert.Contains(t, html, "Clayfire Pottery")
	assert.Contains(t, html, "12 Kiln Lane, Jaipur")
	assert.Contains(t, html, "Product JAR-7")
	assert.Contains(t, html, "₹1,234.50")
	assert.Contains(t, html, "₹2,469.00")
	assert.Contains(t, html, "4 Potter Street")
	assert.Contains(t, html, "Billing address not provided")
	assert.Contains(t, html, "&lt;b&gt;Asha&lt;/b&gt;")
	assert.NotContains(t, html, "<b>Asha</b>")
	assert.NotContains(t, html, "<td>Tax</td>")
}

func TestAssignInvoiceNumberConcurrently(t *testing.T) {
	svc := newTestInvoiceService(t)
	product := createTestProduct(t, svc.db, "MUG-1", 450, 100)

	orders := make([]*models.Order, 5)
	for i := range orders {
		orders[i] = createTestOrder(t, svc.db, product, 1, models.OrderStatusConfirmed, models.PaymentStatusPaid, "")
	}

	numbers := make([]string, len(orders))
	var g errgroup.Group
	for i, order := range orders {
		i, order := i, order
		g.Go(func() error {
			number, err := svc.AssignInvoiceNumber(context.Background(), order)
			numbers[i] = number
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.ElementsMatch(t, []string{
		"CF-20240517-0001",
		"CF-20240517-0002",
		"CF-20240517-0003",
		"CF-20240517-0004",
		"CF-20240517-0005",
	}, numbers)
}
