// internal/services/payment_service_test.go
package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/database"
	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

type paymentFixture struct {
	db       *gorm.DB
	gateway  *fakeGateway
	mailer   *recordingMailer
	payments *PaymentService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	db := database.NewTestDB(t)
	cfg := testConfig()
	gateway := newFakeGateway()
	notifications, mailer := newTestNotifications(cfg)
	invoices := NewInvoiceService(db, cfg, nil)
	invoices.now = func() time.Time { return time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC) }

	return &paymentFixture{
		db:       db,
		gateway:  gateway,
		mailer:   mailer,
		payments: NewPaymentService(db, cfg, gateway, invoices, notifications),
	}
}

func webhookBody(event, gatewayOrderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"method":"upi","error_description":"Card declined"}}}}`,
		event, paymentID, gatewayOrderID))
}

func (f *paymentFixture) deliver(body []byte, eventID string) (*WebhookResult, error) {
	return f.payments.HandleWebhook(context.Background(), body, utils.SignPayload(body, testWebhookSecret), eventID)
}

func TestWebhookCapturedMarksOrderPaid(t *testing.T) {
	f := newPaymentFixture(t)
	mug := createTestProduct(t, f.db, "MUG-1", 450, 5)
	order := createTestOrder(t, f.db, mug, 1, models.OrderStatusPending, models.PaymentStatusPending, "gw_1")

	result, err := f.deliver(webhookBody(EventPaymentCaptured, "gw_1", "pay_1"), "evt_1")
	require.NoError(t, err)
	require.NotNil(t, result.OrderID)
	assert.Equal(t, order.ID, *result.OrderID)

	stored := reloadOrder(t, f.db, order)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, "pay_1", stored.GatewayPaymentID)
	assert.Equal(t, "upi", stored.PaymentMethod)

	require.NotNil(t, stored.InvoiceNumber)
	assert.Equal(t, "CF-20240517-0001", *stored.InvoiceNumber)
	assert.Equal(t, 1, f.mailer.count())
}

func TestWebhookRejectsBadSignatures(t *testing.T) {
	f := newPaymentFixture(t)
	mug := createTestProduct(t, f.db, "MUG-1", 450, 5)
	order := createTestOrder(t, f.db, mug, 1, models.OrderStatusPending, models.PaymentStatusPending, "gw_1")
	ctx := context.Background()

	body := webhookBody(EventPaymentCaptured, "gw_1", "pay_1")
	signature := utils.SignPayload(body, testWebhookSecret)
	tampered := webhookBody(EventPaymentCaptured, "gw_1", "pay_2")

	_, err := f.payments.HandleWebhook(ctx, tampered, signature, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = f.payments.HandleWebhook(ctx, body, utils.SignPayload(body, "wrong-secret"), "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = f.payments.HandleWebhook(ctx, body, "", "")
	assert.ErrorIs(t, err, ErrMissingSignature)

	stored := reloadOrder(t, f.db, order)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	f := newPaymentFixture(t)

	_, err := f.deliver([]byte(`{"event":`), "")
	assert.ErrorIs(t, err, ErrMalformedWebhook)
}

func TestWebhookDeduplicatesEventIDs(t *testing.T) {
	f := newPaymentFixture(t)
	mug := createTestProduct(t, f.db, "MUG-1", 450, 5)
	createTestOrder(t, f.db, mug, 1, models.OrderStatusPending, models.PaymentStatusPending, "gw_1")
	body := webhookBody(EventPaymentCaptured, "gw_1", "pay_1")

	first, err := f.deliver(body, "evt_1")
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	again, err := f.deliver(body, "evt_1")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, 1, f.mailer.count())
}

func TestWebhookReleasesEventWhenOrderIsUnknown(t *testing.T) {
	f := newPaymentFixture(t)
	body := webhookBody(EventPaymentCaptured, "gw_missing", "pay_1")

	_, err := f.deliver(body, "evt_9")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	var count int64
	require.NoError(t, f.db.Model(&models.WebhookEvent{}).Where("event_id = ?", "evt_9").Count(&count).Error)
	assert.Zero(t, count)
}

func TestWebhookFailedPayment(t *testing.T) {
	f := newPaymentFixture(t)
	mug := createTestProduct(t, f.db, "MUG-1", 450, 5)
	order := createTestOrder(t, f.db, mug, 1, models.OrderStatusPending, models.PaymentStatusPending, "gw_1")

	_, err := f.deliver(webhookBody(EventPaymentFailed, "gw_1", "pay_1"), "")
	require.NoError(t, err)

	stored := reloadOrder(t, f.db, order)
	assert.Equal(t, models.PaymentStatusFailed, stored.PaymentStatus)
	assert.Equal(t, models.OrderStatusFailed, stored.Status)
	assert.Equal(t, "Card declined", stored.PaymentError)

	// A later capture recovers the order.
	_, err = f.deliver(webhookBody(EventPaymentCaptured, "gw_1", "pay_2"), "")
	require.NoError(t, err)

	stored = reloadOrder(t, f.db, order)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
	assert.Empty(t, stored.PaymentError)
}

func TestWebhookFailedPaymentLeavesPaidOrder(t *testing.T) {
	f := newPaymentFixture(t)
	mug := createTestProduct(t, f.db, "MUG-1", 450, 5)
	order := createTestOrder(t, f.db, mug, 1, models.OrderStatusProcessing, models.PaymentStatusPaid, "gw_1")

	_, err := f.deliver(webhookBody(EventPaymentFailed, "gw_1", "pay_1"), "")
	require.NoError(t, err)

	stored := reloadOrder(t, f.db, order)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, models.OrderStatusProcessing, stored.Status)
}

func TestWebhookAcknowledgesUnknownEvents(t *testing.T) {
	f := newPaymentFixture(t)

	result, err := f.deliver(webhookBody(EventPaymentFailed, "gw_missing", "pay_1"), "")
	require.NoError(t, err)
	assert.Nil(t, result.OrderID)

	result, err = f.deliver(webhookBody("refund.processed", "gw_1", "pay_1"), "")
	require.NoError(t, err)
	assert.Equal(t, "Event acknowledged", result.Message)
}

func TestConfirmPaymentChecksGateway(t *testing.T) {
	f := newPaymentFixture(t)
	mug := createTestProduct(t, f.db, "MUG-1", 450, 5)
	order := createTestOrder(t, f.db, mug, 1, models.OrderStatusPending, models.PaymentStatusPending, "gw_1")
	ctx := context.Background()

	f.gateway.payments["gw_1"] = &GatewayPayment{OrderID: "gw_1", Status: "processing"}
	_, err := f.payments.ConfirmPayment(ctx, order)
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)

	f.gateway.succeed("gw_1", "ch_1")
	updated, err := f.payments.ConfirmPayment(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, updated.Status)
	assert.Equal(t, "ch_1", updated.GatewayPaymentID)
	require.NotNil(t, updated.InvoiceNumber)

	// Already paid orders are returned as they are.
	again, err := f.payments.ConfirmPayment(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, updated.ID, again.ID)
}

func TestConfirmPaymentWithoutGateway(t *testing.T) {
	db := database.NewTestDB(t)
	payments := NewPaymentService(db, testConfig(), nil, nil, nil)
	mug := createTestProduct(t, db, "MUG-1", 450, 5)
	order := createTestOrder(t, db, mug, 1, models.OrderStatusPending, models.PaymentStatusPending, "gw_1")

	_, err := payments.ConfirmPayment(context.Background(), order)
	assert.ErrorIs(t, err, ErrPaymentNotConfigured)
}
