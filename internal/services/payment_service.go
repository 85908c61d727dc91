// internal/services/payment_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/config"
	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

type PaymentService struct {
	db            *gorm.DB
	config        *config.Config
	gateway       PaymentGateway
	invoices      *InvoiceService
	notifications *NotificationService
}

// WebhookEvent is the payment provider's delivery envelope.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type PaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Method           string `json:"method"`
	ErrorDescription string `json:"error_description"`
}

type WebhookResult struct {
	Message   string     `json:"message"`
	OrderID   *uuid.UUID `json:"-"`
	Duplicate bool       `json:"-"`
}

func NewPaymentService(db *gorm.DB, config *config.Config, gateway PaymentGateway, invoices *InvoiceService, notifications *NotificationService) *PaymentService {
	return &PaymentService{
		db:            db,
		config:        config,
		gateway:       gateway,
		invoices:      invoices,
		notifications: notifications,
	}
}

// HandleWebhook authenticates and applies one provider delivery. The
// signature is checked against the raw body before anything is parsed.
// eventID, when the provider sends one, makes redeliveries no-ops.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (*WebhookResult, error) {
	if signature == "" {
		return nil, ErrMissingSignature
	}
	if !utils.VerifySignature(body, signature, s.config.Payment.WebhookSecret) {
		return nil, ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}

	log := logrus.WithFields(logrus.Fields{
		"event":            event.Event,
		"event_id":         eventID,
		"gateway_order_id": event.Payload.Payment.Entity.OrderID,
		"payment_id":       event.Payload.Payment.Entity.ID,
	})

	if eventID != "" {
		claimed, err := s.claimEvent(ctx, eventID, event.Event)
		if err != nil {
			return nil, err
		}
		if !claimed {
			log.Info("Duplicate webhook delivery ignored")
			return &WebhookResult{Message: "Event already processed", Duplicate: true}, nil
		}
	}

	result, err := s.applyEvent(ctx, &event, log)
	if err != nil && eventID != "" {
		// Let the provider redeliver events we could not apply.
		s.releaseEvent(ctx, eventID)
	}
	return result, err
}

func (s *PaymentService) applyEvent(ctx context.Context, event *WebhookEvent, log *logrus.Entry) (*WebhookResult, error) {
	entity := event.Payload.Payment.Entity

	switch event.Event {
	case EventPaymentCaptured:
		order, err := s.findByGatewayOrder(ctx, entity.OrderID)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				log.Warn("Captured payment for unknown order")
			}
			return nil, err
		}

		if err := s.markPaid(ctx, order, entity.ID, entity.Method); err != nil {
			return nil, err
		}
		log.WithField("order_id", order.ID).Info("Payment captured")

		s.deliverInvoice(ctx, order.ID)
		return &WebhookResult{Message: "Payment captured", OrderID: &order.ID}, nil

	case EventPaymentFailed:
		order, err := s.findByGatewayOrder(ctx, entity.OrderID)
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn("Failed payment for unknown order")
			return &WebhookResult{Message: "Order not found, event acknowledged"}, nil
		}
		if err != nil {
			return nil, err
		}

		if err := s.markFailed(ctx, order, entity); err != nil {
			return nil, err
		}
		log.WithField("order_id", order.ID).Info("Payment failed")
		return &WebhookResult{Message: "Payment failure recorded", OrderID: &order.ID}, nil

	default:
		log.Debug("Unhandled webhook event acknowledged")
		return &WebhookResult{Message: "Event acknowledged"}, nil
	}
}

// ConfirmPayment is the client-side callback after checkout. The order is
// only marked paid when the gateway itself reports the payment succeeded.
func (s *PaymentService) ConfirmPayment(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.PaymentStatus == models.PaymentStatusPaid {
		return order, nil
	}
	if s.gateway == nil {
		return nil, ErrPaymentNotConfigured
	}
	if order.GatewayOrderID == nil || *order.GatewayOrderID == "" {
		return nil, ErrPaymentNotConfirmed
	}

	payment, err := s.gateway.FetchPayment(ctx, *order.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if !payment.Succeeded {
		logrus.WithFields(logrus.Fields{
			"order_id":       order.ID,
			"gateway_status": payment.Status,
		}).Info("Payment confirmation rejected")
		return nil, ErrPaymentNotConfirmed
	}

	if err := s.markPaid(ctx, order, payment.PaymentID, payment.Method); err != nil {
		return nil, err
	}
	s.deliverInvoice(ctx, order.ID)

	var updated models.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&updated, "id = ?", order.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}
	return &updated, nil
}

// CreateGatewayOrder opens the provider order a customer pays against.
func (s *PaymentService) CreateGatewayOrder(ctx context.Context, order *models.Order) (*GatewayOrder, error) {
	if s.gateway == nil {
		return nil, nil
	}
	return s.gateway.CreateOrder(ctx, order.TotalAmount, order.Currency, order.OrderNumber, map[string]string{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
	})
}

// RefundOrder refunds the full amount of a paid order through the gateway.
func (s *PaymentService) RefundOrder(ctx context.Context, order *models.Order, reason string) error {
	if s.gateway == nil {
		return ErrPaymentNotConfigured
	}
	if order.GatewayOrderID == nil || *order.GatewayOrderID == "" {
		return errors.New("order has no gateway payment to refund")
	}

	if err := s.gateway.Refund(ctx, *order.GatewayOrderID, order.TotalAmount, reason); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"amount":   order.TotalAmount,
	}).Info("Order refunded")
	return nil
}

func (s *PaymentService) markPaid(ctx context.Context, order *models.Order, paymentID, method string) error {
	updates := map[string]interface{}{
		"payment_status":     models.PaymentStatusPaid,
		"gateway_payment_id": paymentID,
		"payment_method":     method,
		"payment_error":      "",
		"updated_at":         time.Now(),
	}
	// Orders that already moved past confirmation keep their status.
	if order.Status == models.OrderStatusPending || order.Status == models.OrderStatusFailed {
		updates["status"] = models.OrderStatusConfirmed
	}

	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update order payment: %w", err)
	}
	return nil
}

func (s *PaymentService) markFailed(ctx context.Context, order *models.Order, entity PaymentEntity) error {
	if order.PaymentStatus == models.PaymentStatusPaid {
		logrus.WithField("order_id", order.ID).Warn("Ignoring payment failure for an order that is already paid")
		return nil
	}

	note := entity.ErrorDescription
	if note == "" {
		note = "Payment failed"
	}

	updates := map[string]interface{}{
		"payment_status": models.PaymentStatusFailed,
		"status":         models.OrderStatusFailed,
		"payment_error":  note,
		"updated_at":     time.Now(),
	}
	if entity.ID != "" {
		updates["gateway_payment_id"] = entity.ID
	}

	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update order payment: %w", err)
	}
	return nil
}

// deliverInvoice generates and mails the invoice. Failures are logged and
// never reach the caller.
func (s *PaymentService) deliverInvoice(ctx context.Context, orderID uuid.UUID) {
	if s.invoices == nil {
		return
	}

	invoice, order, err := s.invoices.GenerateInvoice(ctx, orderID)
	if err != nil {
		logrus.WithError(err).WithField("order_id", orderID).Error("Failed to generate invoice after payment")
		return
	}

	if s.notifications == nil {
		return
	}
	if err := s.notifications.SendInvoiceEmail(order, invoice); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"order_id":       orderID,
			"invoice_number": invoice.InvoiceNumber,
		}).Error("Failed to send invoice email")
	}
}

func (s *PaymentService) findByGatewayOrder(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	if gatewayOrderID == "" {
		return nil, ErrOrderNotFound
	}

	var order models.Order
	if err := s.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &order, nil
}

func (s *PaymentService) claimEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	record := &models.WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	return true, nil
}

func (s *PaymentService) releaseEvent(ctx context.Context, eventID string) {
	if err := s.db.WithContext(ctx).Delete(&models.WebhookEvent{}, "event_id = ?", eventID).Error; err != nil {
		logrus.WithError(err).WithField("event_id", eventID).Error("Failed to release webhook event")
	}
}
