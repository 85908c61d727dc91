// internal/services/payment_gateway.go
package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"
)

// GatewayOrder is the provider-side order a customer pays against.
type GatewayOrder struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// GatewayPayment is the provider's view of the payment for a gateway order.
type GatewayPayment struct {
	OrderID   string
	PaymentID string
	Method    string
	Status    string
	Succeeded bool
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount float64, currency, receipt string, metadata map[string]string) (*GatewayOrder, error)
	FetchPayment(ctx context.Context, gatewayOrderID string) (*GatewayPayment, error)
	Refund(ctx context.Context, gatewayOrderID string, amount float64, reason string) error
}

// StripeGateway maps gateway orders onto Stripe PaymentIntents.
type StripeGateway struct{}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string, metadata map[string]string) (*GatewayOrder, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinorUnits(amount)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(receipt),
	}
	params.Context = ctx

	params.AddMetadata("receipt", receipt)
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &GatewayOrder{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

func (g *StripeGateway) FetchPayment(ctx context.Context, gatewayOrderID string) (*GatewayPayment, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("payment_method")

	pi, err := paymentintent.Get(gatewayOrderID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	payment := &GatewayPayment{
		OrderID:   pi.ID,
		PaymentID: pi.ID,
		Status:    string(pi.Status),
		Succeeded: pi.Status == stripe.PaymentIntentStatusSucceeded,
	}
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		payment.PaymentID = pi.LatestCharge.ID
	}
	switch {
	case pi.PaymentMethod != nil && pi.PaymentMethod.Type != "":
		payment.Method = string(pi.PaymentMethod.Type)
	case len(pi.PaymentMethodTypes) > 0:
		payment.Method = pi.PaymentMethodTypes[0]
	}

	return payment, nil
}

func (g *StripeGateway) Refund(ctx context.Context, gatewayOrderID string, amount float64, reason string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(gatewayOrderID),
		Amount:        stripe.Int64(toMinorUnits(amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if reason != "" {
		params.AddMetadata("note", reason)
	}

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("failed to process refund: %w", err)
	}
	return nil
}

func toMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
