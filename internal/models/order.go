// internal/models/order.go
package models

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Address is the snapshot of a shipping or billing address taken at checkout.
type Address struct {
	FullName   string `json:"full_name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.Line1+a.City+a.PostalCode+a.FullName) == ""
}

// Lines returns the non-empty printable lines of the address.
func (a Address) Lines() []string {
	locality := strings.TrimSpace(strings.Join(nonEmpty(a.City, a.State), ", ") + " " + a.PostalCode)
	return nonEmpty(a.FullName, a.Line1, a.Line2, locality, a.Country, a.Phone)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type Order struct {
	BaseModel
	OrderNumber      string                      `json:"order_number" gorm:"size:32;not null;uniqueIndex"`
	UserID           *uuid.UUID                  `json:"user_id" gorm:"type:uuid;index"`
	CustomerEmail    string                      `json:"customer_email" gorm:"size:255;not null"`
	CustomerName     string                      `json:"customer_name" gorm:"size:255"`
	CustomerPhone    string                      `json:"customer_phone" gorm:"size:32"`
	Subtotal         float64                     `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	ShippingAmount   float64                     `json:"shipping_amount" gorm:"type:decimal(12,2);default:0"`
	TaxAmount        float64                     `json:"tax_amount" gorm:"type:decimal(12,2);default:0"`
	DiscountAmount   float64                     `json:"discount_amount" gorm:"type:decimal(12,2);default:0"`
	TotalAmount      float64                     `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	Currency         string                      `json:"currency" gorm:"size:8;not null"`
	Status           OrderStatus                 `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	PaymentStatus    PaymentStatus               `json:"payment_status" gorm:"type:varchar(20);default:'pending';index"`
	PaymentMethod    string                      `json:"payment_method,omitempty" gorm:"size:50"`
	GatewayOrderID   *string                     `json:"gateway_order_id,omitempty" gorm:"size:255;uniqueIndex"`
	GatewayPaymentID string                      `json:"gateway_payment_id,omitempty" gorm:"size:255"`
	PaymentError     string                      `json:"payment_error,omitempty" gorm:"type:text"`
	ShippingAddress  datatypes.JSONType[Address] `json:"shipping_address"`
	BillingAddress   datatypes.JSONType[Address] `json:"billing_address"`
	InvoiceNumber    *string                     `json:"invoice_number,omitempty" gorm:"size:32;uniqueIndex"`
	Notes            string                      `json:"notes,omitempty" gorm:"type:text"`

	// Relationships
	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	User  *Profile    `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	ProductName string    `json:"product_name" gorm:"size:255;not null"`
	ProductSKU  string    `json:"product_sku" gorm:"column:product_sku;size:100"`
	Quantity    int       `json:"quantity" gorm:"not null"`
	UnitPrice   float64   `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	TotalPrice  float64   `json:"total_price" gorm:"type:decimal(12,2);not null"`
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusFailed:     {OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransitionTo reports whether the order status machine allows moving
// from the current status to next.
func (o *Order) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[o.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}
