// internal/services/invoice_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/config"
	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

const (
	invoicePrefix       = "CF"
	invoiceNumberTries  = 5
	invoiceContentType  = "text/html; charset=utf-8"
	invoiceArchiveStore = "invoices"
)

type InvoiceService struct {
	db      *gorm.DB
	config  *config.Config
	storage *StorageService
	now     func() time.Time
	tmpl    *template.Template
}

type Invoice struct {
	InvoiceNumber string    `json:"invoice_number"`
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	HTML          string    `json:"html"`
	GeneratedAt   time.Time `json:"generated_at"`
}

func NewInvoiceService(db *gorm.DB, config *config.Config, storage *StorageService) *InvoiceService {
	s := &InvoiceService{
		db:      db,
		config:  config,
		storage: storage,
		now:     time.Now,
	}
	s.tmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
		"money": func(amount float64) string {
			return utils.FormatCurrency(config.Store.CurrencySymbol, amount)
		},
		"date": func(t time.Time) string {
			return t.Format("02 Jan 2006")
		},
		"inc": func(i int) int {
			return i + 1
		},
	}).Parse(invoiceTemplate))
	return s
}

// GenerateInvoice assigns the order's invoice number if it has none and
// renders the invoice document. The rendered copy is archived when object
// storage is configured.
func (s *InvoiceService) GenerateInvoice(ctx context.Context, orderID uuid.UUID) (*Invoice, *models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	number, err := s.AssignInvoiceNumber(ctx, order)
	if err != nil {
		return nil, nil, err
	}
	order.InvoiceNumber = &number

	html, err := s.RenderInvoice(order)
	if err != nil {
		return nil, nil, err
	}

	invoice := &Invoice{
		InvoiceNumber: number,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		HTML:          html,
		GeneratedAt:   s.now().UTC(),
	}

	s.archive(invoice)

	return invoice, order, nil
}

// AssignInvoiceNumber returns the order's invoice number, allocating
// CF-YYYYMMDD-NNNN on first use. NNNN is one more than the number of invoices
// already issued that day. The column is unique, so a concurrent allocation
// of the same number fails and the count is read again.
func (s *InvoiceService) AssignInvoiceNumber(ctx context.Context, order *models.Order) (string, error) {
	if order.InvoiceNumber != nil && *order.InvoiceNumber != "" {
		return *order.InvoiceNumber, nil
	}

	db := s.db.WithContext(ctx)
	dayPrefix := fmt.Sprintf("%s-%s-", invoicePrefix, s.now().Format("20060102"))

	for attempt := 1; attempt <= invoiceNumberTries; attempt++ {
		var issued int64
		if err := db.Model(&models.Order{}).
			Where("invoice_number LIKE ?", dayPrefix+"%").
			Count(&issued).Error; err != nil {
			return "", fmt.Errorf("failed to count invoices: %w", err)
		}

		number := fmt.Sprintf("%s%04d", dayPrefix, issued+1)

		res := db.Model(&models.Order{}).
			Where("id = ? AND invoice_number IS NULL", order.ID).
			Update("invoice_number", number)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				logrus.WithFields(logrus.Fields{
					"order_id": order.ID,
					"number":   number,
					"attempt":  attempt,
				}).Warn("Invoice number taken, retrying")
				continue
			}
			return "", fmt.Errorf("failed to assign invoice number: %w", res.Error)
		}

		if res.RowsAffected == 0 {
			// Another request numbered this order first.
			var current models.Order
			if err := db.Select("id", "invoice_number").First(&current, "id = ?", order.ID).Error; err != nil {
				return "", fmt.Errorf("failed to reload order: %w", err)
			}
			if current.InvoiceNumber == nil {
				return "", errors.New("invoice number was not assigned")
			}
			return *current.InvoiceNumber, nil
		}

		logrus.WithFields(logrus.Fields{
			"order_id":       order.ID,
			"invoice_number": number,
		}).Info("Invoice number assigned")
		return number, nil
	}

	return "", fmt.Errorf("failed to allocate invoice number after %d attempts", invoiceNumberTries)
}

type invoiceView struct {
	Company         config.CompanyConfig
	Order           *models.Order
	InvoiceNumber   string
	IssuedAt        time.Time
	BillingLines    []string
	ShippingLines   []string
	Items           []models.OrderItem
	ShowTax         bool
	ShowShipping    bool
	ShowDiscount    bool
	PaymentStatus   string
	PaymentMethod   string
	CustomerContact []string
}

func (s *InvoiceService) RenderInvoice(order *models.Order) (string, error) {
	number := ""
	if order.InvoiceNumber != nil {
		number = *order.InvoiceNumber
	}

	shipping := order.ShippingAddress.Data()
	billing := order.BillingAddress.Data()

	view := invoiceView{
		Company:         s.config.Company,
		Order:           order,
		InvoiceNumber:   number,
		IssuedAt:        s.now(),
		Items:           order.Items,
		ShowTax:         order.TaxAmount > 0,
		ShowShipping:    order.ShippingAmount > 0,
		ShowDiscount:    order.DiscountAmount > 0,
		PaymentStatus:   string(order.PaymentStatus),
		PaymentMethod:   order.PaymentMethod,
		CustomerContact: nonEmptyStrings(order.CustomerName, order.CustomerEmail, order.CustomerPhone),
	}
	if !billing.IsEmpty() {
		view.BillingLines = billing.Lines()
	}
	if !shipping.IsEmpty() {
		view.ShippingLines = shipping.Lines()
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render invoice: %w", err)
	}
	return buf.String(), nil
}

func (s *InvoiceService) archive(invoice *Invoice) {
	if !s.storage.Enabled() {
		return
	}

	key := fmt.Sprintf("%s/%s.html", invoiceArchiveStore, invoice.InvoiceNumber)
	if _, err := s.storage.PutObject(key, invoiceContentType, []byte(invoice.HTML), false); err != nil {
		logrus.WithError(err).WithField("invoice_number", invoice.InvoiceNumber).Warn("Failed to archive invoice")
	}
}

func (s *InvoiceService) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &order, nil
}

func nonEmptyStrings(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Invoice {{.InvoiceNumber}}</title>
<style>
	body { font-family: Helvetica, Arial, sans-serif; color: #2d2a26; margin: 40px; }
	h1 { color: #8a4b2a; margin-bottom: 0; }
	.muted { color: #7a746d; }
	.row { display: flex; justify-content: space-between; margin-top: 24px; }
	.block { width: 32%; }
	table { width: 100%; border-collapse: collapse; margin-top: 32px; }
	th, td { padding: 8px; border-bottom: 1px solid #e6e0d8; text-align: left; }
	td.num, th.num { text-align: right; }
	.totals { width: 40%; margin-left: auto; margin-top: 16px; }
	.totals td { border: none; }
	.grand td { font-weight: bold; border-top: 2px solid #2d2a26; }
</style>
</head>
<body>
	<div class="row">
		<div>
			<h1>{{.Company.Name}}</h1>
			{{with .Company.Address}}<div class="muted">{{.}}</div>{{end}}
			{{with .Company.Email}}<div class="muted">{{.}}</div>{{end}}
			{{with .Company.Phone}}<div class="muted">{{.}}</div>{{end}}
			{{with .Company.Website}}<div class="muted">{{.}}</div>{{end}}
			{{with .Company.TaxID}}<div class="muted">GSTIN: {{.}}</div>{{end}}
		</div>
		<div>
			<h2>INVOICE</h2>
			<div>Invoice No: <strong>{{.InvoiceNumber}}</strong></div>
			<div>Order No: {{.Order.OrderNumber}}</div>
			<div>Invoice Date: {{date .IssuedAt}}</div>
			<div>Order Date: {{date .Order.CreatedAt}}</div>
			<div>Payment: {{.PaymentStatus}}{{with .PaymentMethod}} ({{.}}){{end}}</div>
		</div>
	</div>

	<div class="row">
		<div class="block">
			<h3>Customer</h3>
			{{range .CustomerContact}}<div>{{.}}</div>{{else}}<div class="muted">Customer details not available</div>{{end}}
		</div>
		<div class="block">
			<h3>Bill To</h3>
			{{range .BillingLines}}<div>{{.}}</div>{{else}}<div class="muted">Billing address not provided</div>{{end}}
		</div>
		<div class="block">
			<h3>Ship To</h3>
			{{range .ShippingLines}}<div>{{.}}</div>{{else}}<div class="muted">Shipping address not provided</div>{{end}}
		</div>
	</div>

	<table>
		<thead>
			<tr>
				<th>#</th>
				<th>Item</th>
				<th>SKU</th>
				<th class="num">Qty</th>
				<th class="num">Unit Price</th>
				<th class="num">Amount</th>
			</tr>
		</thead>
		<tbody>
			{{range $i, $item := .Items}}
			<tr>
				<td>{{inc $i}}</td>
				<td>{{$item.ProductName}}</td>
				<td>{{$item.ProductSKU}}</td>
				<td class="num">{{$item.Quantity}}</td>
				<td class="num">{{money $item.UnitPrice}}</td>
				<td class="num">{{money $item.TotalPrice}}</td>
			</tr>
			{{end}}
		</tbody>
	</table>

	<table class="totals">
		<tr><td>Subtotal</td><td class="num">{{money .Order.Subtotal}}</td></tr>
		{{if .ShowTax}}<tr><td>Tax</td><td class="num">{{money .Order.TaxAmount}}</td></tr>{{end}}
		{{if .ShowShipping}}<tr><td>Shipping</td><td class="num">{{money .Order.ShippingAmount}}</td></tr>{{end}}
		{{if .ShowDiscount}}<tr><td>Discount</td><td class="num">-{{money .Order.DiscountAmount}}</td></tr>{{end}}
		<tr class="grand"><td>Total</td><td class="num">{{money .Order.TotalAmount}}</td></tr>
	</table>

	<p class="muted">Thank you for supporting handmade pottery.</p>
</body>
</html>`
