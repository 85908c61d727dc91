// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clayfire/storefront-api/internal/config"
	"github.com/clayfire/storefront-api/internal/models"
	"github.com/clayfire/storefront-api/internal/utils"
)

type NotificationService struct {
	config *config.Config
	send   func(to, subject, body string) error
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(config *config.Config) *NotificationService {
	s := &NotificationService{config: config}
	s.send = s.sendEmail
	return s
}

// SendInvoiceEmail mails the rendered invoice to the order's customer.
func (s *NotificationService) SendInvoiceEmail(order *models.Order, invoice *Invoice) error {
	if order.CustomerEmail == "" {
		return fmt.Errorf("order %s has no customer email", order.OrderNumber)
	}

	subject := fmt.Sprintf("Invoice %s for order %s - %s", invoice.InvoiceNumber, order.OrderNumber, s.config.Company.Name)
	return s.send(order.CustomerEmail, subject, invoice.HTML)
}

func (s *NotificationService) SendOrderConfirmationEmail(order *models.Order) error {
	data := map[string]interface{}{
		"CustomerName": customerName(order),
		"OrderNumber":  order.OrderNumber,
		"Total":        utils.FormatCurrency(s.config.Store.CurrencySymbol, order.TotalAmount),
		"OrderURL":     fmt.Sprintf("%s/orders/%s", s.config.Frontend.BaseURL, order.ID),
		"StoreName":    s.config.Company.Name,
	}

	template := s.getEmailTemplate("order_confirmation")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.send(order.CustomerEmail, fmt.Sprintf(template.Subject, order.OrderNumber), body)
}

func (s *NotificationService) SendOrderStatusEmail(order *models.Order) error {
	data := map[string]interface{}{
		"CustomerName": customerName(order),
		"OrderNumber":  order.OrderNumber,
		"Status":       statusLabel(order.Status),
		"OrderURL":     fmt.Sprintf("%s/orders/%s", s.config.Frontend.BaseURL, order.ID),
		"StoreName":    s.config.Company.Name,
	}

	template := s.getEmailTemplate("order_status")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.send(order.CustomerEmail, fmt.Sprintf(template.Subject, order.OrderNumber), body)
}

func customerName(order *models.Order) string {
	if order.CustomerName != "" {
		return order.CustomerName
	}
	return "there"
}

func statusLabel(status models.OrderStatus) string {
	label := string(status)
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// Helper methods
func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("SMTP not configured, email not sent")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	from := s.config.Email.FromEmail
	if s.config.Email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.Email.FromName, s.config.Email.FromEmail)
	}

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", from, to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	if err := smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("Email sent")
	return nil
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		"order_confirmation": {
			Subject: "We received your order %s",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Thank you, {{.CustomerName}}!</h2>
	<p>Your order <strong>{{.OrderNumber}}</strong> for {{.Total}} has been placed.</p>
	<p>We will email your invoice as soon as the payment is confirmed.</p>
	<a href="{{.OrderURL}}">View your order</a>
	<p>Warm regards,<br>{{.StoreName}}</p>
</body>
</html>`,
		},
		"order_status": {
			Subject: "Update on your order %s",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Hello {{.CustomerName}},</h2>
	<p>Your order <strong>{{.OrderNumber}}</strong> is now <strong>{{.Status}}</strong>.</p>
	<a href="{{.OrderURL}}">Track your order</a>
	<p>Warm regards,<br>{{.StoreName}}</p>
</body>
</html>`,
		},
	}

	if template, exists := templates[templateType]; exists {
		return template
	}

	// Default template
	return EmailTemplate{
		Subject: "Notification %s",
		Body:    "<p>{{.OrderNumber}}</p>",
	}
}
