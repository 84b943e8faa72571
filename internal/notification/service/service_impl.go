package service

import (
	"context"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/emberhollow/storefront/internal/config"
	notificationdomain "github.com/emberhollow/storefront/internal/notification/domain"
	obsmetrics "github.com/emberhollow/storefront/internal/observability/metrics"
	orderdomain "github.com/emberhollow/storefront/internal/order/domain"
	"github.com/emberhollow/storefront/internal/providers/email"
	"github.com/emberhollow/storefront/internal/providers/pdf"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Email      email.Provider
	PDF        pdf.Provider
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	log     *zap.Logger
	cfg     config.Config
	email   email.Provider
	pdf     pdf.Provider
	metrics *obsmetrics.Metrics
}

func NewService(p Params) notificationdomain.Service {
	return &service{
		log:     p.Log.Named("notification.service"),
		cfg:     p.Config,
		email:   p.Email,
		pdf:     p.PDF,
		metrics: p.ObsMetrics,
	}
}

func (s *service) SendOrderConfirmation(ctx context.Context, order *orderdomain.Order) bool {
	if order == nil || strings.TrimSpace(order.CustomerEmail) == "" {
		return false
	}

	subject := "Your Ember Hollow order is confirmed"
	body := s.confirmationBody(order)

	var attachments []email.Attachment
	if receipt := s.buildReceipt(ctx, order); receipt != nil {
		attachments = append(attachments, email.Attachment{
			Filename: fmt.Sprintf("receipt-%s.pdf", order.ID.String()),
			MIMEType: "application/pdf",
			Content:  receipt,
		})
	}

	err := s.email.SendWithAttachments(ctx, []string{order.CustomerEmail}, subject, body, attachments)
	if err != nil {
		s.log.Error("order confirmation email failed",
			zap.String("order_id", order.ID.String()),
			zap.String("customer_email", order.CustomerEmail),
			zap.Error(err),
		)
		s.metrics.RecordNotification(ctx, "order_confirmation", "failed")
		return false
	}

	s.log.Info("order confirmation sent",
		zap.String("order_id", order.ID.String()),
		zap.String("customer_email", order.CustomerEmail),
	)
	s.metrics.RecordNotification(ctx, "order_confirmation", "success")
	return true
}

func (s *service) SendPaymentFailure(ctx context.Context, customerEmail string, sessionID string) bool {
	customerEmail = strings.TrimSpace(customerEmail)
	if customerEmail == "" {
		return false
	}

	subject := "There was a problem with your Ember Hollow payment"
	body := fmt.Sprintf(
		"<p>Hi,</p>"+
			"<p>Your recent payment could not be completed, so your order has not been placed. "+
			"No charge will be made for this attempt.</p>"+
			"<p>You can try again at any time from the shop. If you believe this is a mistake, "+
			"reply to this email and include the reference below.</p>"+
			"<p>Reference: %s</p>",
		html.EscapeString(sessionID),
	)

	if err := s.email.Send(ctx, []string{customerEmail}, subject, body); err != nil {
		s.log.Error("payment failure email failed",
			zap.String("session_id", sessionID),
			zap.String("customer_email", customerEmail),
			zap.Error(err),
		)
		s.metrics.RecordNotification(ctx, "payment_failure", "failed")
		return false
	}

	s.metrics.RecordNotification(ctx, "payment_failure", "success")
	return true
}

func (s *service) SendOperatorAlert(ctx context.Context, alert notificationdomain.Alert) bool {
	to := strings.TrimSpace(s.cfg.AdminAlertEmail)
	if to == "" {
		s.log.Warn("operator alert dropped, no admin alert email configured",
			zap.String("subject", alert.Subject),
		)
		s.metrics.RecordNotification(ctx, "operator_alert", "skipped")
		return false
	}

	var body strings.Builder
	body.WriteString("<p>" + html.EscapeString(alert.Summary) + "</p>")
	if len(alert.Fields) > 0 {
		keys := make([]string, 0, len(alert.Fields))
		for key := range alert.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		body.WriteString("<ul>")
		for _, key := range keys {
			body.WriteString("<li><strong>" + html.EscapeString(key) + ":</strong> " +
				html.EscapeString(alert.Fields[key]) + "</li>")
		}
		body.WriteString("</ul>")
	}
	if alert.Remediation != "" {
		body.WriteString("<p><strong>Next steps:</strong> " + html.EscapeString(alert.Remediation) + "</p>")
	}

	if err := s.email.Send(ctx, []string{to}, "[storefront] "+alert.Subject, body.String()); err != nil {
		s.log.Error("operator alert email failed",
			zap.String("subject", alert.Subject),
			zap.Error(err),
		)
		s.metrics.RecordNotification(ctx, "operator_alert", "failed")
		return false
	}

	s.metrics.RecordNotification(ctx, "operator_alert", "success")
	return true
}

func (s *service) confirmationBody(order *orderdomain.Order) string {
	var body strings.Builder
	name := strings.TrimSpace(order.CustomerName)
	if name == "" {
		name = "there"
	}
	body.WriteString("<p>Hi " + html.EscapeString(name) + ",</p>")
	body.WriteString("<p>Thanks for your order! It is now being prepared for fulfillment. " +
		"We'll email you again when it ships.</p>")
	body.WriteString("<ul>")
	for _, item := range order.Items {
		body.WriteString(fmt.Sprintf("<li>%s &times; %d</li>", html.EscapeString(item.Name), item.Quantity))
	}
	body.WriteString("</ul>")
	body.WriteString("<p>Order total: " + formatAmount(order.TotalAmount, order.Currency) + "</p>")
	body.WriteString("<p>Order reference: " + html.EscapeString(order.StripeSessionID) + "</p>")
	return body.String()
}

func (s *service) buildReceipt(ctx context.Context, order *orderdomain.Order) []byte {
	items := make([]pdf.ReceiptItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, pdf.ReceiptItem{
			Description: item.Name,
			Qty:         int64(item.Quantity),
			UnitPrice:   formatAmount(item.UnitAmount, order.Currency),
			Amount:      formatAmount(item.UnitAmount*int64(item.Quantity), order.Currency),
		})
	}

	reader, err := s.pdf.GenerateReceipt(ctx, pdf.ReceiptData{
		OrderNumber:   order.ID.String(),
		DatePaid:      order.CreatedAt.Format("Jan 2, 2006"),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		ShipToName:    order.CustomerName,
		ShipToAddress: shippingLine(order),
		Total:         formatAmount(order.TotalAmount, order.Currency),
		Items:         items,
	})
	if err != nil {
		s.log.Warn("receipt generation failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil
	}
	if reader == nil {
		return nil
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil
	}
	return content
}

func shippingLine(order *orderdomain.Order) string {
	if order.ShippingAddress == nil {
		return ""
	}
	parts := []string{}
	for _, key := range []string{"line1", "line2", "city", "state", "postal_code", "country"} {
		if value, ok := order.ShippingAddress[key].(string); ok && strings.TrimSpace(value) != "" {
			parts = append(parts, strings.TrimSpace(value))
		}
	}
	return strings.Join(parts, ", ")
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(cents)/100, strings.ToUpper(currency))
}
