package domain

import (
	"context"

	orderdomain "github.com/emberhollow/storefront/internal/order/domain"
)

// Alert is an operator-facing notification about a reconciliation
// failure. Fields carry the raw identifiers an operator needs to
// recover manually.
type Alert struct {
	Subject     string
	Summary     string
	Remediation string
	Fields      map[string]string
}

// Service sends best-effort outbound email. Every method reports
// whether the message went out but never returns an error; a lost
// notification must not abort the reconciliation that triggered it.
type Service interface {
	SendOrderConfirmation(ctx context.Context, order *orderdomain.Order) bool
	SendPaymentFailure(ctx context.Context, customerEmail string, sessionID string) bool
	SendOperatorAlert(ctx context.Context, alert Alert) bool
}
