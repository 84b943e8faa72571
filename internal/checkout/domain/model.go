package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidConfig    = errors.New("invalid_config")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrUnknownProduct   = errors.New("unknown_product")
	ErrInvalidRequest   = errors.New("invalid_request")
)

// Provider event types handled by the payment webhook path.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
)

// Metadata keys written at session creation and read back during
// webhook handling. Both sides must agree on these names.
const (
	MetadataVariantKey = "printful_variant_id"
	MetadataProductKey = "product_id"
)

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type ShippingDetails struct {
	Name    string  `json:"name"`
	Address Address `json:"address"`
}

type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type SessionPrice struct {
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

type SessionLineItem struct {
	Description string        `json:"description"`
	Quantity    int64         `json:"quantity"`
	AmountTotal int64         `json:"amount_total"`
	Price       *SessionPrice `json:"price"`
}

type SessionLineItemList struct {
	Data []SessionLineItem `json:"data"`
}

// Session is the payment provider's checkout session. Webhook payloads
// carry a partial view; RetrieveSession returns the expanded form with
// line items and shipping details.
type Session struct {
	ID              string              `json:"id"`
	URL             string              `json:"url"`
	PaymentIntentID string              `json:"payment_intent"`
	PaymentStatus   string              `json:"payment_status"`
	AmountTotal     int64               `json:"amount_total"`
	Currency        string              `json:"currency"`
	CustomerDetails *CustomerDetails    `json:"customer_details"`
	ShippingDetails *ShippingDetails    `json:"shipping_details"`
	Metadata        map[string]string   `json:"metadata"`
	LineItems       SessionLineItemList `json:"line_items"`
}

func (s *Session) MetadataValue(key string) string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(s.Metadata[key])
}

func (s *Session) CustomerEmail() string {
	if s == nil || s.CustomerDetails == nil {
		return ""
	}
	return strings.TrimSpace(s.CustomerDetails.Email)
}

func (s *Session) CustomerName() string {
	if s == nil || s.CustomerDetails == nil {
		return ""
	}
	return strings.TrimSpace(s.CustomerDetails.Name)
}

// WebhookEvent is a verified, parsed payment provider event.
type WebhookEvent struct {
	ID         string
	Type       string
	OccurredAt time.Time
	Session    Session
	RawPayload []byte
}

// CreateSessionParams is the provider-facing session request.
type CreateSessionParams struct {
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	ProductName   string
	ImageURL      string
	UnitAmount    int64
	Currency      string
	Quantity      int64
	Metadata      map[string]string
}

type SessionClient interface {
	CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}

// Verifier authenticates and parses raw webhook deliveries.
type Verifier interface {
	ConstructEvent(payload []byte, sigHeader string) (*WebhookEvent, error)
}

type CreateCheckoutRequest struct {
	ProductID     string `json:"product_id"`
	Quantity      int64  `json:"quantity"`
	CustomerEmail string `json:"customer_email"`
}

type CreateCheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

type Service interface {
	CreateCheckout(ctx context.Context, req CreateCheckoutRequest) (*CreateCheckoutResponse, error)
}
