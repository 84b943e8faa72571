package domain

import (
	"context"
	"errors"
	"fmt"

	checkoutdomain "github.com/emberhollow/storefront/internal/checkout/domain"
)

var (
	ErrInvalidConfig    = errors.New("invalid_config")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrMissingOrderID   = errors.New("missing_order_id")
	ErrVariantNotFound  = errors.New("variant_not_found")
)

// Provider webhook event types.
const (
	EventPackageShipped  = "package_shipped"
	EventPackageReturned = "package_returned"
	EventOrderFailed     = "order_failed"
	EventOrderCanceled   = "order_canceled"
)

// ProviderError is a business failure reported by the fulfillment
// provider, as opposed to a transport failure reaching it.
type ProviderError struct {
	Code    int
	Reason  string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("printful: %s (%d)", e.Message, e.Code)
	}
	return fmt.Sprintf("printful: request failed (%d)", e.Code)
}

// SyncVariant is the provider's store-scoped variant record. The
// catalog variant id appears either at the top level or nested under
// the product, depending on the endpoint and API version.
type SyncVariant struct {
	ID        int64               `json:"id"`
	Name      string              `json:"name"`
	VariantID int64               `json:"variant_id"`
	Product   *SyncVariantProduct `json:"product"`
}

type SyncVariantProduct struct {
	VariantID int64  `json:"variant_id"`
	Name      string `json:"name"`
}

type Recipient struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"state_code,omitempty"`
	CountryCode string `json:"country_code"`
	Zip         string `json:"zip"`
}

type OrderItem struct {
	VariantID int64  `json:"variant_id"`
	Quantity  int64  `json:"quantity"`
	Name      string `json:"name,omitempty"`
}

// ProviderOrderRequest is the order submitted to the provider.
type ProviderOrderRequest struct {
	ExternalID string      `json:"external_id,omitempty"`
	Recipient  Recipient   `json:"recipient"`
	Items      []OrderItem `json:"items"`
}

type ProviderOrder struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

type Client interface {
	// GetSyncVariant returns ErrVariantNotFound for unknown ids.
	GetSyncVariant(ctx context.Context, syncVariantID string) (*SyncVariant, error)
	CreateOrder(ctx context.Context, req *ProviderOrderRequest) (*ProviderOrder, error)
}

// Resolver converts a store sync variant id into the provider's
// catalog variant id. Not-found, malformed responses and transport
// failures all report as not resolved.
type Resolver interface {
	ResolveCatalogVariant(ctx context.Context, syncVariantID string) (int64, bool)
}

// OrderRequest is the recipient and item data extracted from a paid
// checkout session, before variant resolution.
type OrderRequest struct {
	SessionID     string
	SyncVariantID string
	Recipient     Recipient
	Quantity      int64
	ItemName      string
}

// SubmitResult is always returned, success or not. Failure kinds let
// the caller alert differently for provider rejections and transport
// errors.
type SubmitResult struct {
	Success            bool
	FulfillmentOrderID string
	ErrorKind          string
	ErrorMessage       string
}

const (
	ErrorKindProvider  = "provider"
	ErrorKindTransport = "transport"
)

type Submitter interface {
	// BuildFromSession returns nil when the session lacks shipping
	// details, a customer email or the sync variant metadata.
	BuildFromSession(session *checkoutdomain.Session) *OrderRequest
	Submit(ctx context.Context, req *OrderRequest, catalogVariantID int64) SubmitResult
}

// Shipment accompanies package_shipped events.
type Shipment struct {
	ID             int64  `json:"id"`
	Carrier        string `json:"carrier"`
	Service        string `json:"service"`
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
}

// WebhookEvent is a verified, parsed fulfillment provider event.
// OrderID is zero when the payload carried no order reference.
type WebhookEvent struct {
	Type       string
	OrderID    int64
	Shipment   *Shipment
	Reason     string
	RawPayload []byte
}

// Verifier authenticates and parses raw webhook deliveries.
type Verifier interface {
	ConstructEvent(payload []byte, signature string) (*WebhookEvent, error)
}
