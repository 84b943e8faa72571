package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/emberhollow/storefront/pkg/db/pagination"
)

type CreateOrderItem struct {
	ProductID  string
	VariantID  string
	Name       string
	Quantity   int
	UnitAmount int64
	ImageURL   string
}

type CreateOrderRequest struct {
	StripeSessionID       string
	StripePaymentIntentID string
	CustomerEmail         string
	CustomerName          string
	TotalAmount           int64
	Currency              string
	ShippingAddress       map[string]any
	Metadata              map[string]any
	Items                 []CreateOrderItem
}

type ListOrdersRequest struct {
	PageToken string
	PageSize  int32
	Status    string
}

type ListOrdersResponse struct {
	pagination.PageInfo
	Orders []Order `json:"orders"`
}

type Service interface {
	// Create inserts the order header, its items and a "created" event in one
	// transaction. A session id that already exists fails with
	// ErrDuplicateSession so callers can treat the race as already-handled.
	Create(ctx context.Context, req CreateOrderRequest) (*Order, error)

	// UpdateStatus moves the order through the transition table and appends a
	// status_changed event. Illegal moves fail with ErrInvalidTransition and
	// leave the row untouched.
	UpdateStatus(ctx context.Context, orderID snowflake.ID, status Status, metadata map[string]any) error

	// AttachFulfillmentID records the fulfillment-provider order id, moves the
	// order to processing and appends a fulfillment_created event.
	AttachFulfillmentID(ctx context.Context, orderID snowflake.ID, printfulOrderID string) error

	FindBySessionID(ctx context.Context, sessionID string) (*Order, error)
	FindByFulfillmentID(ctx context.Context, printfulOrderID string) (*Order, error)
	List(ctx context.Context, req ListOrdersRequest) (ListOrdersResponse, error)
	ListEvents(ctx context.Context, orderID snowflake.ID) ([]OrderEvent, error)

	// AppendEvent writes an audit row. It never returns an error: losing an
	// audit row must not abort the business transaction that triggered it, so
	// failures go to the operational log instead.
	AppendEvent(ctx context.Context, orderID snowflake.ID, eventType, outcome, message string, metadata map[string]any)
}

var (
	ErrNotFound          = errors.New("order_not_found")
	ErrDuplicateSession  = errors.New("duplicate_session")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrInvalidRequest    = errors.New("invalid_order_request")
)
