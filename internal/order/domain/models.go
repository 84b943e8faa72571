package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the lifecycle state of an order. Transitions are constrained by
// the transition table below; webhook handlers must not blindly overwrite.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReturned   Status = "returned"
	StatusCancelled  Status = "cancelled"
)

// transitions is the set of allowed status moves. A returned order does not
// go back to shipped: re-fulfillment is an operator action that creates a
// fresh fulfillment order.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusReturned, StatusFailed, StatusCancelled},
	StatusShipped:    {StatusCompleted, StatusReturned, StatusFailed},
}

// CanTransition reports whether moving from one status to another is legal.
// A same-status move is always legal so webhook redelivery stays a no-op.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is the durable record of one completed checkout session. Exactly one
// order may exist per session; the unique index on StripeSessionID is the
// authoritative guard against duplicate webhook processing.
type Order struct {
	ID                    snowflake.ID      `gorm:"primaryKey" json:"id"`
	StripeSessionID       string            `gorm:"uniqueIndex;not null" json:"stripe_session_id"`
	StripePaymentIntentID string            `json:"stripe_payment_intent_id,omitempty"`
	PrintfulOrderID       string            `gorm:"index" json:"printful_order_id,omitempty"`
	Status                Status            `gorm:"index;not null;default:'pending'" json:"status"`
	CustomerEmail         string            `gorm:"not null" json:"customer_email"`
	CustomerName          string            `json:"customer_name,omitempty"`
	TotalAmount           int64             `gorm:"not null" json:"total_amount"`
	Currency              string            `gorm:"not null" json:"currency"`
	ShippingAddress       datatypes.JSONMap `gorm:"type:jsonb" json:"shipping_address,omitempty"`
	Metadata              datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt             time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time         `gorm:"not null" json:"updated_at"`

	Items []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is one purchased line. Immutable once written.
type OrderItem struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID    snowflake.ID `gorm:"not null;index" json:"order_id"`
	ProductID  string       `gorm:"not null" json:"product_id"`
	VariantID  string       `gorm:"not null" json:"variant_id"`
	Name       string       `gorm:"not null" json:"name"`
	Quantity   int          `gorm:"not null" json:"quantity"`
	UnitAmount int64        `gorm:"not null" json:"unit_amount"`
	ImageURL   string       `json:"image_url,omitempty"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (OrderItem) TableName() string { return "order_items" }

// OrderEvent is the append-only audit trail. Rows are never updated or
// deleted; this is the forensic record for payment/fulfillment mismatches.
type OrderEvent struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrderID   snowflake.ID      `gorm:"not null;index" json:"order_id"`
	EventType string            `gorm:"not null" json:"event_type"`
	Outcome   string            `gorm:"not null" json:"outcome"`
	Message   string            `gorm:"not null" json:"message"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
}

func (OrderEvent) TableName() string { return "order_events" }

// Known order event vocabulary.
const (
	EventCreated            = "created"
	EventStatusChanged      = "status_changed"
	EventFulfillmentCreated = "fulfillment_created"
	EventShipped            = "shipped"
	EventReturned           = "returned"
	EventFailed             = "failed"
	EventCancelled          = "cancelled"
	EventNotificationSent   = "notification_sent"
)

// Event outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)
