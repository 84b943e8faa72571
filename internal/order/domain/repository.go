package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/emberhollow/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListOrdersFilter struct {
	Status string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	InsertItems(ctx context.Context, db *gorm.DB, items []OrderItem) error
	InsertEvent(ctx context.Context, db *gorm.DB, event *OrderEvent) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*Order, error)
	FindByFulfillmentID(ctx context.Context, db *gorm.DB, printfulOrderID string) (*Order, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, metadata map[string]any) error
	SetFulfillmentID(ctx context.Context, db *gorm.DB, id snowflake.ID, printfulOrderID string, status Status) error
	List(ctx context.Context, db *gorm.DB, filter ListOrdersFilter, page pagination.Pagination) ([]*Order, error)
	ListEvents(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderEvent, error)
}
