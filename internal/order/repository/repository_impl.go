package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/emberhollow/storefront/internal/order/domain"
	"github.com/emberhollow/storefront/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Omit("Items").Create(order).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.OrderEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Preload("Items").First(&order, "stripe_session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindByFulfillmentID(ctx context.Context, db *gorm.DB, printfulOrderID string) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Preload("Items").First(&order, "printful_order_id = ?", printfulOrderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, metadata map[string]any) error {
	if len(metadata) == 0 {
		return db.WithContext(ctx).Exec(
			`UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			status, id,
		).Error
	}

	var current datatypes.JSONMap
	if err := db.WithContext(ctx).Raw(
		`SELECT metadata FROM orders WHERE id = ?`, id,
	).Scan(&current).Error; err != nil {
		return err
	}
	if current == nil {
		current = datatypes.JSONMap{}
	}
	for key, value := range metadata {
		if strings.TrimSpace(key) == "" {
			continue
		}
		current[key] = value
	}

	return db.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, metadata = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, current, id,
	).Error
}

func (r *repo) SetFulfillmentID(ctx context.Context, db *gorm.DB, id snowflake.ID, printfulOrderID string, status domain.Status) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET printful_order_id = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		printfulOrderID, status, id,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListOrdersFilter, page pagination.Pagination) ([]*domain.Order, error) {
	query := db.WithContext(ctx).Model(&domain.Order{}).Preload("Items").Order("id DESC")
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if cursor, err := pagination.DecodeCursor(page.PageToken); err == nil && cursor != nil && cursor.ID != "" {
		query = query.Where("id < ?", cursor.ID)
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 10
	}

	var orders []*domain.Order
	if err := query.Limit(limit + 1).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) ListEvents(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.OrderEvent, error) {
	var events []domain.OrderEvent
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
