package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emberhollow/storefront/internal/order/domain"
	obsmetrics "github.com/emberhollow/storefront/internal/observability/metrics"
	"github.com/emberhollow/storefront/pkg/db"
	"github.com/emberhollow/storefront/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	sessionID := strings.TrimSpace(req.StripeSessionID)
	if sessionID == "" {
		return nil, domain.ErrInvalidRequest
	}
	email := strings.TrimSpace(req.CustomerEmail)
	if email == "" {
		return nil, domain.ErrInvalidRequest
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, domain.ErrInvalidRequest
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:                    s.genID.Generate(),
		StripeSessionID:       sessionID,
		StripePaymentIntentID: strings.TrimSpace(req.StripePaymentIntentID),
		Status:                domain.StatusPending,
		CustomerEmail:         email,
		CustomerName:          strings.TrimSpace(req.CustomerName),
		TotalAmount:           req.TotalAmount,
		Currency:              currency,
		ShippingAddress:       datatypes.JSONMap(req.ShippingAddress),
		Metadata:              jsonMap(req.Metadata),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		items = append(items, domain.OrderItem{
			ID:         s.genID.Generate(),
			OrderID:    order.ID,
			ProductID:  strings.TrimSpace(item.ProductID),
			VariantID:  strings.TrimSpace(item.VariantID),
			Name:       item.Name,
			Quantity:   quantity,
			UnitAmount: item.UnitAmount,
			ImageURL:   item.ImageURL,
			CreatedAt:  now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, order); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return err
		}
		return s.repo.InsertEvent(ctx, tx, &domain.OrderEvent{
			ID:        s.genID.Generate(),
			OrderID:   order.ID,
			EventType: domain.EventCreated,
			Outcome:   domain.OutcomeSuccess,
			Message:   "order created from checkout session " + sessionID,
			Metadata:  datatypes.JSONMap{"stripe_session_id": sessionID},
			CreatedAt: now,
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateSession
		}
		return nil, err
	}

	order.Items = items
	s.obsMetrics.RecordOrderCreated(ctx, currency)
	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("stripe_session_id", sessionID),
		zap.Int64("total_amount", order.TotalAmount),
		zap.String("currency", currency),
	)
	return order, nil
}

func (s *Service) UpdateStatus(ctx context.Context, orderID snowflake.ID, status domain.Status, metadata map[string]any) error {
	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrNotFound
	}
	if order.Status == status && len(metadata) == 0 {
		// replayed webhook, nothing to do
		return nil
	}
	if !domain.CanTransition(order.Status, status) {
		s.log.Warn("rejected status transition",
			zap.String("order_id", orderID.String()),
			zap.String("from", string(order.Status)),
			zap.String("to", string(status)),
		)
		return domain.ErrInvalidTransition
	}

	if err := s.repo.UpdateStatus(ctx, s.db, orderID, status, metadata); err != nil {
		return err
	}

	if order.Status != status {
		s.AppendEvent(ctx, orderID, domain.EventStatusChanged, domain.OutcomeSuccess,
			"status changed from "+string(order.Status)+" to "+string(status),
			map[string]any{"from": string(order.Status), "to": string(status)},
		)
	}
	return nil
}

func (s *Service) AttachFulfillmentID(ctx context.Context, orderID snowflake.ID, printfulOrderID string) error {
	printfulOrderID = strings.TrimSpace(printfulOrderID)
	if printfulOrderID == "" {
		return domain.ErrInvalidRequest
	}

	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(order.Status, domain.StatusProcessing) {
		return domain.ErrInvalidTransition
	}

	if err := s.repo.SetFulfillmentID(ctx, s.db, orderID, printfulOrderID, domain.StatusProcessing); err != nil {
		return err
	}

	s.AppendEvent(ctx, orderID, domain.EventFulfillmentCreated, domain.OutcomeSuccess,
		"fulfillment order "+printfulOrderID+" submitted",
		map[string]any{"printful_order_id": printfulOrderID},
	)
	return nil
}

func (s *Service) FindBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.ErrInvalidRequest
	}
	return s.repo.FindBySessionID(ctx, s.db, sessionID)
}

func (s *Service) FindByFulfillmentID(ctx context.Context, printfulOrderID string) (*domain.Order, error) {
	printfulOrderID = strings.TrimSpace(printfulOrderID)
	if printfulOrderID == "" {
		return nil, domain.ErrInvalidRequest
	}
	return s.repo.FindByFulfillmentID(ctx, s.db, printfulOrderID)
}

func (s *Service) List(ctx context.Context, req domain.ListOrdersRequest) (domain.ListOrdersResponse, error) {
	pageSize := int(req.PageSize)
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 250 {
		pageSize = 250
	}

	orders, err := s.repo.List(ctx, s.db, domain.ListOrdersFilter{Status: req.Status}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListOrdersResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(orders, int32(pageSize), func(order *domain.Order) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: order.ID.String()})
		return token
	})

	if len(orders) > pageSize {
		orders = orders[:pageSize]
	}
	result := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		result = append(result, *order)
	}
	return domain.ListOrdersResponse{PageInfo: *pageInfo, Orders: result}, nil
}

func (s *Service) ListEvents(ctx context.Context, orderID snowflake.ID) ([]domain.OrderEvent, error) {
	return s.repo.ListEvents(ctx, s.db, orderID)
}

func (s *Service) AppendEvent(ctx context.Context, orderID snowflake.ID, eventType, outcome, message string, metadata map[string]any) {
	event := &domain.OrderEvent{
		ID:        s.genID.Generate(),
		OrderID:   orderID,
		EventType: eventType,
		Outcome:   outcome,
		Message:   message,
		Metadata:  jsonMap(metadata),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertEvent(ctx, s.db, event); err != nil {
		// audit loss is reported, never propagated
		s.log.Error("failed to append order event",
			zap.String("order_id", orderID.String()),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func jsonMap(m map[string]any) datatypes.JSONMap {
	if m == nil {
		return datatypes.JSONMap{}
	}
	return datatypes.JSONMap(m)
}
