package service

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	checkoutdomain "github.com/emberhollow/storefront/internal/checkout/domain"
	"github.com/emberhollow/storefront/internal/config"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	Catalog *config.CatalogHolder
	Client  checkoutdomain.SessionClient
}

type service struct {
	log     *zap.Logger
	cfg     config.Config
	catalog *config.CatalogHolder
	client  checkoutdomain.SessionClient
}

func NewService(p Params) checkoutdomain.Service {
	return &service{
		log:     p.Log.Named("checkout.service"),
		cfg:     p.Config,
		catalog: p.Catalog,
		client:  p.Client,
	}
}

func (s *service) CreateCheckout(
	ctx context.Context,
	req checkoutdomain.CreateCheckoutRequest,
) (*checkoutdomain.CreateCheckoutResponse, error) {
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		return nil, checkoutdomain.ErrInvalidRequest
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	product, ok := s.catalog.Get().FindByProductID(productID)
	if !ok {
		return nil, checkoutdomain.ErrUnknownProduct
	}

	session, err := s.client.CreateSession(ctx, checkoutdomain.CreateSessionParams{
		SuccessURL:    s.cfg.PublicBaseURL + "/shop/thanks?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.PublicBaseURL + "/shop/" + product.Slug,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		ProductName:   product.Name,
		ImageURL:      product.ImageURL,
		UnitAmount:    product.UnitAmount,
		Currency:      product.Currency,
		Quantity:      quantity,
		Metadata: map[string]string{
			checkoutdomain.MetadataVariantKey: product.SyncVariantID,
			checkoutdomain.MetadataProductKey: product.ProductID,
		},
	})
	if err != nil {
		s.log.Error("create checkout session failed",
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("product_id", productID),
		zap.Int64("quantity", quantity),
	)
	return &checkoutdomain.CreateCheckoutResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}
