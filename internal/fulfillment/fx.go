package fulfillment

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/emberhollow/storefront/internal/config"
	"github.com/emberhollow/storefront/internal/fulfillment/domain"
	"github.com/emberhollow/storefront/internal/fulfillment/printful"
	"github.com/emberhollow/storefront/internal/fulfillment/resolver"
	"github.com/emberhollow/storefront/internal/fulfillment/service"
)

var Module = fx.Module("fulfillment.service",
	fx.Provide(func(cfg config.Config) domain.Client {
		return printful.NewClient(cfg.PrintfulAPIToken, cfg.PrintfulStoreID)
	}),
	fx.Provide(func(cfg config.Config) domain.Verifier {
		return printful.NewVerifier(cfg.PrintfulWebhookSecret)
	}),
	fx.Provide(func(log *zap.Logger, client domain.Client) domain.Resolver {
		return resolver.New(log, client)
	}),
	fx.Provide(service.NewSubmitter),
)
