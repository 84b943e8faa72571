package checkout

import (
	"go.uber.org/fx"

	"github.com/emberhollow/storefront/internal/checkout/domain"
	"github.com/emberhollow/storefront/internal/checkout/service"
	"github.com/emberhollow/storefront/internal/checkout/stripe"
	"github.com/emberhollow/storefront/internal/config"
)

var Module = fx.Module("checkout.service",
	fx.Provide(func(cfg config.Config) domain.SessionClient {
		return stripe.NewClient(cfg.StripeSecretKey)
	}),
	fx.Provide(func(cfg config.Config) domain.Verifier {
		return stripe.NewVerifier(cfg.StripeWebhookSecret)
	}),
	fx.Provide(service.NewService),
)
