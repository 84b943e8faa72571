package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/emberhollow/storefront/internal/checkout"
	checkoutdomain "github.com/emberhollow/storefront/internal/checkout/domain"
	"github.com/emberhollow/storefront/internal/config"
	"github.com/emberhollow/storefront/internal/fulfillment"
	fulfillmentdomain "github.com/emberhollow/storefront/internal/fulfillment/domain"
	"github.com/emberhollow/storefront/internal/idempotency"
	"github.com/emberhollow/storefront/internal/notification"
	"github.com/emberhollow/storefront/internal/observability"
	obsmiddleware "github.com/emberhollow/storefront/internal/observability/logger"
	obsmetrics "github.com/emberhollow/storefront/internal/observability/metrics"
	obstracing "github.com/emberhollow/storefront/internal/observability/tracing"
	"github.com/emberhollow/storefront/internal/order"
	orderdomain "github.com/emberhollow/storefront/internal/order/domain"
	"github.com/emberhollow/storefront/internal/providers"
	"github.com/emberhollow/storefront/internal/reconciler"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	idempotency.Module,
	providers.Module,
	notification.Module,
	order.Module,
	checkout.Module,
	fulfillment.Module,
	reconciler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	checkoutSvc    checkoutdomain.Service
	stripeVerifier checkoutdomain.Verifier
	printfulVerify fulfillmentdomain.Verifier
	orderSvc       orderdomain.Service
	reconcilerSvc  reconciler.Service
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	CheckoutSvc    checkoutdomain.Service
	StripeVerifier checkoutdomain.Verifier
	PrintfulVerify fulfillmentdomain.Verifier
	OrderSvc       orderdomain.Service
	ReconcilerSvc  reconciler.Service
	ObsMetrics     *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		checkoutSvc:    p.CheckoutSvc,
		stripeVerifier: p.StripeVerifier,
		printfulVerify: p.PrintfulVerify,
		orderSvc:       p.OrderSvc,
		reconcilerSvc:  p.ReconcilerSvc,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) registerWebhookRoutes() {
	webhooks := s.engine.Group("/webhooks")
	webhooks.POST("/stripe", s.HandleStripeWebhook)
	webhooks.POST("/printful", s.HandlePrintfulWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.POST("/checkout/session", s.HandleCreateCheckout)
	api.GET("/orders/:session_id", s.HandleGetOrderBySession)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin")
	admin.GET("/orders", s.HandleListOrders)
	admin.GET("/orders/:id/events", s.HandleListOrderEvents)
}
