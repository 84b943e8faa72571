package reconciler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	checkoutdomain "github.com/emberhollow/storefront/internal/checkout/domain"
	fulfillmentdomain "github.com/emberhollow/storefront/internal/fulfillment/domain"
	"github.com/emberhollow/storefront/internal/idempotency"
	notificationdomain "github.com/emberhollow/storefront/internal/notification/domain"
	obscontext "github.com/emberhollow/storefront/internal/observability/context"
	obslogger "github.com/emberhollow/storefront/internal/observability/logger"
	obsmetrics "github.com/emberhollow/storefront/internal/observability/metrics"
	orderdomain "github.com/emberhollow/storefront/internal/order/domain"
	"github.com/emberhollow/storefront/pkg/telemetry/correlation"
)

// CheckoutResult tells the webhook handler what to acknowledge.
type CheckoutResult struct {
	Duplicate bool
}

// FulfillmentResult tells the webhook handler what to acknowledge.
type FulfillmentResult struct {
	MissingOrderID bool
	OrderFound     bool
}

// Service reconciles payment and fulfillment provider events onto
// durable orders. Handlers never return errors: once a webhook is
// authenticated the provider gets a 200 and every downstream failure
// is operator-facing.
type Service interface {
	HandleCheckoutEvent(ctx context.Context, event *checkoutdomain.WebhookEvent) CheckoutResult
	HandleFulfillmentEvent(ctx context.Context, event *fulfillmentdomain.WebhookEvent) FulfillmentResult
}

type Params struct {
	fx.In

	Log          *zap.Logger
	Ledger       idempotency.Ledger
	Sessions     checkoutdomain.SessionClient
	Orders       orderdomain.Service
	Resolver     fulfillmentdomain.Resolver
	Submitter    fulfillmentdomain.Submitter
	Notification notificationdomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	log          *zap.Logger
	ledger       idempotency.Ledger
	sessions     checkoutdomain.SessionClient
	orders       orderdomain.Service
	resolver     fulfillmentdomain.Resolver
	submitter    fulfillmentdomain.Submitter
	notification notificationdomain.Service
	metrics      *obsmetrics.Metrics
	inflight     *sessionLocks
}

func NewService(p Params) Service {
	return &service{
		log:          p.Log.Named("reconciler.service"),
		ledger:       p.Ledger,
		sessions:     p.Sessions,
		orders:       p.Orders,
		resolver:     p.Resolver,
		submitter:    p.Submitter,
		notification: p.Notification,
		metrics:      p.ObsMetrics,
		inflight:     newSessionLocks(),
	}
}

func (s *service) HandleCheckoutEvent(ctx context.Context, event *checkoutdomain.WebhookEvent) CheckoutResult {
	// Fresh correlation id per delivery so redeliveries are
	// distinguishable in the logs.
	ctx, _ = correlation.EnsureCorrelationID(ctx)

	switch event.Type {
	case checkoutdomain.EventCheckoutCompleted, checkoutdomain.EventAsyncPaymentSucceeded:
		result := s.processSession(ctx, event.Session.ID, event.Type)
		outcome := "processed"
		if result.Duplicate {
			outcome = "duplicate"
		}
		s.metrics.RecordCheckoutEvent(ctx, event.Type, outcome)
		return result
	case checkoutdomain.EventAsyncPaymentFailed:
		s.handleAsyncPaymentFailed(ctx, &event.Session)
		s.metrics.RecordCheckoutEvent(ctx, event.Type, "processed")
		return CheckoutResult{}
	default:
		s.metrics.RecordCheckoutEvent(ctx, event.Type, "ignored")
		return CheckoutResult{}
	}
}

// processSession runs the payment-completed pipeline: idempotency gate,
// session fetch, order creation, variant resolution, fulfillment
// submission and confirmation. Each fatal step stops the pipeline; the
// money has already been collected, so every abort alerts an operator.
func (s *service) processSession(ctx context.Context, sessionID string, eventType string) CheckoutResult {
	ctx = obscontext.WithSessionID(ctx, sessionID)
	log := obslogger.WithContext(ctx, s.log).With(zap.String("event_type", eventType))

	// Concurrent deliveries of the same session run one at a time, so a
	// redelivery cannot enter fulfillment while the first is in flight.
	release := s.inflight.acquire(sessionID)
	defer release()

	if s.ledger.HasProcessed(ctx, sessionID) {
		log.Info("session already processed, skipping")
		return CheckoutResult{Duplicate: true}
	}

	// Webhook payloads omit shipping and line item details, so the full
	// session is always re-fetched.
	session, err := s.sessions.RetrieveSession(ctx, sessionID)
	if err != nil {
		log.Error("session fetch failed", zap.Error(err))
		s.notification.SendOperatorAlert(ctx, notificationdomain.Alert{
			Subject: "Paid checkout session could not be fetched",
			Summary: "A checkout webhook was received but the full session could not be retrieved from Stripe. " +
				"The customer has paid and no order records exist yet.",
			Remediation: "Look up the session in the Stripe dashboard (https://dashboard.stripe.com/payments) " +
				"and create the order manually, then submit the Printful order.",
			Fields: map[string]string{
				"session_id": sessionID,
				"error":      err.Error(),
			},
		})
		return CheckoutResult{}
	}

	order, created := s.createOrder(ctx, session, log)
	if order == nil {
		return CheckoutResult{}
	}
	if !created {
		if order.PrintfulOrderID != "" {
			// A previous delivery already completed the whole pipeline.
			s.ledger.MarkProcessed(ctx, sessionID)
			log.Info("order already fulfilled, acknowledging duplicate",
				zap.String("order_id", order.ID.String()),
			)
			return CheckoutResult{Duplicate: true}
		}
		if eventType == checkoutdomain.EventCheckoutCompleted {
			// The unique constraint already recorded this session. Only
			// the delayed payment continuation may pick an unfulfilled
			// order back up; a repeated completed event must not submit
			// a second fulfillment order.
			log.Info("order already recorded, acknowledging duplicate",
				zap.String("order_id", order.ID.String()),
			)
			return CheckoutResult{Duplicate: true}
		}
	}

	if eventType == checkoutdomain.EventCheckoutCompleted && session.PaymentStatus == "unpaid" {
		// Delayed payment method: the async_payment_succeeded event will
		// finish the pipeline once funds clear.
		log.Info("payment pending, deferring fulfillment",
			zap.String("order_id", order.ID.String()),
		)
		return CheckoutResult{}
	}

	s.fulfill(ctx, session, order, log)
	return CheckoutResult{}
}

// createOrder durably records the purchase. The bool reports whether
// this call created the row; false means another delivery won the race
// and the existing order was loaded instead.
func (s *service) createOrder(
	ctx context.Context,
	session *checkoutdomain.Session,
	log *zap.Logger,
) (*orderdomain.Order, bool) {
	order, err := s.orders.Create(ctx, buildCreateRequest(session))
	if err == nil {
		return order, true
	}

	if errors.Is(err, orderdomain.ErrDuplicateSession) {
		existing, findErr := s.orders.FindBySessionID(ctx, session.ID)
		if findErr == nil && existing != nil {
			return existing, false
		}
		log.Error("duplicate session but order lookup failed", zap.Error(findErr))
		return nil, false
	}

	// The payment succeeded but no order record exists. Highest severity.
	log.Error("order creation failed", zap.Error(err))
	s.notification.SendOperatorAlert(ctx, notificationdomain.Alert{
		Subject: "Order creation failed for a paid session",
		Summary: "The customer has been charged but no order row could be written. " +
			"There is no durable record of this purchase.",
		Remediation: "Recreate the order from the Stripe session " +
			"(https://dashboard.stripe.com/payments) and submit fulfillment manually.",
		Fields: map[string]string{
			"session_id":     session.ID,
			"customer_email": session.CustomerEmail(),
			"error":          err.Error(),
		},
	})
	return nil, false
}

// fulfill runs variant resolution, submission and confirmation for an
// order that exists but has not been sent to the provider yet.
func (s *service) fulfill(
	ctx context.Context,
	session *checkoutdomain.Session,
	order *orderdomain.Order,
	log *zap.Logger,
) {
	orderReq := s.submitter.BuildFromSession(session)
	if orderReq == nil {
		log.Warn("session not auto-fulfillable", zap.String("order_id", order.ID.String()))
		s.orders.AppendEvent(ctx, order.ID, orderdomain.EventFailed, orderdomain.OutcomeFailed,
			"session missing shipping details or variant metadata, fulfillment not submitted", nil)
		s.notification.SendOperatorAlert(ctx, notificationdomain.Alert{
			Subject: "Order cannot be fulfilled automatically",
			Summary: "The checkout session lacks shipping details or the Printful variant metadata. " +
				"The order was recorded and remains pending.",
			Remediation: "Collect the shipping details from the customer if absent, then create the " +
				"Printful order manually (https://www.printful.com/dashboard).",
			Fields: map[string]string{
				"session_id":      session.ID,
				"order_id":        order.ID.String(),
				"customer_email":  session.CustomerEmail(),
				"sync_variant_id": session.MetadataValue(checkoutdomain.MetadataVariantKey),
			},
		})
		return
	}

	catalogVariantID, ok := s.resolver.ResolveCatalogVariant(ctx, orderReq.SyncVariantID)
	if !ok {
		log.Error("catalog variant resolution failed",
			zap.String("order_id", order.ID.String()),
			zap.String("sync_variant_id", orderReq.SyncVariantID),
		)
		s.orders.AppendEvent(ctx, order.ID, orderdomain.EventFailed, orderdomain.OutcomeFailed,
			"catalog variant could not be resolved, fulfillment not submitted",
			map[string]any{"sync_variant_id": orderReq.SyncVariantID})
		s.notification.SendOperatorAlert(ctx, notificationdomain.Alert{
			Subject: "Printful variant resolution failed for a paid order",
			Summary: "The sync variant could not be resolved to a catalog variant, so no fulfillment " +
				"order was submitted. The customer has already paid.",
			Remediation: "Verify the sync variant in the Printful dashboard " +
				"(https://www.printful.com/dashboard), fix the catalog mapping, then submit the " +
				"Printful order manually for this customer.",
			Fields: map[string]string{
				"session_id":      session.ID,
				"order_id":        order.ID.String(),
				"customer_email":  session.CustomerEmail(),
				"sync_variant_id": orderReq.SyncVariantID,
			},
		})
		return
	}

	result := s.submitter.Submit(ctx, orderReq, catalogVariantID)
	if !result.Success {
		s.orders.AppendEvent(ctx, order.ID, orderdomain.EventFailed, orderdomain.OutcomeFailed,
			"fulfillment submission failed: "+result.ErrorMessage,
			map[string]any{"error_kind": result.ErrorKind})
		s.notification.SendOperatorAlert(ctx, notificationdomain.Alert{
			Subject: "Printful order submission failed",
			Summary: "The fulfillment order was rejected or could not be delivered. " +
				"The customer has already paid.",
			Remediation: "Review the error, fix the order data if needed and resubmit from the " +
				"Printful dashboard (https://www.printful.com/dashboard).",
			Fields: map[string]string{
				"session_id":     session.ID,
				"order_id":       order.ID.String(),
				"customer_email": session.CustomerEmail(),
				"error_kind":     result.ErrorKind,
				"error":          result.ErrorMessage,
			},
		})
		return
	}

	s.ledger.MarkProcessed(ctx, session.ID)

	if err := s.orders.AttachFulfillmentID(ctx, order.ID, result.FulfillmentOrderID); err != nil {
		log.Error("fulfillment id attach failed",
			zap.String("order_id", order.ID.String()),
			zap.String("fulfillment_order_id", result.FulfillmentOrderID),
			zap.Error(err),
		)
	}

	confirmed, err := s.orders.FindBySessionID(ctx, session.ID)
	if err != nil || confirmed == nil {
		confirmed = order
	}
	if s.notification.SendOrderConfirmation(ctx, confirmed) {
		s.orders.AppendEvent(ctx, order.ID, orderdomain.EventNotificationSent, orderdomain.OutcomeSuccess,
			"order confirmation emailed to "+confirmed.CustomerEmail, nil)
	}

	log.Info("session reconciled",
		zap.String("order_id", order.ID.String()),
		zap.String("fulfillment_order_id", result.FulfillmentOrderID),
	)
}

// handleAsyncPaymentFailed notifies the customer and operator about a
// declined delayed payment. An order row may or may not exist yet.
func (s *service) handleAsyncPaymentFailed(ctx context.Context, session *checkoutdomain.Session) {
	ctx = obscontext.WithSessionID(ctx, session.ID)
	log := obslogger.WithContext(ctx, s.log)

	email := session.CustomerEmail()
	if email == "" {
		if full, err := s.sessions.RetrieveSession(ctx, session.ID); err == nil {
			email = full.CustomerEmail()
		}
	}
	s.notification.SendPaymentFailure(ctx, email, session.ID)
	s.notification.SendOperatorAlert(ctx, notificationdomain.Alert{
		Subject: "Async payment failed",
		Summary: "A delayed payment method was declined or expired after checkout completed. " +
			"No fulfillment will be submitted for this session.",
		Remediation: "No action needed unless the customer reports a charge; check the session in " +
			"the Stripe dashboard (https://dashboard.stripe.com/payments).",
		Fields: map[string]string{
			"session_id":     session.ID,
			"customer_email": email,
		},
	})

	order, err := s.orders.FindBySessionID(ctx, session.ID)
	if err != nil || order == nil {
		log.Info("async payment failed for session without order")
		return
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, orderdomain.StatusFailed,
		map[string]any{"failure_reason": "async payment failed"}); err != nil {
		log.Warn("status update rejected", zap.Error(err))
	}
	s.orders.AppendEvent(ctx, order.ID, orderdomain.EventFailed, orderdomain.OutcomeFailed,
		"async payment failed for session "+session.ID, nil)
}

func (s *service) HandleFulfillmentEvent(ctx context.Context, event *fulfillmentdomain.WebhookEvent) FulfillmentResult {
	ctx, _ = correlation.EnsureCorrelationID(ctx)

	if event.OrderID == 0 {
		return FulfillmentResult{MissingOrderID: true}
	}

	fulfillmentOrderID := strconv.FormatInt(event.OrderID, 10)
	log := s.log.With(
		zap.String("fulfillment_order_id", fulfillmentOrderID),
		zap.String("event_type", event.Type),
	)

	order, err := s.orders.FindByFulfillmentID(ctx, fulfillmentOrderID)
	if err != nil {
		log.Error("order lookup failed", zap.Error(err))
		return FulfillmentResult{OrderFound: false}
	}
	if order == nil {
		// Test pings and orders created outside this system land here.
		log.Warn("fulfillment event for unknown order")
		s.metrics.RecordFulfillmentEvent(ctx, event.Type, "unknown_order")
		return FulfillmentResult{OrderFound: false}
	}

	switch event.Type {
	case fulfillmentdomain.EventPackageShipped:
		s.applyTransition(ctx, order, orderdomain.StatusShipped, orderdomain.EventShipped,
			"package shipped", shipmentMetadata(event.Shipment), log)
	case fulfillmentdomain.EventPackageReturned:
		s.applyTransition(ctx, order, orderdomain.StatusReturned, orderdomain.EventReturned,
			"package returned to sender", reasonMetadata(event.Reason), log)
		s.notification.SendOperatorAlert(ctx, notificationdomain.Alert{
			Subject: "Package returned",
			Summary: "A shipped package was returned to the fulfillment provider.",
			Remediation: "Contact the customer to confirm the shipping address, then reship from " +
				"the Printful dashboard (https://www.printful.com/dashboard).",
			Fields: map[string]string{
				"order_id":             order.ID.String(),
				"fulfillment_order_id": fulfillmentOrderID,
				"customer_email":       order.CustomerEmail,
				"reason":               event.Reason,
			},
		})
	case fulfillmentdomain.EventOrderFailed:
		s.applyTransition(ctx, order, orderdomain.StatusFailed, orderdomain.EventFailed,
			"fulfillment order failed", reasonMetadata(event.Reason), log)
		s.notification.SendOperatorAlert(ctx, notificationdomain.Alert{
			Subject: "Fulfillment order failed",
			Summary: "The fulfillment provider reported the order as failed after submission.",
			Remediation: "Review the failure reason and resubmit or refund from the Printful " +
				"dashboard (https://www.printful.com/dashboard).",
			Fields: map[string]string{
				"order_id":             order.ID.String(),
				"fulfillment_order_id": fulfillmentOrderID,
				"customer_email":       order.CustomerEmail,
				"reason":               event.Reason,
			},
		})
	case fulfillmentdomain.EventOrderCanceled:
		s.applyTransition(ctx, order, orderdomain.StatusCancelled, orderdomain.EventCancelled,
			"fulfillment order canceled", reasonMetadata(event.Reason), log)
	default:
		// Forward compatibility: the provider adds event types over time.
		log.Info("unhandled fulfillment event type acknowledged")
		s.metrics.RecordFulfillmentEvent(ctx, event.Type, "ignored")
		return FulfillmentResult{OrderFound: true}
	}

	s.metrics.RecordFulfillmentEvent(ctx, event.Type, "processed")
	return FulfillmentResult{OrderFound: true}
}

// applyTransition moves the order through the transition table and
// appends the domain event. Illegal moves are logged and audited, not
// applied: an out-of-order redelivery must not rewind state.
func (s *service) applyTransition(
	ctx context.Context,
	order *orderdomain.Order,
	status orderdomain.Status,
	eventType string,
	message string,
	metadata map[string]any,
	log *zap.Logger,
) {
	err := s.orders.UpdateStatus(ctx, order.ID, status, metadata)
	if err != nil {
		if errors.Is(err, orderdomain.ErrInvalidTransition) {
			log.Warn("transition rejected",
				zap.String("order_id", order.ID.String()),
				zap.String("from", string(order.Status)),
				zap.String("to", string(status)),
			)
			s.orders.AppendEvent(ctx, order.ID, eventType, orderdomain.OutcomeFailed,
				"transition to "+string(status)+" rejected from "+string(order.Status), metadata)
			return
		}
		log.Error("status update failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}
	s.orders.AppendEvent(ctx, order.ID, eventType, orderdomain.OutcomeSuccess, message, metadata)
}

func buildCreateRequest(session *checkoutdomain.Session) orderdomain.CreateOrderRequest {
	req := orderdomain.CreateOrderRequest{
		StripeSessionID:       session.ID,
		StripePaymentIntentID: session.PaymentIntentID,
		CustomerEmail:         session.CustomerEmail(),
		CustomerName:          session.CustomerName(),
		TotalAmount:           session.AmountTotal,
		Currency:              strings.ToUpper(session.Currency),
	}

	if shipping := session.ShippingDetails; shipping != nil {
		req.ShippingAddress = map[string]any{
			"name":        shipping.Name,
			"line1":       shipping.Address.Line1,
			"line2":       shipping.Address.Line2,
			"city":        shipping.Address.City,
			"state":       shipping.Address.State,
			"postal_code": shipping.Address.PostalCode,
			"country":     shipping.Address.Country,
		}
	}

	if len(session.Metadata) > 0 {
		req.Metadata = make(map[string]any, len(session.Metadata))
		for key, value := range session.Metadata {
			req.Metadata[key] = value
		}
	}

	productID := session.MetadataValue(checkoutdomain.MetadataProductKey)
	variantID := session.MetadataValue(checkoutdomain.MetadataVariantKey)
	for _, item := range session.LineItems.Data {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		unitAmount := item.AmountTotal / quantity
		if item.Price != nil && item.Price.UnitAmount > 0 {
			unitAmount = item.Price.UnitAmount
		}
		req.Items = append(req.Items, orderdomain.CreateOrderItem{
			ProductID:  productID,
			VariantID:  variantID,
			Name:       item.Description,
			Quantity:   int(quantity),
			UnitAmount: unitAmount,
		})
	}
	return req
}

func shipmentMetadata(shipment *fulfillmentdomain.Shipment) map[string]any {
	if shipment == nil {
		return nil
	}
	metadata := map[string]any{}
	if shipment.TrackingNumber != "" {
		metadata["tracking_number"] = shipment.TrackingNumber
	}
	if shipment.TrackingURL != "" {
		metadata["tracking_url"] = shipment.TrackingURL
	}
	if shipment.Carrier != "" {
		metadata["carrier"] = shipment.Carrier
	}
	if shipment.Service != "" {
		metadata["service"] = shipment.Service
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func reasonMetadata(reason string) map[string]any {
	if strings.TrimSpace(reason) == "" {
		return nil
	}
	return map[string]any{"reason": strings.TrimSpace(reason)}
}
