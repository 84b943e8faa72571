package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	checkoutdomain "github.com/emberhollow/storefront/internal/checkout/domain"
	fulfillmentdomain "github.com/emberhollow/storefront/internal/fulfillment/domain"
	obsmetrics "github.com/emberhollow/storefront/internal/observability/metrics"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Client     fulfillmentdomain.Client
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type submitter struct {
	log     *zap.Logger
	client  fulfillmentdomain.Client
	metrics *obsmetrics.Metrics
}

func NewSubmitter(p Params) fulfillmentdomain.Submitter {
	return &submitter{
		log:     p.Log.Named("fulfillment.submitter"),
		client:  p.Client,
		metrics: p.ObsMetrics,
	}
}

// BuildFromSession extracts recipient and item data from a paid
// checkout session. A session without shipping details, a customer
// email or the sync variant metadata cannot be fulfilled automatically
// and yields nil.
func (s *submitter) BuildFromSession(session *checkoutdomain.Session) *fulfillmentdomain.OrderRequest {
	if session == nil {
		return nil
	}
	syncVariantID := session.MetadataValue(checkoutdomain.MetadataVariantKey)
	if syncVariantID == "" {
		return nil
	}
	email := session.CustomerEmail()
	if email == "" {
		return nil
	}
	shipping := session.ShippingDetails
	if shipping == nil || strings.TrimSpace(shipping.Address.Line1) == "" {
		return nil
	}

	name := strings.TrimSpace(shipping.Name)
	if name == "" {
		name = session.CustomerName()
	}

	quantity := int64(0)
	itemName := ""
	for _, item := range session.LineItems.Data {
		if item.Quantity > 0 {
			quantity += item.Quantity
		}
		if itemName == "" {
			itemName = strings.TrimSpace(item.Description)
		}
	}
	if quantity == 0 {
		quantity = 1
	}

	return &fulfillmentdomain.OrderRequest{
		SessionID:     session.ID,
		SyncVariantID: syncVariantID,
		Quantity:      quantity,
		ItemName:      itemName,
		Recipient: fulfillmentdomain.Recipient{
			Name:        name,
			Email:       email,
			Address1:    strings.TrimSpace(shipping.Address.Line1),
			Address2:    strings.TrimSpace(shipping.Address.Line2),
			City:        strings.TrimSpace(shipping.Address.City),
			StateCode:   strings.TrimSpace(shipping.Address.State),
			CountryCode: strings.TrimSpace(shipping.Address.Country),
			Zip:         strings.TrimSpace(shipping.Address.PostalCode),
		},
	}
}

// Submit sends the order to the provider. The result is always
// structured; provider rejections and transport failures are reported
// under distinct kinds so the caller can alert accordingly.
func (s *submitter) Submit(
	ctx context.Context,
	req *fulfillmentdomain.OrderRequest,
	catalogVariantID int64,
) fulfillmentdomain.SubmitResult {
	if req == nil || catalogVariantID <= 0 {
		return fulfillmentdomain.SubmitResult{
			ErrorKind:    fulfillmentdomain.ErrorKindProvider,
			ErrorMessage: "invalid order request",
		}
	}

	order, err := s.client.CreateOrder(ctx, &fulfillmentdomain.ProviderOrderRequest{
		ExternalID: req.SessionID,
		Recipient:  req.Recipient,
		Items: []fulfillmentdomain.OrderItem{
			{
				VariantID: catalogVariantID,
				Quantity:  req.Quantity,
				Name:      req.ItemName,
			},
		},
	})
	if err != nil {
		kind := fulfillmentdomain.ErrorKindTransport
		var providerErr *fulfillmentdomain.ProviderError
		if errors.As(err, &providerErr) {
			kind = fulfillmentdomain.ErrorKindProvider
		}
		s.log.Error("fulfillment submission failed",
			zap.String("session_id", req.SessionID),
			zap.String("sync_variant_id", req.SyncVariantID),
			zap.String("kind", kind),
			zap.Error(err),
		)
		s.metrics.RecordSubmission(ctx, "failed")
		return fulfillmentdomain.SubmitResult{
			ErrorKind:    kind,
			ErrorMessage: err.Error(),
		}
	}

	fulfillmentOrderID := strconv.FormatInt(order.ID, 10)
	s.log.Info("fulfillment order submitted",
		zap.String("session_id", req.SessionID),
		zap.String("fulfillment_order_id", fulfillmentOrderID),
	)
	s.metrics.RecordSubmission(ctx, "success")
	return fulfillmentdomain.SubmitResult{
		Success:            true,
		FulfillmentOrderID: fulfillmentOrderID,
	}
}
