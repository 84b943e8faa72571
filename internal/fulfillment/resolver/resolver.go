package resolver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/emberhollow/storefront/internal/cache"
	fulfillmentdomain "github.com/emberhollow/storefront/internal/fulfillment/domain"
)

const catalogVariantTTL = 30 * time.Minute

// extractor pulls the catalog variant id out of one of the locations
// the provider's API is known to surface it in.
type extractor func(variant *fulfillmentdomain.SyncVariant) (int64, bool)

// Tried in order; first hit wins.
var extractors = []extractor{
	topLevelVariantID,
	productVariantID,
}

func topLevelVariantID(variant *fulfillmentdomain.SyncVariant) (int64, bool) {
	if variant.VariantID > 0 {
		return variant.VariantID, true
	}
	return 0, false
}

func productVariantID(variant *fulfillmentdomain.SyncVariant) (int64, bool) {
	if variant.Product != nil && variant.Product.VariantID > 0 {
		return variant.Product.VariantID, true
	}
	return 0, false
}

type variantResolver struct {
	log    *zap.Logger
	client fulfillmentdomain.Client
	cache  cache.Cache[string, int64]
}

func New(log *zap.Logger, client fulfillmentdomain.Client) fulfillmentdomain.Resolver {
	return &variantResolver{
		log:    log.Named("fulfillment.resolver"),
		client: client,
		cache:  cache.NewTTLCache[string, int64](),
	}
}

// ResolveCatalogVariant looks up the provider's catalog variant id for
// a store sync variant. Unknown variants, responses missing the id and
// transport failures are all reported as not resolved; the caller
// decides how severe that is.
func (r *variantResolver) ResolveCatalogVariant(ctx context.Context, syncVariantID string) (int64, bool) {
	if syncVariantID == "" {
		return 0, false
	}
	if cached, ok := r.cache.Get(syncVariantID); ok {
		return cached, true
	}

	variant, err := r.client.GetSyncVariant(ctx, syncVariantID)
	if err != nil {
		if errors.Is(err, fulfillmentdomain.ErrVariantNotFound) {
			r.log.Warn("sync variant not found",
				zap.String("sync_variant_id", syncVariantID),
			)
		} else {
			r.log.Error("sync variant lookup failed",
				zap.String("sync_variant_id", syncVariantID),
				zap.Error(err),
			)
		}
		return 0, false
	}

	for _, extract := range extractors {
		if catalogID, ok := extract(variant); ok {
			r.cache.Set(syncVariantID, catalogID, catalogVariantTTL)
			return catalogID, true
		}
	}

	r.log.Warn("sync variant response missing catalog variant id",
		zap.String("sync_variant_id", syncVariantID),
	)
	return 0, false
}
