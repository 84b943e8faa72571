package resolver_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	fulfillmentdomain "github.com/emberhollow/storefront/internal/fulfillment/domain"
	"github.com/emberhollow/storefront/internal/fulfillment/resolver"
)

type stubClient struct {
	variant *fulfillmentdomain.SyncVariant
	err     error
	calls   int
}

func (c *stubClient) GetSyncVariant(ctx context.Context, syncVariantID string) (*fulfillmentdomain.SyncVariant, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.variant, nil
}

func (c *stubClient) CreateOrder(ctx context.Context, req *fulfillmentdomain.ProviderOrderRequest) (*fulfillmentdomain.ProviderOrder, error) {
	return nil, errors.New("not implemented")
}

func TestResolveFromTopLevelVariantID(t *testing.T) {
	client := &stubClient{variant: &fulfillmentdomain.SyncVariant{ID: 5130270457, VariantID: 12345}}
	r := resolver.New(zap.NewNop(), client)

	catalogID, ok := r.ResolveCatalogVariant(context.Background(), "5130270457")
	if !ok || catalogID != 12345 {
		t.Fatalf("expected (12345, true), got (%d, %v)", catalogID, ok)
	}
}

func TestResolveFallsBackToProductVariantID(t *testing.T) {
	client := &stubClient{variant: &fulfillmentdomain.SyncVariant{
		ID:      5130270457,
		Product: &fulfillmentdomain.SyncVariantProduct{VariantID: 67890},
	}}
	r := resolver.New(zap.NewNop(), client)

	catalogID, ok := r.ResolveCatalogVariant(context.Background(), "5130270457")
	if !ok || catalogID != 67890 {
		t.Fatalf("expected (67890, true), got (%d, %v)", catalogID, ok)
	}
}

func TestResolveMissingCatalogVariant(t *testing.T) {
	client := &stubClient{variant: &fulfillmentdomain.SyncVariant{ID: 5130270457}}
	r := resolver.New(zap.NewNop(), client)

	if _, ok := r.ResolveCatalogVariant(context.Background(), "5130270457"); ok {
		t.Fatal("variant without a catalog id must not resolve")
	}
}

func TestResolveVariantNotFound(t *testing.T) {
	client := &stubClient{err: fulfillmentdomain.ErrVariantNotFound}
	r := resolver.New(zap.NewNop(), client)

	if _, ok := r.ResolveCatalogVariant(context.Background(), "999"); ok {
		t.Fatal("unknown variant must not resolve")
	}
}

func TestResolveTransportError(t *testing.T) {
	client := &stubClient{err: errors.New("connection refused")}
	r := resolver.New(zap.NewNop(), client)

	if _, ok := r.ResolveCatalogVariant(context.Background(), "5130270457"); ok {
		t.Fatal("transport failure must not resolve")
	}
}

func TestResolveCachesLookups(t *testing.T) {
	client := &stubClient{variant: &fulfillmentdomain.SyncVariant{ID: 5130270457, VariantID: 12345}}
	r := resolver.New(zap.NewNop(), client)

	for i := 0; i < 3; i++ {
		if _, ok := r.ResolveCatalogVariant(context.Background(), "5130270457"); !ok {
			t.Fatal("expected resolution")
		}
	}
	if client.calls != 1 {
		t.Fatalf("expected a single provider call, got %d", client.calls)
	}
}

func TestResolveEmptyID(t *testing.T) {
	client := &stubClient{}
	r := resolver.New(zap.NewNop(), client)

	if _, ok := r.ResolveCatalogVariant(context.Background(), ""); ok {
		t.Fatal("empty id must not resolve")
	}
	if client.calls != 0 {
		t.Fatal("empty id must not reach the provider")
	}
}
