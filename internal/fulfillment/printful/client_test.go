package printful_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	fulfillmentdomain "github.com/emberhollow/storefront/internal/fulfillment/domain"
	"github.com/emberhollow/storefront/internal/fulfillment/printful"
)

func TestGetSyncVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/store/variants/5130270457" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer pf_test_token" {
			t.Fatalf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("X-PF-Store-Id"); got != "store_1" {
			t.Fatalf("unexpected store header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"code": 200,
			"result": {
				"sync_variant": {
					"id": 5130270457,
					"name": "Hollow Logo Tee / M",
					"variant_id": 12345
				}
			}
		}`))
	}))
	defer srv.Close()

	client := printful.NewClientWithBaseURL("pf_test_token", "store_1", srv.URL)
	variant, err := client.GetSyncVariant(context.Background(), "5130270457")
	if err != nil {
		t.Fatalf("get sync variant: %v", err)
	}
	if variant.VariantID != 12345 {
		t.Fatalf("expected catalog variant 12345, got %d", variant.VariantID)
	}
}

func TestGetSyncVariantNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code": 404, "result": null, "error": {"reason": "NotFound", "message": "Sync variant not found"}}`))
	}))
	defer srv.Close()

	client := printful.NewClientWithBaseURL("pf_test_token", "", srv.URL)
	_, err := client.GetSyncVariant(context.Background(), "999")
	if !errors.Is(err, fulfillmentdomain.ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req fulfillmentdomain.ProviderOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode order request: %v", err)
		}
		if req.ExternalID != "cs_test_123" {
			t.Fatalf("unexpected external id %q", req.ExternalID)
		}
		if len(req.Items) != 1 || req.Items[0].VariantID != 12345 {
			t.Fatalf("unexpected items %+v", req.Items)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code": 200, "result": {"id": 999888777, "external_id": "cs_test_123", "status": "draft"}}`))
	}))
	defer srv.Close()

	client := printful.NewClientWithBaseURL("pf_test_token", "", srv.URL)
	order, err := client.CreateOrder(context.Background(), &fulfillmentdomain.ProviderOrderRequest{
		ExternalID: "cs_test_123",
		Recipient: fulfillmentdomain.Recipient{
			Name:        "Rowan Ashe",
			Address1:    "500 Lantern Way",
			City:        "Portland",
			StateCode:   "OR",
			CountryCode: "US",
			Zip:         "97201",
		},
		Items: []fulfillmentdomain.OrderItem{{VariantID: 12345, Quantity: 1, Name: "Hollow Logo Tee"}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != 999888777 {
		t.Fatalf("unexpected order id %d", order.ID)
	}
}

func TestCreateOrderProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": 400, "result": null, "error": {"reason": "BadRequest", "message": "Recipient country is not supported"}}`))
	}))
	defer srv.Close()

	client := printful.NewClientWithBaseURL("pf_test_token", "", srv.URL)
	_, err := client.CreateOrder(context.Background(), &fulfillmentdomain.ProviderOrderRequest{
		Items: []fulfillmentdomain.OrderItem{{VariantID: 12345, Quantity: 1}},
	})

	var providerErr *fulfillmentdomain.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected code %d", providerErr.Code)
	}
	if providerErr.Message != "Recipient country is not supported" {
		t.Fatalf("unexpected message %q", providerErr.Message)
	}
}

func TestClientRequiresToken(t *testing.T) {
	client := printful.NewClient("", "")
	_, err := client.GetSyncVariant(context.Background(), "5130270457")
	if !errors.Is(err, fulfillmentdomain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
