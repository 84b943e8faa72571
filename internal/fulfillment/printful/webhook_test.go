package printful_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	fulfillmentdomain "github.com/emberhollow/storefront/internal/fulfillment/domain"
	"github.com/emberhollow/storefront/internal/fulfillment/printful"
)

const printfulTestSecret = "pf_whsec_test"

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

var shippedPayload = []byte(`{
	"type": "package_shipped",
	"data": {
		"order": {"id": 999888777},
		"shipment": {
			"id": 55,
			"carrier": "USPS",
			"service": "First Class",
			"tracking_number": "9400100000000000000000",
			"tracking_url": "https://tools.usps.com/go/TrackConfirmAction?tLabels=9400100000000000000000"
		}
	}
}`)

func TestPrintfulConstructEventValidSignature(t *testing.T) {
	verifier := printful.NewVerifier(printfulTestSecret)

	event, err := verifier.ConstructEvent(shippedPayload, signPayload(printfulTestSecret, shippedPayload))
	if err != nil {
		t.Fatalf("construct event: %v", err)
	}
	if event.Type != fulfillmentdomain.EventPackageShipped {
		t.Fatalf("unexpected type %s", event.Type)
	}
	if event.OrderID != 999888777 {
		t.Fatalf("unexpected order id %d", event.OrderID)
	}
	if event.Shipment == nil || event.Shipment.TrackingNumber != "9400100000000000000000" {
		t.Fatalf("shipment not parsed: %+v", event.Shipment)
	}
}

func TestPrintfulConstructEventRejectsBadSignature(t *testing.T) {
	verifier := printful.NewVerifier(printfulTestSecret)

	_, err := verifier.ConstructEvent(shippedPayload, signPayload("pf_whsec_wrong", shippedPayload))
	if !errors.Is(err, fulfillmentdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestPrintfulConstructEventUnsignedDevMode(t *testing.T) {
	// no configured secret means local development, deliveries pass unsigned
	verifier := printful.NewVerifier("")

	event, err := verifier.ConstructEvent(shippedPayload, "")
	if err != nil {
		t.Fatalf("construct event: %v", err)
	}
	if event.OrderID != 999888777 {
		t.Fatalf("unexpected order id %d", event.OrderID)
	}
}

func TestPrintfulConstructEventMissingOrderID(t *testing.T) {
	verifier := printful.NewVerifier("")
	payload := []byte(`{"type": "package_shipped", "data": {}}`)

	event, err := verifier.ConstructEvent(payload, "")
	if err != nil {
		t.Fatalf("construct event: %v", err)
	}
	if event.OrderID != 0 {
		t.Fatalf("expected zero order id, got %d", event.OrderID)
	}
}

func TestPrintfulConstructEventInvalidPayload(t *testing.T) {
	verifier := printful.NewVerifier("")

	if _, err := verifier.ConstructEvent([]byte(`not json`), ""); !errors.Is(err, fulfillmentdomain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}
