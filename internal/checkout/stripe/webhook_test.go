package stripe_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	checkoutdomain "github.com/emberhollow/storefront/internal/checkout/domain"
	"github.com/emberhollow/storefront/internal/checkout/stripe"
)

const testWebhookSecret = "whsec_test_secret"

func buildSignatureHeader(secret string, payload []byte, ts int64) string {
	signed := fmt.Sprintf("%d.%s", ts, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func completedPayload(sessionID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"type": "checkout.session.completed",
		"created": %d,
		"data": {
			"object": {
				"id": %q,
				"payment_intent": "pi_test_1",
				"payment_status": "paid",
				"amount_total": 2400,
				"currency": "usd",
				"customer_details": {"email": "fan@example.com", "name": "Rowan Ashe"},
				"metadata": {"printful_variant_id": "5130270457", "product_id": "tee-hollow-logo"}
			}
		}
	}`, time.Now().Unix(), sessionID))
}

func TestConstructEventValidSignature(t *testing.T) {
	verifier := stripe.NewVerifier(testWebhookSecret)
	payload := completedPayload("cs_test_123")
	header := buildSignatureHeader(testWebhookSecret, payload, time.Now().Unix())

	event, err := verifier.ConstructEvent(payload, header)
	if err != nil {
		t.Fatalf("construct event: %v", err)
	}
	if event.Type != checkoutdomain.EventCheckoutCompleted {
		t.Fatalf("unexpected event type %s", event.Type)
	}
	if event.Session.ID != "cs_test_123" {
		t.Fatalf("unexpected session id %s", event.Session.ID)
	}
	if event.Session.MetadataValue(checkoutdomain.MetadataVariantKey) != "5130270457" {
		t.Fatalf("metadata lost during parse")
	}
	if event.Session.CustomerEmail() != "fan@example.com" {
		t.Fatalf("unexpected customer email %q", event.Session.CustomerEmail())
	}
}

func TestConstructEventRejectsBadSignature(t *testing.T) {
	verifier := stripe.NewVerifier(testWebhookSecret)
	payload := completedPayload("cs_test_123")
	header := buildSignatureHeader("whsec_wrong_secret", payload, time.Now().Unix())

	if _, err := verifier.ConstructEvent(payload, header); !errors.Is(err, checkoutdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestConstructEventRejectsMissingHeader(t *testing.T) {
	verifier := stripe.NewVerifier(testWebhookSecret)

	if _, err := verifier.ConstructEvent(completedPayload("cs_test_123"), ""); !errors.Is(err, checkoutdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestConstructEventRejectsStaleTimestamp(t *testing.T) {
	verifier := stripe.NewVerifier(testWebhookSecret)
	payload := completedPayload("cs_test_123")
	stale := time.Now().Add(-10 * time.Minute).Unix()
	header := buildSignatureHeader(testWebhookSecret, payload, stale)

	if _, err := verifier.ConstructEvent(payload, header); !errors.Is(err, checkoutdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for stale timestamp, got %v", err)
	}
}

func TestConstructEventIgnoresUnrelatedTypes(t *testing.T) {
	verifier := stripe.NewVerifier(testWebhookSecret)
	payload := []byte(`{
		"id": "evt_test_2",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_test_1"}}
	}`)
	header := buildSignatureHeader(testWebhookSecret, payload, time.Now().Unix())

	if _, err := verifier.ConstructEvent(payload, header); !errors.Is(err, checkoutdomain.ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
}

func TestConstructEventRequiresConfiguredSecret(t *testing.T) {
	verifier := stripe.NewVerifier("")
	payload := completedPayload("cs_test_123")
	header := buildSignatureHeader(testWebhookSecret, payload, time.Now().Unix())

	if _, err := verifier.ConstructEvent(payload, header); !errors.Is(err, checkoutdomain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
