package printful

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	fulfillmentdomain "github.com/emberhollow/storefront/internal/fulfillment/domain"
)

// Verifier authenticates Printful webhook deliveries. The signature is
// the hex HMAC-SHA256 of the raw body under the shared secret. An empty
// secret disables verification for local development.
type Verifier struct {
	webhookSecret string
}

func NewVerifier(webhookSecret string) *Verifier {
	return &Verifier{webhookSecret: strings.TrimSpace(webhookSecret)}
}

func (v *Verifier) ConstructEvent(payload []byte, signature string) (*fulfillmentdomain.WebhookEvent, error) {
	if v.webhookSecret != "" {
		if err := v.verify(payload, signature); err != nil {
			return nil, err
		}
	}
	return parseEvent(payload)
}

func (v *Verifier) verify(payload []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fulfillmentdomain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(v.webhookSecret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return fulfillmentdomain.ErrInvalidSignature
	}
	return nil
}

type webhookPayload struct {
	Type string      `json:"type"`
	Data webhookData `json:"data"`
}

type webhookData struct {
	Order *struct {
		ID int64 `json:"id"`
	} `json:"order"`
	Shipment *fulfillmentdomain.Shipment `json:"shipment"`
	Reason   string                      `json:"reason"`
}

func parseEvent(payload []byte) (*fulfillmentdomain.WebhookEvent, error) {
	var parsed webhookPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fulfillmentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(parsed.Type) == "" {
		return nil, fulfillmentdomain.ErrInvalidPayload
	}

	event := &fulfillmentdomain.WebhookEvent{
		Type:       strings.TrimSpace(parsed.Type),
		Shipment:   parsed.Data.Shipment,
		Reason:     strings.TrimSpace(parsed.Data.Reason),
		RawPayload: payload,
	}
	if parsed.Data.Order != nil {
		event.OrderID = parsed.Data.Order.ID
	}
	return event, nil
}
