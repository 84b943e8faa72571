package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	checkoutdomain "github.com/emberhollow/storefront/internal/checkout/domain"
)

const signatureTolerance = 5 * time.Minute

// Verifier authenticates Stripe webhook deliveries against the endpoint
// signing secret and parses the checkout session events out of them.
type Verifier struct {
	webhookSecret string
}

func NewVerifier(webhookSecret string) *Verifier {
	return &Verifier{webhookSecret: strings.TrimSpace(webhookSecret)}
}

func (v *Verifier) ConstructEvent(payload []byte, sigHeader string) (*checkoutdomain.WebhookEvent, error) {
	if v.webhookSecret == "" {
		return nil, checkoutdomain.ErrInvalidConfig
	}
	if err := v.verify(payload, sigHeader); err != nil {
		return nil, err
	}
	return parseEvent(payload)
}

func (v *Verifier) verify(payload []byte, sigHeader string) error {
	sigHeader = strings.TrimSpace(sigHeader)
	if sigHeader == "" {
		return checkoutdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return checkoutdomain.ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return checkoutdomain.ErrInvalidSignature
	}
	age := time.Since(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return checkoutdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(v.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return checkoutdomain.ErrInvalidSignature
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

func parseEvent(payload []byte) (*checkoutdomain.WebhookEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, checkoutdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, checkoutdomain.ErrInvalidEvent
	}

	eventType := strings.TrimSpace(event.Type)
	switch eventType {
	case checkoutdomain.EventCheckoutCompleted,
		checkoutdomain.EventAsyncPaymentSucceeded,
		checkoutdomain.EventAsyncPaymentFailed:
	default:
		return nil, checkoutdomain.ErrEventIgnored
	}

	var session checkoutdomain.Session
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, checkoutdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, checkoutdomain.ErrInvalidEvent
	}

	occurredAt := time.Now().UTC()
	if event.Created > 0 {
		occurredAt = time.Unix(event.Created, 0).UTC()
	}
	return &checkoutdomain.WebhookEvent{
		ID:         event.ID,
		Type:       eventType,
		OccurredAt: occurredAt,
		Session:    session,
		RawPayload: payload,
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}
