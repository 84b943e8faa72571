package server_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	checkoutdomain "github.com/emberhollow/storefront/internal/checkout/domain"
	checkoutstripe "github.com/emberhollow/storefront/internal/checkout/stripe"
	"github.com/emberhollow/storefront/internal/config"
	fulfillmentdomain "github.com/emberhollow/storefront/internal/fulfillment/domain"
	"github.com/emberhollow/storefront/internal/fulfillment/printful"
	"github.com/emberhollow/storefront/internal/fulfillment/resolver"
	fulfillmentservice "github.com/emberhollow/storefront/internal/fulfillment/service"
	"github.com/emberhollow/storefront/internal/idempotency"
	notificationdomain "github.com/emberhollow/storefront/internal/notification/domain"
	orderdomain "github.com/emberhollow/storefront/internal/order/domain"
	orderrepo "github.com/emberhollow/storefront/internal/order/repository"
	orderservice "github.com/emberhollow/storefront/internal/order/service"
	"github.com/emberhollow/storefront/internal/reconciler"
	"github.com/emberhollow/storefront/internal/server"
)

const (
	stripeTestSecret   = "whsec_test_secret"
	printfulTestSecret = "pf_whsec_test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE orders (
			id BIGINT PRIMARY KEY,
			stripe_session_id TEXT NOT NULL,
			stripe_payment_intent_id TEXT,
			printful_order_id TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			customer_email TEXT NOT NULL,
			customer_name TEXT,
			total_amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			shipping_address TEXT,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_orders_stripe_session_id ON orders(stripe_session_id)`,
		`CREATE TABLE order_items (
			id BIGINT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			product_id TEXT NOT NULL,
			variant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_amount BIGINT NOT NULL,
			image_url TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE order_events (
			id BIGINT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func assertCount(t *testing.T, db *gorm.DB, query string, expected int64) {
	t.Helper()

	var count int64
	if err := db.Raw(query).Scan(&count).Error; err != nil {
		t.Fatalf("query count: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d for %q, got %d", expected, query, count)
	}
}

type fakeSessionClient struct {
	sessions map[string]*checkoutdomain.Session
}

func (c *fakeSessionClient) CreateSession(ctx context.Context, params checkoutdomain.CreateSessionParams) (*checkoutdomain.Session, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeSessionClient) RetrieveSession(ctx context.Context, sessionID string) (*checkoutdomain.Session, error) {
	session, ok := c.sessions[sessionID]
	if !ok {
		return nil, errors.New("session_not_found")
	}
	return session, nil
}

type fakeProviderClient struct {
	variants map[string]*fulfillmentdomain.SyncVariant
}

func (c *fakeProviderClient) GetSyncVariant(ctx context.Context, syncVariantID string) (*fulfillmentdomain.SyncVariant, error) {
	variant, ok := c.variants[syncVariantID]
	if !ok {
		return nil, fulfillmentdomain.ErrVariantNotFound
	}
	return variant, nil
}

func (c *fakeProviderClient) CreateOrder(ctx context.Context, req *fulfillmentdomain.ProviderOrderRequest) (*fulfillmentdomain.ProviderOrder, error) {
	return &fulfillmentdomain.ProviderOrder{ID: 999888777, ExternalID: req.ExternalID, Status: "draft"}, nil
}

type fakeNotifier struct{}

func (n *fakeNotifier) SendOrderConfirmation(ctx context.Context, order *orderdomain.Order) bool {
	return true
}

func (n *fakeNotifier) SendPaymentFailure(ctx context.Context, email string, sessionID string) bool {
	return true
}

func (n *fakeNotifier) SendOperatorAlert(ctx context.Context, alert notificationdomain.Alert) bool {
	return true
}

type fakeCheckoutService struct{}

func (s *fakeCheckoutService) CreateCheckout(ctx context.Context, req checkoutdomain.CreateCheckoutRequest) (*checkoutdomain.CreateCheckoutResponse, error) {
	return nil, checkoutdomain.ErrUnknownProduct
}

type webhookFixture struct {
	db     *gorm.DB
	orders orderdomain.Service
	engine *gin.Engine
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(11)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	log := zap.NewNop()

	orders := orderservice.NewService(orderservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  orderrepo.Provide(),
	})
	provider := &fakeProviderClient{
		variants: map[string]*fulfillmentdomain.SyncVariant{
			"5130270457": {ID: 5130270457, VariantID: 12345},
		},
	}
	sessions := &fakeSessionClient{sessions: map[string]*checkoutdomain.Session{
		"cs_test_123": {
			ID:            "cs_test_123",
			PaymentStatus: "paid",
			AmountTotal:   2400,
			Currency:      "usd",
			CustomerDetails: &checkoutdomain.CustomerDetails{
				Email: "fan@example.com",
				Name:  "Rowan Ashe",
			},
			ShippingDetails: &checkoutdomain.ShippingDetails{
				Name: "Rowan Ashe",
				Address: checkoutdomain.Address{
					Line1:      "500 Lantern Way",
					City:       "Portland",
					State:      "OR",
					PostalCode: "97201",
					Country:    "US",
				},
			},
			Metadata: map[string]string{
				checkoutdomain.MetadataVariantKey: "5130270457",
				checkoutdomain.MetadataProductKey: "tee-hollow-logo",
			},
			LineItems: checkoutdomain.SessionLineItemList{
				Data: []checkoutdomain.SessionLineItem{
					{Description: "Hollow Logo Tee", Quantity: 2, AmountTotal: 2400},
				},
			},
		},
	}}

	reconcilerSvc := reconciler.NewService(reconciler.Params{
		Log:          log,
		Ledger:       idempotency.NewMemoryLedger(100),
		Sessions:     sessions,
		Orders:       orders,
		Resolver:     resolver.New(log, provider),
		Submitter:    fulfillmentservice.NewSubmitter(fulfillmentservice.Params{Log: log, Client: provider}),
		Notification: &fakeNotifier{},
	})

	engine := gin.New()
	engine.Use(server.ErrorHandlingMiddleware())
	server.NewServer(server.ServerParams{
		Gin:            engine,
		Cfg:            config.Config{},
		DB:             db,
		CheckoutSvc:    &fakeCheckoutService{},
		StripeVerifier: checkoutstripe.NewVerifier(stripeTestSecret),
		PrintfulVerify: printful.NewVerifier(printfulTestSecret),
		OrderSvc:       orders,
		ReconcilerSvc:  reconcilerSvc,
	})

	return &webhookFixture{db: db, orders: orders, engine: engine}
}

func stripeSignature(secret string, payload []byte, ts int64) string {
	signed := fmt.Sprintf("%d.%s", ts, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func printfulSignature(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func stripeEventPayload(eventType string, sessionID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"type": %q,
		"created": %d,
		"data": {"object": {"id": %q, "payment_status": "paid"}}
	}`, eventType, time.Now().Unix(), sessionID))
}

func postStripe(f *webhookFixture, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func postPrintful(f *webhookFixture, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/printful", bytes.NewReader(payload))
	req.Header.Set("X-Printful-Signature", signature)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookProcessesCheckout(t *testing.T) {
	f := newWebhookFixture(t)
	payload := stripeEventPayload("checkout.session.completed", "cs_test_123")

	rec := postStripe(f, payload, stripeSignature(stripeTestSecret, payload, time.Now().Unix()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	order, err := f.orders.FindBySessionID(context.Background(), "cs_test_123")
	if err != nil || order == nil {
		t.Fatalf("order not found: %v", err)
	}
	if order.PrintfulOrderID != "999888777" {
		t.Fatalf("unexpected fulfillment id %q", order.PrintfulOrderID)
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t)
	payload := stripeEventPayload("checkout.session.completed", "cs_test_123")

	rec := postStripe(f, payload, stripeSignature("whsec_wrong", payload, time.Now().Unix()))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	// a rejected delivery must not touch the database
	assertCount(t, f.db, `SELECT COUNT(*) FROM orders`, 0)
	assertCount(t, f.db, `SELECT COUNT(*) FROM order_events`, 0)
}

func TestStripeWebhookAcksDuplicate(t *testing.T) {
	f := newWebhookFixture(t)
	payload := stripeEventPayload("checkout.session.completed", "cs_test_123")
	sig := stripeSignature(stripeTestSecret, payload, time.Now().Unix())

	postStripe(f, payload, sig)
	rec := postStripe(f, payload, sig)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["duplicate"] != true {
		t.Fatalf("expected duplicate ack, got %v", body)
	}
	assertCount(t, f.db, `SELECT COUNT(*) FROM orders`, 1)
}

func TestStripeWebhookAcksIgnoredEventTypes(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"id": "evt_test_2", "type": "invoice.paid", "data": {"object": {"id": "in_1"}}}`)

	rec := postStripe(f, payload, stripeSignature(stripeTestSecret, payload, time.Now().Unix()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored type, got %d", rec.Code)
	}
	assertCount(t, f.db, `SELECT COUNT(*) FROM orders`, 0)
}

func TestPrintfulWebhookRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"type": "package_shipped", "data": {"order": {"id": 999888777}}}`)

	rec := postPrintful(f, payload, printfulSignature("pf_whsec_wrong", payload))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	assertCount(t, f.db, `SELECT COUNT(*) FROM order_events`, 0)
}

func TestPrintfulWebhookMissingOrderID(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"type": "package_shipped", "data": {}}`)

	rec := postPrintful(f, payload, printfulSignature(printfulTestSecret, payload))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Missing order ID" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestPrintfulWebhookUnknownOrderAcked(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"type": "package_shipped", "data": {"order": {"id": 555}}}`)

	rec := postPrintful(f, payload, printfulSignature(printfulTestSecret, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["warning"] != "Order not found" {
		t.Fatalf("unexpected body %v", body)
	}
	assertCount(t, f.db, `SELECT COUNT(*) FROM order_events`, 0)
}

func TestPrintfulWebhookShipsOrder(t *testing.T) {
	f := newWebhookFixture(t)

	checkout := stripeEventPayload("checkout.session.completed", "cs_test_123")
	postStripe(f, checkout, stripeSignature(stripeTestSecret, checkout, time.Now().Unix()))

	payload := []byte(`{
		"type": "package_shipped",
		"data": {
			"order": {"id": 999888777},
			"shipment": {"carrier": "USPS", "tracking_number": "9400100000000000000000"}
		}
	}`)
	rec := postPrintful(f, payload, printfulSignature(printfulTestSecret, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	order, err := f.orders.FindByFulfillmentID(context.Background(), "999888777")
	if err != nil || order == nil {
		t.Fatalf("order not found: %v", err)
	}
	if order.Status != orderdomain.StatusShipped {
		t.Fatalf("expected shipped, got %s", order.Status)
	}
	if order.Metadata["tracking_number"] != "9400100000000000000000" {
		t.Fatalf("tracking metadata missing: %+v", order.Metadata)
	}
}

func TestOrderStatusEndpoint(t *testing.T) {
	f := newWebhookFixture(t)
	checkout := stripeEventPayload("checkout.session.completed", "cs_test_123")
	postStripe(f, checkout, stripeSignature(stripeTestSecret, checkout, time.Now().Unix()))

	req := httptest.NewRequest(http.MethodGet, "/api/orders/cs_test_123", nil)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "processing" {
		t.Fatalf("unexpected status %v", body["status"])
	}
	if body["total_amount"] != float64(2400) {
		t.Fatalf("unexpected total %v", body["total_amount"])
	}
}

func TestOrderStatusEndpointNotFound(t *testing.T) {
	f := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/cs_missing", nil)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
