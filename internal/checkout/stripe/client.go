package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	checkoutdomain "github.com/emberhollow/storefront/internal/checkout/domain"
)

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the payment provider's REST API with form-encoded
// requests and bearer auth.
type Client struct {
	apiKey string
	client *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: strings.TrimSpace(apiKey),
		client: &http.Client{Timeout: 12 * time.Second},
	}
}

func (c *Client) CreateSession(
	ctx context.Context,
	params checkoutdomain.CreateSessionParams,
) (*checkoutdomain.Session, error) {
	if params.UnitAmount <= 0 || params.Quantity <= 0 {
		return nil, checkoutdomain.ErrInvalidRequest
	}

	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("success_url", params.SuccessURL)
	values.Set("cancel_url", params.CancelURL)
	values.Set("shipping_address_collection[allowed_countries][]", "US")
	values.Add("shipping_address_collection[allowed_countries][]", "CA")
	values.Set("line_items[0][quantity]", strconv.FormatInt(params.Quantity, 10))
	values.Set("line_items[0][price_data][currency]", strings.ToLower(params.Currency))
	values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.UnitAmount, 10))
	values.Set("line_items[0][price_data][product_data][name]", params.ProductName)
	if params.ImageURL != "" {
		values.Set("line_items[0][price_data][product_data][images][]", params.ImageURL)
	}
	if params.CustomerEmail != "" {
		values.Set("customer_email", params.CustomerEmail)
	}
	for key, value := range params.Metadata {
		values.Set("metadata["+key+"]", value)
	}

	return c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values)
}

// RetrieveSession fetches the expanded session. Webhook payloads omit
// line items and shipping details, so reconciliation always re-fetches.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*checkoutdomain.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, checkoutdomain.ErrInvalidRequest
	}
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID) + "?expand[]=line_items"
	return c.doRequest(ctx, http.MethodGet, path, nil)
}

func (c *Client) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
) (*checkoutdomain.Session, error) {
	if c.apiKey == "" {
		return nil, checkoutdomain.ErrInvalidConfig
	}
	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, "https://api.stripe.com"+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return nil, errors.New("stripe_request_failed")
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		return nil, errors.New(message)
	}

	var session checkoutdomain.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, errors.New("stripe_response_invalid")
	}
	return &session, nil
}
