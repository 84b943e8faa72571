package printful

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	fulfillmentdomain "github.com/emberhollow/storefront/internal/fulfillment/domain"
)

const defaultBaseURL = "https://api.printful.com"

type envelope struct {
	Code   int             `json:"code"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the Printful REST API with bearer auth.
type Client struct {
	apiToken string
	storeID  string
	baseURL  string
	client   *http.Client
}

func NewClient(apiToken string, storeID string) *Client {
	return &Client{
		apiToken: strings.TrimSpace(apiToken),
		storeID:  strings.TrimSpace(storeID),
		baseURL:  defaultBaseURL,
		client:   &http.Client{Timeout: 12 * time.Second},
	}
}

// NewClientWithBaseURL is used by tests to point at a stub server.
func NewClientWithBaseURL(apiToken string, storeID string, baseURL string) *Client {
	c := NewClient(apiToken, storeID)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) GetSyncVariant(
	ctx context.Context,
	syncVariantID string,
) (*fulfillmentdomain.SyncVariant, error) {
	syncVariantID = strings.TrimSpace(syncVariantID)
	if syncVariantID == "" {
		return nil, fulfillmentdomain.ErrVariantNotFound
	}

	result, err := c.doRequest(ctx, http.MethodGet, "/store/variants/"+url.PathEscape(syncVariantID), nil)
	if err != nil {
		return nil, err
	}

	// The endpoint wraps the variant in a sync_variant field.
	var wrapped struct {
		SyncVariant *fulfillmentdomain.SyncVariant `json:"sync_variant"`
	}
	if err := json.Unmarshal(result, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.SyncVariant != nil {
		return wrapped.SyncVariant, nil
	}

	var variant fulfillmentdomain.SyncVariant
	if err := json.Unmarshal(result, &variant); err != nil {
		return nil, err
	}
	return &variant, nil
}

func (c *Client) CreateOrder(
	ctx context.Context,
	req *fulfillmentdomain.ProviderOrderRequest,
) (*fulfillmentdomain.ProviderOrder, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, errors.New("printful_order_empty")
	}

	result, err := c.doRequest(ctx, http.MethodPost, "/orders", req)
	if err != nil {
		return nil, err
	}

	var order fulfillmentdomain.ProviderOrder
	if err := json.Unmarshal(result, &order); err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, errors.New("printful_response_invalid")
	}
	return &order, nil
}

func (c *Client) doRequest(
	ctx context.Context,
	method string,
	path string,
	body any,
) (json.RawMessage, error) {
	if c.apiToken == "" {
		return nil, fulfillmentdomain.ErrInvalidConfig
	}

	var bodyReader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(encoded)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.storeID != "" {
		req.Header.Set("X-PF-Store-Id", c.storeID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode == http.StatusNotFound {
			return nil, fulfillmentdomain.ErrVariantNotFound
		}
		return nil, errors.New("printful_response_invalid")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fulfillmentdomain.ErrVariantNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		providerErr := &fulfillmentdomain.ProviderError{Code: resp.StatusCode}
		if env.Error != nil {
			providerErr.Reason = env.Error.Reason
			providerErr.Message = env.Error.Message
		}
		return nil, providerErr
	}
	return env.Result, nil
}
