package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/internal/availability"
	"github.com/angelmondragon/tourbook-backend/internal/bookings"
	"github.com/angelmondragon/tourbook-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

const (
	defaultTimeout         = 10 * time.Second
	errorBodyReadLimit     = 4 << 10
	availabilitySocketPath = "/ws/availability"
)

var errBaseURLRequired = errors.New("storefront base url is required")

// Client talks to the tourbook REST API on behalf of one shopper.
type Client struct {
	httpClient *http.Client
	baseURL    string

	mu    sync.RWMutex
	token string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient builds a client rooted at baseURL, for example https://api.example.com.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SetToken swaps the bearer token, typically after a SESSION_EXPIRED re-login.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Cart(ctx context.Context) (*cart.View, error) {
	var view cart.View
	if err := c.do(ctx, http.MethodGet, "/api/v1/cart", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) AddItem(ctx context.Context, tourID uuid.UUID, startDate types.Date, travelers int) (*cart.View, error) {
	body := map[string]any{
		"tour_id":    tourID,
		"start_date": startDate.String(),
		"travelers":  travelers,
	}
	var view cart.View
	if err := c.do(ctx, http.MethodPost, "/api/v1/cart/items", body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) UpdateQuantity(ctx context.Context, itemID uuid.UUID, travelers int) (*cart.View, error) {
	var view cart.View
	if err := c.do(ctx, http.MethodPut, "/api/v1/cart/items/"+itemID.String(), map[string]any{"travelers": travelers}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) RemoveItem(ctx context.Context, itemID uuid.UUID) (*cart.View, error) {
	var view cart.View
	if err := c.do(ctx, http.MethodDelete, "/api/v1/cart/items/"+itemID.String(), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) ApplyCoupon(ctx context.Context, code string) (*cart.View, error) {
	var view cart.View
	if err := c.do(ctx, http.MethodPost, "/api/v1/cart/coupon", map[string]any{"code": code}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) ClearCart(ctx context.Context) (*cart.View, error) {
	var view cart.View
	if err := c.do(ctx, http.MethodDelete, "/api/v1/cart", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Book commits the current cart.
func (c *Client) Book(ctx context.Context) (*bookings.Receipt, error) {
	var receipt bookings.Receipt
	if err := c.do(ctx, http.MethodPost, "/api/v1/bookings", nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Bookings returns one page of booking history. Pass the previous NextCursor to continue.
func (c *Client) Bookings(ctx context.Context, cursor string) (*bookings.Page, error) {
	path := "/api/v1/bookings"
	if cursor != "" {
		path += "?cursor=" + url.QueryEscape(cursor)
	}
	var page bookings.Page
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Availability fetches the authoritative departure snapshot for a tour.
func (c *Client) Availability(ctx context.Context, tourID uuid.UUID) (availability.Snapshot, error) {
	var snap availability.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/tours/"+tourID.String()+"/availability", nil, &snap); err != nil {
		return availability.Snapshot{}, err
	}
	return snap, nil
}

// AvailabilityFetcher adapts Availability for the watcher's poll fallback.
func (c *Client) AvailabilityFetcher() availability.Fetcher {
	return availability.FetcherFunc(c.Availability)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "storefront client not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return pkgerrors.Wrap(pkgerrors.CodeNetworkUnavailable, err, "network unavailable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	var envelope types.Envelope[types.RawData]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response data")
	}
	return nil
}

// decodeError maps the API error envelope back onto the shared error codes, so a 401
// SESSION_EXPIRED surfaces as CodeSessionExpired to the caller.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Empty() {
		code := pkgerrors.CodeDependency
		if resp.StatusCode == http.StatusUnauthorized {
			code = pkgerrors.CodeUnauthorized
		}
		return pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), "unexpected api response")
	}

	apiErr := pkgerrors.New(pkgerrors.Code(envelope.Error.Code), envelope.Error.Message)
	if envelope.Error.Details != nil {
		apiErr = apiErr.WithDetails(envelope.Error.Details)
	}
	return apiErr
}
