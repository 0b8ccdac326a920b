// Package cartclient is a Go client for the storefront cart endpoints and a
// local cart view that applies mutations optimistically and reconciles with
// the server.
package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Line struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Available bool            `json:"available"`
}

type Cart struct {
	OwnerID    uuid.UUID       `json:"ownerId"`
	Items      []Line          `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

func (c Cart) clone() Cart {
	c.Items = append([]Line(nil), c.Items...)
	return c
}

// APIError is a non-2xx response. The stock fields are set when the server
// rejected a quantity for lack of stock.
type APIError struct {
	StatusCode  int    `json:"-"`
	Message     string `json:"error"`
	ProductID   string `json:"productId,omitempty"`
	ProductName string `json:"productName,omitempty"`
	Requested   int    `json:"requested,omitempty"`
	Available   int    `json:"available,omitempty"`
}

func (e *APIError) Error() string {
	if e.ProductName != "" {
		return fmt.Sprintf("cartclient: %d: %s (%s, available %d)", e.StatusCode, e.Message, e.ProductName, e.Available)
	}
	return fmt.Sprintf("cartclient: %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

// New returns a client for the API at baseURL. hc may be nil.
func New(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, hc: hc}
}

func (c *Client) Get(ctx context.Context) (Cart, error) {
	var out Cart
	err := c.do(ctx, http.MethodGet, "/cart", nil, &out)
	return out, err
}

func (c *Client) Add(ctx context.Context, productID uuid.UUID, qty int) (Cart, error) {
	var out Cart
	body := map[string]any{"productId": productID, "quantity": qty}
	err := c.do(ctx, http.MethodPost, "/cart/items", body, &out)
	return out, err
}

// SetQuantity overwrites a line. qty <= 0 removes it.
func (c *Client) SetQuantity(ctx context.Context, productID uuid.UUID, qty int) (Cart, error) {
	var out Cart
	err := c.do(ctx, http.MethodPut, "/cart/items/"+productID.String(), map[string]int{"quantity": qty}, &out)
	return out, err
}

func (c *Client) Remove(ctx context.Context, productID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/cart/items/"+productID.String(), nil, nil)
}

func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("cartclient: encode: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("cartclient: new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("cartclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cartclient: decode %s %s: %w", method, path, err)
	}
	return nil
}
