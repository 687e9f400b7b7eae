package monime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Money struct {
	Currency string `json:"currency"`
	Value    int64  `json:"value"`
}

type LineItem struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Price       Money  `json:"price"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

type CheckoutSessionRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	SuccessURL  string     `json:"successUrl"`
	CancelURL   string     `json:"cancelUrl"`
	LineItems   []LineItem `json:"lineItems"`
	Reference   string     `json:"reference,omitempty"`
	Metadata    *Metadata  `json:"metadata,omitempty"`
}

type CheckoutSession struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Name        string    `json:"name"`
	OrderNumber string    `json:"orderNumber"`
	Reference   string    `json:"reference,omitempty"`
	RedirectURL string    `json:"redirectUrl"`
	SuccessURL  string    `json:"successUrl"`
	CancelURL   string    `json:"cancelUrl"`
	ExpireTime  string    `json:"expireTime"`
	CreateTime  string    `json:"createTime"`
	Metadata    *Metadata `json:"metadata,omitempty"`
	LineItems   struct {
		Data []LineItem `json:"data"`
	} `json:"lineItems"`
}

// Total sums line items in minor units.
func (s *CheckoutSession) Total() Money {
	var m Money
	for _, li := range s.LineItems.Data {
		m.Value += li.Price.Value * int64(li.Quantity)
		if m.Currency == "" {
			m.Currency = li.Price.Currency
		}
	}
	return m
}

func (c *Client) CreateCheckoutSession(ctx context.Context, r CheckoutSessionRequest) (*CheckoutSession, error) {
	if r.Name == "" || r.SuccessURL == "" || r.CancelURL == "" || len(r.LineItems) == 0 {
		return nil, fmt.Errorf("monime create checkout session: %w", ErrMissingFields)
	}
	r.Metadata = withSource(r.Metadata)
	if c.mock {
		return mockCheckoutSession(r), nil
	}
	var s CheckoutSession
	if err := c.do(ctx, call{
		op:     "create_checkout_session",
		method: http.MethodPost,
		path:   "/v1/checkout-sessions",
		key:    c.apiKey,
		body:   r,
	}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	if c.mock && strings.HasPrefix(id, mockPrefix) {
		return &CheckoutSession{ID: id, Status: StatusCompleted}, nil
	}
	var s CheckoutSession
	if err := c.do(ctx, call{
		op:     "get_checkout_session",
		method: http.MethodGet,
		path:   "/v1/checkout-sessions/" + url.PathEscape(id),
		key:    c.apiKey,
	}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

const mockPrefix = "mock_"

func mockCheckoutSession(r CheckoutSessionRequest) *CheckoutSession {
	now := time.Now().UTC()
	id := fmt.Sprintf("%s%d", mockPrefix, now.UnixNano())
	s := &CheckoutSession{
		ID:         id,
		Status:     StatusPending,
		Name:       r.Name,
		Reference:  r.Reference,
		SuccessURL: r.SuccessURL,
		CancelURL:  r.CancelURL,
		CreateTime: now.Format(time.RFC3339),
		Metadata:   r.Metadata,
	}
	s.LineItems.Data = r.LineItems
	total := s.Total()
	q := url.Values{}
	q.Set("mock_session_id", id)
	q.Set("amount", fmt.Sprint(total.Value))
	q.Set("currency", total.Currency)
	s.RedirectURL = "/payment/mock-checkout?" + q.Encode()
	return s
}
