package monime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Mobile-money provider codes.
const (
	ProviderOrangeMoney = "m17"
	ProviderAfrimoney   = "m18"
)

// ProviderCode maps a mobile-money method name to its gateway provider id.
func ProviderCode(method string) (string, bool) {
	switch method {
	case "orange_money":
		return ProviderOrangeMoney, true
	case "afrimoney":
		return ProviderAfrimoney, true
	}
	return "", false
}

type PayoutDestination struct {
	Type                 string `json:"type"`
	ProviderID           string `json:"providerId"`
	PhoneNumber          string `json:"phoneNumber"`
	TransactionReference string `json:"transactionReference,omitempty"`
}

type PayoutSource struct {
	FinancialAccountID string `json:"financialAccountId,omitempty"`
}

type PayoutRequest struct {
	Amount      Money             `json:"amount"`
	Destination PayoutDestination `json:"destination"`
	Source      *PayoutSource     `json:"source,omitempty"`
	Metadata    *Metadata         `json:"metadata,omitempty"`
}

type PayoutFee struct {
	Code   string `json:"code"`
	Amount Money  `json:"amount"`
}

type FailureDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Payout struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	Amount        Money             `json:"amount"`
	Destination   PayoutDestination `json:"destination"`
	Fees          []PayoutFee       `json:"fees"`
	FailureDetail *FailureDetail    `json:"failureDetail,omitempty"`
	CreateTime    string            `json:"createTime"`
	Metadata      *Metadata         `json:"metadata,omitempty"`
}

// FeesMinor sums the gateway fee lines in minor units.
func (p *Payout) FeesMinor() int64 {
	var total int64
	for _, f := range p.Fees {
		total += f.Amount.Value
	}
	return total
}

// Settled treats a provider transaction reference as proof of completion
// while the status still lags behind the mobile-money network. A failed
// payout is never settled.
func (p *Payout) Settled() bool {
	if p.Status == StatusFailed {
		return false
	}
	return p.Status == StatusCompleted || p.Destination.TransactionReference != ""
}

// CreatePayout sends money to a mobile-money wallet. reference travels in
// metadata because the payout endpoint has no top-level reference field.
func (c *Client) CreatePayout(ctx context.Context, r PayoutRequest, reference string) (*Payout, error) {
	if r.Amount.Value <= 0 || r.Amount.Currency == "" {
		return nil, fmt.Errorf("monime create payout: amount: %w", ErrMissingFields)
	}
	if r.Destination.ProviderID == "" || r.Destination.PhoneNumber == "" {
		return nil, fmt.Errorf("monime create payout: destination: %w", ErrMissingFields)
	}
	if r.Destination.Type == "" {
		r.Destination.Type = "momo"
	}
	r.Amount.Currency = ISOCurrency(r.Amount.Currency)
	md := NewMetadata()
	if reference != "" {
		md.Set("reference", reference)
	}
	r.Metadata = withSource(md.Merge(r.Metadata))

	var p Payout
	if err := c.do(ctx, call{
		op:     "create_payout",
		method: http.MethodPost,
		path:   "/v1/payouts",
		key:    c.payoutKey,
		body:   r,
	}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetPayout(ctx context.Context, id string) (*Payout, error) {
	var p Payout
	if err := c.do(ctx, call{
		op:     "get_payout",
		method: http.MethodGet,
		path:   "/v1/payouts/" + url.PathEscape(id),
		key:    c.payoutKey,
	}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ISOCurrency maps the display code for the redenominated leone to ISO 4217.
func ISOCurrency(c string) string {
	if c == "NLe" {
		return "SLE"
	}
	return c
}
