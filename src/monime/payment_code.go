package monime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusExpired    = "expired"

	DefaultPaymentCodeDuration = "30m"
)

var ErrMissingFields = errors.New("missing required fields")

type PaymentCodeRequest struct {
	Name                string    `json:"name"`
	Mode                string    `json:"mode"`
	Amount              Money     `json:"amount"`
	Duration            string    `json:"duration"`
	Enable              bool      `json:"enable"`
	AuthorizedProviders []string  `json:"authorizedProviders"`
	Reference           string    `json:"reference,omitempty"`
	Metadata            *Metadata `json:"metadata,omitempty"`
}

type PaymentCode struct {
	ID                   string            `json:"id"`
	Mode                 string            `json:"mode"`
	Status               string            `json:"status"`
	Name                 string            `json:"name"`
	Amount               Money             `json:"amount"`
	Enable               bool              `json:"enable"`
	ExpireTime           string            `json:"expireTime"`
	USSDCode             string            `json:"ussdCode"`
	Reference            string            `json:"reference,omitempty"`
	AuthorizedProviders  []string          `json:"authorizedProviders"`
	Metadata             *Metadata         `json:"metadata,omitempty"`
	CreateTime           string            `json:"createTime"`
	ProcessedPaymentData *ProcessedPayment `json:"processedPaymentData,omitempty"`
}

type ProcessedPayment struct {
	Amount          Money  `json:"amount"`
	OrderID         string `json:"orderId"`
	PaymentID       string `json:"paymentId"`
	FinancialTxnRef string `json:"financialTransactionReference"`
}

// TransactionID is the gateway payment reference once the code was paid.
func (p *PaymentCode) TransactionID() string {
	if p.ProcessedPaymentData == nil {
		return ""
	}
	if p.ProcessedPaymentData.PaymentID != "" {
		return p.ProcessedPaymentData.PaymentID
	}
	return p.ProcessedPaymentData.FinancialTxnRef
}

func (c *Client) CreatePaymentCode(ctx context.Context, r PaymentCodeRequest) (*PaymentCode, error) {
	if r.Name == "" || r.Amount.Value <= 0 || r.Amount.Currency == "" {
		return nil, fmt.Errorf("monime create payment code: %w", ErrMissingFields)
	}
	if r.Mode == "" {
		r.Mode = "one_time"
	}
	if r.Duration == "" {
		r.Duration = DefaultPaymentCodeDuration
	}
	if r.AuthorizedProviders == nil {
		r.AuthorizedProviders = []string{}
	}
	r.Enable = true
	r.Metadata = withSource(r.Metadata)

	var pc PaymentCode
	if err := c.do(ctx, call{
		op:     "create_payment_code",
		method: http.MethodPost,
		path:   "/v1/payment-codes",
		key:    c.apiKey,
		body:   r,
	}, &pc); err != nil {
		return nil, err
	}
	return &pc, nil
}

func (c *Client) GetPaymentCode(ctx context.Context, id string) (*PaymentCode, error) {
	var pc PaymentCode
	if err := c.do(ctx, call{
		op:     "get_payment_code",
		method: http.MethodGet,
		path:   "/v1/payment-codes/" + url.PathEscape(id),
		key:    c.apiKey,
	}, &pc); err != nil {
		return nil, err
	}
	return &pc, nil
}

func (c *Client) CancelPaymentCode(ctx context.Context, id string) error {
	return c.do(ctx, call{
		op:     "cancel_payment_code",
		method: http.MethodDelete,
		path:   "/v1/payment-codes/" + url.PathEscape(id),
		key:    c.apiKey,
	}, nil)
}
