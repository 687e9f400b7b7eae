package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Timestamps struct {
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at,omitempty"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at,omitempty"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, a)
}

// String returns the value under key when it holds a string.
func (a JSONB) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Decimal reads a numeric value stored either as a JSON number or a string.
func (a JSONB) Decimal(key string) (decimal.Decimal, bool) {
	switch v := a[key].(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	case decimal.Decimal:
		return v, true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	}
	return decimal.Zero, false
}

func scanBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case nil:
		return []byte("null"), nil
	}
	return nil, errors.New("type assertion to []byte failed")
}

type PaymentMethod string

const (
	PAYMENT_SOLANA       PaymentMethod = "solana"
	PAYMENT_ORANGE_MONEY PaymentMethod = "orange_money"
	PAYMENT_AFRIMONEY    PaymentMethod = "afrimoney"
	PAYMENT_CARD         PaymentMethod = "card"
	PAYMENT_FREE         PaymentMethod = "free"
)

func (m PaymentMethod) IsMobileMoney() bool {
	return m == PAYMENT_ORANGE_MONEY || m == PAYMENT_AFRIMONEY
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PAYMENT_SOLANA, PAYMENT_ORANGE_MONEY, PAYMENT_AFRIMONEY, PAYMENT_CARD, PAYMENT_FREE:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PAYMENT_PENDING   PaymentStatus = "pending"
	PAYMENT_COMPLETED PaymentStatus = "completed"
	PAYMENT_FAILED    PaymentStatus = "failed"
)

type OrderStatus string

const (
	ORDER_PENDING   OrderStatus = "pending"
	ORDER_CONFIRMED OrderStatus = "confirmed"
	ORDER_CANCELLED OrderStatus = "cancelled"
)

type GuestStatus string

const (
	GUEST_PENDING    GuestStatus = "pending"
	GUEST_CONFIRMED  GuestStatus = "confirmed"
	GUEST_CHECKED_IN GuestStatus = "checked-in"
	GUEST_CANCELLED  GuestStatus = "cancelled"
)

type WithdrawalStatus string

const (
	WITHDRAWAL_PENDING_APPROVAL WithdrawalStatus = "pending_approval"
	WITHDRAWAL_PENDING          WithdrawalStatus = "pending"
	WITHDRAWAL_COMPLETED        WithdrawalStatus = "completed"
	WITHDRAWAL_CANCELLED        WithdrawalStatus = "cancelled"
	WITHDRAWAL_FAILED           WithdrawalStatus = "failed"
)

// Terminal states admit no further transitions or signatures.
func (s WithdrawalStatus) Terminal() bool {
	return s == WITHDRAWAL_COMPLETED || s == WITHDRAWAL_CANCELLED || s == WITHDRAWAL_FAILED
}

type Signature struct {
	SignerWalletAddress string    `json:"signer_wallet_address"`
	Signature           string    `json:"signature"`
	SignedAt            time.Time `json:"signed_at"`
}

// Signatures is stored as an ordered jsonb list.
type Signatures []Signature

func (s Signatures) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	valueString, err := json.Marshal(s)
	return string(valueString), err
}
func (s *Signatures) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, s)
}

func (s Signatures) Has(wallet string) bool {
	for _, sig := range s {
		if sig.SignerWalletAddress == wallet {
			return true
		}
	}
	return false
}

type Session struct {
	UserID        string `json:"user_id,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Source        string `json:"source,omitempty"`
}

type CartItem struct {
	TicketTypeID string `json:"ticket_type_id" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required,gt=0"`
}

// OrderLine is one ticket type in an order, priced at purchase time.
type OrderLine struct {
	TicketTypeID string          `json:"ticket_type_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

func (l OrderLine) TotalPrice() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type CreatePaymentRequestBody struct {
	EventID       string     `json:"event_id" binding:"required"`
	PaymentMethod string     `json:"payment_method" binding:"required"`
	Items         []CartItem `json:"items" binding:"required,min=1,dive"`
	BuyerName     string     `json:"buyer_name,omitempty"`
	BuyerEmail    string     `json:"buyer_email,omitempty" binding:"omitempty,email"`
	SuccessURL    string     `json:"success_url,omitempty"`
	CancelURL     string     `json:"cancel_url,omitempty"`
}

type MobileMoneyOrderRequestBody struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

type CryptoOrderRequestBody struct {
	EventID         string     `json:"event_id" binding:"required"`
	TransactionHash string     `json:"transaction_hash" binding:"required"`
	Items           []CartItem `json:"items" binding:"required,min=1,dive"`
	BuyerName       string     `json:"buyer_name,omitempty"`
	BuyerEmail      string     `json:"buyer_email,omitempty" binding:"omitempty,email"`
}

type FreeOrderRequestBody struct {
	EventID    string     `json:"event_id" binding:"required"`
	Items      []CartItem `json:"items" binding:"required,min=1,dive"`
	BuyerName  string     `json:"buyer_name,omitempty"`
	BuyerEmail string     `json:"buyer_email,omitempty" binding:"omitempty,email"`
}

type CreateWithdrawalRequestBody struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency,omitempty"`
	Provider    string          `json:"provider" binding:"required,momo_provider"`
	PhoneNumber string          `json:"phone_number" binding:"required"`
}

type SignWithdrawalRequestBody struct {
	Signature string `json:"signature" binding:"required"`
}

type ExecuteWithdrawalRequestBody struct {
	WithdrawalID string `json:"withdrawal_id" binding:"required"`
}

type CancelWithdrawalRequestBody struct {
	WithdrawalID  string `json:"withdrawal_id" binding:"required"`
	WalletAddress string `json:"wallet_address" binding:"required"`
}

type SimpleRequestParams struct {
	ID string `uri:"id" binding:"required"`
}

type TokenRequestParams struct {
	Token string `uri:"token" binding:"required"`
}

type PaymentCodeStatusQuery struct {
	CodeID string `form:"codeId" binding:"required"`
}

type PaymentStatusQuery struct {
	SessionID string `form:"sessionId" binding:"required"`
}

type PayoutStatusQuery struct {
	PayoutID string `form:"payoutId" binding:"required"`
}
