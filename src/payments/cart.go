// Package payments validates carts and turns them into gateway payment
// intents: Monime checkout sessions and payment codes, or Stripe sessions
// for card buyers.
package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"sosseats/src/fees"
	"sosseats/src/models"
	"sosseats/src/types"

	"github.com/shopspring/decimal"
)

// MobileMoneyTicketCap is the largest cart a mobile-money payment may cover.
const MobileMoneyTicketCap = 1

var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrInvalidQuantity       = errors.New("ticket quantity must be positive")
	ErrUnknownTicketType     = errors.New("unknown ticket type")
	ErrInvalidAmount         = errors.New("payment amount must be positive")
	ErrUnknownPaymentMethod  = errors.New("unknown payment method")
	ErrUnsupportedMethod     = errors.New("payment method not supported for this flow")
	ErrTicketCapExceeded     = errors.New("ticket limit exceeded for mobile money")
	ErrEventNotFound         = errors.New("event not found")
	ErrMissingRedirectURL    = errors.New("success and cancel URLs are required")
	ErrPaymentNotCompleted   = errors.New("payment has not completed")
	ErrIntentNotFound        = errors.New("payment intent not found or expired")
	ErrPaymentAmountMismatch = errors.New("paid amount does not match the order total")
)

// IsValidation reports whether err is a caller mistake that retrying will not fix.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrEmptyCart, ErrInvalidQuantity, ErrUnknownTicketType, ErrInvalidAmount,
		ErrUnknownPaymentMethod, ErrUnsupportedMethod, ErrTicketCapExceeded, ErrMissingRedirectURL,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type Buyer struct {
	UserID        string `json:"user_id,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
}

type Cart struct {
	EventID       string
	PaymentMethod types.PaymentMethod
	Items         map[string]int
	Buyer         Buyer
	SuccessURL    string
	CancelURL     string
}

// NewCart folds repeated ticket types together.
func NewCart(eventID string, method types.PaymentMethod, items []types.CartItem, buyer Buyer) Cart {
	c := Cart{EventID: eventID, PaymentMethod: method, Items: map[string]int{}, Buyer: buyer}
	for _, it := range items {
		c.Items[it.TicketTypeID] += it.Quantity
	}
	return c
}

func (c Cart) TotalQuantity() int {
	n := 0
	for _, q := range c.Items {
		n += q
	}
	return n
}

// TicketTypeIDs returns the cart's ticket type ids in a stable order.
func (c Cart) TicketTypeIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for id := range c.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the cart shape before any catalog lookup.
func (c Cart) Validate() error {
	if !c.PaymentMethod.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, c.PaymentMethod)
	}
	if len(c.Items) == 0 {
		return ErrEmptyCart
	}
	for id, q := range c.Items {
		if q <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidQuantity, id)
		}
	}
	if c.PaymentMethod.IsMobileMoney() {
		if n := c.TotalQuantity(); n > MobileMoneyTicketCap {
			return fmt.Errorf("%w: mobile money payments are limited to %d ticket per transaction, your cart has %d. Please pay with crypto or split the purchase",
				ErrTicketCapExceeded, MobileMoneyTicketCap, n)
		}
	}
	return nil
}

type Line struct {
	TicketType models.TicketType
	Quantity   int
}

func (l Line) Total() decimal.Decimal {
	return l.TicketType.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// PricedCart is a validated cart with catalog prices and the platform fee applied.
type PricedCart struct {
	Cart
	Event       *models.Event
	Lines       []Line
	Subtotal    decimal.Decimal
	PlatformFee decimal.Decimal
	Total       decimal.Decimal
}

func (p *PricedCart) TicketNames() string {
	names := make([]string, 0, len(p.Lines))
	for _, l := range p.Lines {
		names = append(names, l.TicketType.Name)
	}
	return strings.Join(names, ", ")
}

// OrderItems returns the cart lines in the shape the order procedures expect.
func (p *PricedCart) OrderItems() []types.OrderLine {
	out := make([]types.OrderLine, 0, len(p.Lines))
	for _, l := range p.Lines {
		out = append(out, types.OrderLine{TicketTypeID: l.TicketType.ID, Quantity: l.Quantity, UnitPrice: l.TicketType.Price})
	}
	return out
}

// Price validates the cart and prices it from the catalog. Free tickets carry
// no platform fee.
func Price(ctx context.Context, catalog Catalog, policy fees.PlatformPolicy, c Cart) (*PricedCart, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	event, err := catalog.Event(ctx, c.EventID)
	if err != nil {
		return nil, err
	}
	ids := c.TicketTypeIDs()
	tts, err := catalog.TicketTypes(ctx, c.EventID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.TicketType, len(tts))
	for _, tt := range tts {
		byID[tt.ID] = tt
	}

	p := &PricedCart{Cart: c, Event: event, Subtotal: decimal.Zero}
	feeLines := []fees.Line{}
	for _, id := range ids {
		tt, ok := byID[id]
		if !ok || tt.EventID != c.EventID {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTicketType, id)
		}
		line := Line{TicketType: tt, Quantity: c.Items[id]}
		p.Lines = append(p.Lines, line)
		p.Subtotal = p.Subtotal.Add(line.Total())
		if tt.Price.IsPositive() {
			feeLines = append(feeLines, fees.Line{UnitPrice: tt.Price, Quantity: line.Quantity})
		}
	}
	p.PlatformFee = policy.CartFee(feeLines)
	p.Total = p.Subtotal.Add(p.PlatformFee)

	if c.PaymentMethod == types.PAYMENT_FREE {
		if !p.Subtotal.IsZero() {
			return nil, fmt.Errorf("%w: free claims cannot include paid tickets", ErrUnsupportedMethod)
		}
		return p, nil
	}
	if !p.Total.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return p, nil
}
