package payments

import (
	"context"
	"fmt"
	"time"

	"sosseats/src/fees"
	"sosseats/src/monime"
	"sosseats/src/monitoring"
	"sosseats/src/types"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Currency is the ISO code mobile-money intents are priced in.
const Currency = "SLE"

// Gateway is the subset of the Monime client the builder uses.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, r monime.CheckoutSessionRequest) (*monime.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*monime.CheckoutSession, error)
	CreatePaymentCode(ctx context.Context, r monime.PaymentCodeRequest) (*monime.PaymentCode, error)
	GetPaymentCode(ctx context.Context, id string) (*monime.PaymentCode, error)
	CancelPaymentCode(ctx context.Context, id string) error
	GetPayout(ctx context.Context, id string) (*monime.Payout, error)
}

// CardProvider hosts card checkouts.
type CardProvider interface {
	CreateCheckoutSession(ctx context.Context, cart *PricedCart, reference string) (*CheckoutResult, error)
	CheckoutStatus(ctx context.Context, id string) (*StatusResult, error)
}

type CheckoutResult struct {
	ID          string          `json:"id"`
	CheckoutURL string          `json:"checkout_url"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CreatedAt   string          `json:"created_at"`
}

type PaymentCodeResult struct {
	ID         string       `json:"id"`
	USSDCode   string       `json:"ussdCode"`
	Status     string       `json:"status"`
	ExpireTime string       `json:"expireTime"`
	Amount     monime.Money `json:"amount"`
}

type StatusResult struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

type Builder struct {
	catalog Catalog
	gateway Gateway
	card    CardProvider
	intents IntentStore
	policy  fees.PlatformPolicy
	now     func() time.Time
}

type Option func(*Builder)

func WithCardProvider(p CardProvider) Option {
	return func(b *Builder) { b.card = p }
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

func NewBuilder(catalog Catalog, gateway Gateway, intents IntentStore, policy fees.PlatformPolicy, opts ...Option) *Builder {
	b := &Builder{
		catalog: catalog,
		gateway: gateway,
		intents: intents,
		policy:  policy,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) Policy() fees.PlatformPolicy {
	return b.policy
}

// Reference builds the merchant reference sent with every intent.
func (b *Builder) Reference(eventName string) string {
	return fmt.Sprintf("sos_seats_%s_%d", slug.Make(eventName), b.now().Unix())
}

// Price validates and prices a cart against the catalog.
func (b *Builder) Price(ctx context.Context, cart Cart) (*PricedCart, error) {
	return Price(ctx, b.catalog, b.policy, cart)
}

// CreateCheckoutSession opens a hosted checkout. Card carts go to the card
// provider, mobile-money carts to Monime.
func (b *Builder) CreateCheckoutSession(ctx context.Context, cart Cart) (*CheckoutResult, error) {
	if cart.PaymentMethod != types.PAYMENT_CARD && !cart.PaymentMethod.IsMobileMoney() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, cart.PaymentMethod)
	}
	if cart.SuccessURL == "" || cart.CancelURL == "" {
		return nil, ErrMissingRedirectURL
	}
	priced, err := b.Price(ctx, cart)
	if err != nil {
		return nil, err
	}
	ref := b.Reference(priced.Event.Name)

	if cart.PaymentMethod == types.PAYMENT_CARD {
		if b.card == nil {
			return nil, fmt.Errorf("%w: card payments are not configured", ErrUnsupportedMethod)
		}
		res, err := b.card.CreateCheckoutSession(ctx, priced, ref)
		if err != nil {
			return nil, err
		}
		if err := b.saveIntent(ctx, res.ID, IntentStripeSession, ref, res.Currency, priced); err != nil {
			return nil, err
		}
		monitoring.RecordPaymentIntent(IntentStripeSession, string(cart.PaymentMethod))
		return res, nil
	}

	items := make([]monime.LineItem, 0, len(priced.Lines)+1)
	for _, l := range priced.Lines {
		items = append(items, monime.LineItem{
			Type:      "custom",
			Name:      l.TicketType.Name,
			Price:     monime.Money{Currency: Currency, Value: fees.ToMinorUnits(l.TicketType.Price)},
			Quantity:  l.Quantity,
			Reference: l.TicketType.ID,
		})
	}
	if priced.PlatformFee.IsPositive() {
		items = append(items, monime.LineItem{
			Type:     "custom",
			Name:     "Platform fee",
			Price:    monime.Money{Currency: Currency, Value: fees.ToMinorUnits(priced.PlatformFee)},
			Quantity: 1,
		})
	}

	s, err := b.gateway.CreateCheckoutSession(ctx, monime.CheckoutSessionRequest{
		Name:        priced.Event.Name,
		Description: priced.TicketNames(),
		SuccessURL:  cart.SuccessURL,
		CancelURL:   cart.CancelURL,
		LineItems:   items,
		Reference:   ref,
		Metadata:    b.metadata(priced),
	})
	if err != nil {
		return nil, err
	}
	if err := b.saveIntent(ctx, s.ID, IntentCheckoutSession, ref, Currency, priced); err != nil {
		return nil, err
	}
	monitoring.RecordPaymentIntent(IntentCheckoutSession, string(cart.PaymentMethod))
	log.WithFields(log.Fields{"session_id": s.ID, "event_id": cart.EventID, "total": priced.Total.String()}).Info("checkout session created")

	return &CheckoutResult{
		ID:          s.ID,
		CheckoutURL: s.RedirectURL,
		Status:      s.Status,
		Amount:      priced.Total,
		Currency:    Currency,
		CreatedAt:   s.CreateTime,
	}, nil
}

// CreatePaymentCode issues a one-time USSD code restricted to the cart's provider.
func (b *Builder) CreatePaymentCode(ctx context.Context, cart Cart) (*PaymentCodeResult, error) {
	provider, ok := monime.ProviderCode(string(cart.PaymentMethod))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, cart.PaymentMethod)
	}
	priced, err := b.Price(ctx, cart)
	if err != nil {
		return nil, err
	}
	ref := b.Reference(priced.Event.Name)

	pc, err := b.gateway.CreatePaymentCode(ctx, monime.PaymentCodeRequest{
		Name:                fmt.Sprintf("%s - %s", priced.Event.Name, priced.TicketNames()),
		Amount:              monime.Money{Currency: Currency, Value: fees.ToMinorUnits(priced.Total)},
		Duration:            monime.DefaultPaymentCodeDuration,
		AuthorizedProviders: []string{provider},
		Reference:           ref,
		Metadata:            b.metadata(priced),
	})
	if err != nil {
		return nil, err
	}
	if err := b.saveIntent(ctx, pc.ID, IntentPaymentCode, ref, Currency, priced); err != nil {
		return nil, err
	}
	monitoring.RecordPaymentIntent(IntentPaymentCode, string(cart.PaymentMethod))
	log.WithFields(log.Fields{"payment_code_id": pc.ID, "event_id": cart.EventID, "total": priced.Total.String()}).Info("payment code created")

	return &PaymentCodeResult{
		ID:         pc.ID,
		USSDCode:   pc.USSDCode,
		Status:     pc.Status,
		ExpireTime: pc.ExpireTime,
		Amount:     pc.Amount,
	}, nil
}

func (b *Builder) CheckoutStatus(ctx context.Context, id string) (*StatusResult, error) {
	s, err := b.gateway.GetCheckoutSession(ctx, id)
	if err != nil {
		return nil, err
	}
	total := s.Total()
	txn := s.OrderNumber
	if txn == "" {
		txn = s.ID
	}
	return &StatusResult{
		ID:            s.ID,
		Status:        s.Status,
		Amount:        fees.FromMinorUnits(total.Value),
		Currency:      total.Currency,
		TransactionID: txn,
	}, nil
}

func (b *Builder) PaymentCodeStatus(ctx context.Context, id string) (*StatusResult, error) {
	pc, err := b.gateway.GetPaymentCode(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		ID:            pc.ID,
		Status:        pc.Status,
		Amount:        fees.FromMinorUnits(pc.Amount.Value),
		Currency:      pc.Amount.Currency,
		TransactionID: pc.TransactionID(),
	}, nil
}

func (b *Builder) CancelPaymentCode(ctx context.Context, id string) error {
	if err := b.gateway.CancelPaymentCode(ctx, id); err != nil {
		return err
	}
	if err := b.intents.Delete(ctx, id); err != nil {
		log.Printf("[payments] could not drop intent %s: %s\n", id, err.Error())
	}
	return nil
}

func (b *Builder) PayoutStatus(ctx context.Context, id string) (*monime.Payout, error) {
	return b.gateway.GetPayout(ctx, id)
}

// ConfirmIntent loads the stored cart for a gateway id and checks with the
// gateway that it was paid in full.
func (b *Builder) ConfirmIntent(ctx context.Context, id string) (*PendingIntent, *StatusResult, error) {
	intent, err := b.intents.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var status *StatusResult
	switch intent.Kind {
	case IntentCheckoutSession:
		status, err = b.CheckoutStatus(ctx, id)
	case IntentPaymentCode:
		status, err = b.PaymentCodeStatus(ctx, id)
	case IntentStripeSession:
		if b.card == nil {
			return nil, nil, fmt.Errorf("%w: card payments are not configured", ErrUnsupportedMethod)
		}
		status, err = b.card.CheckoutStatus(ctx, id)
	default:
		return nil, nil, fmt.Errorf("%w: unknown intent kind %q", ErrIntentNotFound, intent.Kind)
	}
	if err != nil {
		return nil, nil, err
	}
	if status.Status != monime.StatusCompleted {
		return intent, status, fmt.Errorf("%w: status is %s", ErrPaymentNotCompleted, status.Status)
	}
	if status.Amount.IsPositive() && !status.Amount.Equal(intent.Total) {
		return intent, status, fmt.Errorf("%w: paid %s, expected %s", ErrPaymentAmountMismatch, status.Amount, intent.Total)
	}
	return intent, status, nil
}

func (b *Builder) saveIntent(ctx context.Context, id, kind, ref, currency string, priced *PricedCart) error {
	err := b.intents.Save(ctx, &PendingIntent{
		ID:            id,
		Kind:          kind,
		EventID:       priced.EventID,
		PaymentMethod: priced.PaymentMethod,
		Items:         priced.OrderItems(),
		Buyer:         priced.Buyer,
		Subtotal:      priced.Subtotal,
		PlatformFee:   priced.PlatformFee,
		Total:         priced.Total,
		Currency:      currency,
		Reference:     ref,
		CreatedAt:     b.now().UTC(),
	})
	if err != nil {
		log.Printf("[payments] failed to store intent %s: %s\n", id, err.Error())
	}
	return err
}

func (b *Builder) metadata(p *PricedCart) *monime.Metadata {
	details := make([]map[string]any, 0, len(p.Lines))
	for _, l := range p.Lines {
		details = append(details, map[string]any{
			"id":       l.TicketType.ID,
			"name":     l.TicketType.Name,
			"quantity": l.Quantity,
			"price":    l.TicketType.Price.String(),
		})
	}
	md := monime.NewMetadata().
		Set("event_id", p.EventID).
		Set("event_name", p.Event.Name).
		Set("payment_method", string(p.PaymentMethod)).
		Set("total_tickets", p.TotalQuantity()).
		Set("subtotal", p.Subtotal).
		Set("platform_fee", p.PlatformFee).
		Set("total_amount", p.Total).
		Set("ticket_details", details)
	if p.Buyer.Name != "" {
		md.Set("buyer_name", p.Buyer.Name)
	}
	if p.Buyer.WalletAddress != "" {
		md.Set("buyer_wallet", p.Buyer.WalletAddress)
	}
	if p.Buyer.UserID != "" {
		md.Set("buyer_id", p.Buyer.UserID)
	}
	return md.Capped(monime.DefaultLimits)
}
