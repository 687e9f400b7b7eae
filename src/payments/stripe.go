package payments

import (
	"context"
	"time"

	"sosseats/src/fees"

	"github.com/stripe/stripe-go/v82"
)

// StripeCheckout hosts card payments on Stripe Checkout.
type StripeCheckout struct {
	sc       *stripe.Client
	currency string
}

func NewStripeCheckout(sc *stripe.Client, currency string) *StripeCheckout {
	return &StripeCheckout{sc: sc, currency: currency}
}

func (s *StripeCheckout) lineItem(name string, amount int64, qty int) *stripe.CheckoutSessionCreateLineItemParams {
	return &stripe.CheckoutSessionCreateLineItemParams{
		PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
			Currency:   stripe.String(s.currency),
			UnitAmount: stripe.Int64(amount),
			ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
		Quantity: stripe.Int64(int64(qty)),
	}
}

func (s *StripeCheckout) CreateCheckoutSession(ctx context.Context, p *PricedCart, reference string) (*CheckoutResult, error) {
	lineItems := []*stripe.CheckoutSessionCreateLineItemParams{}
	for _, l := range p.Lines {
		lineItems = append(lineItems, s.lineItem(l.TicketType.Name, fees.ToMinorUnits(l.TicketType.Price), l.Quantity))
	}
	if p.PlatformFee.IsPositive() {
		lineItems = append(lineItems, s.lineItem("Platform fee", fees.ToMinorUnits(p.PlatformFee), 1))
	}
	metadata := map[string]string{
		"source":         "sos_seats",
		"reference":      reference,
		"event_id":       p.EventID,
		"payment_method": string(p.PaymentMethod),
	}
	params := &stripe.CheckoutSessionCreateParams{
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         lineItems,
		ClientReferenceID: stripe.String(reference),
		Metadata:          metadata,
	}
	if p.Buyer.Email != "" {
		params.CustomerEmail = stripe.String(p.Buyer.Email)
	}
	cs, err := s.sc.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{
		ID:          cs.ID,
		CheckoutURL: cs.URL,
		Status:      string(cs.Status),
		Amount:      p.Total,
		Currency:    s.currency,
		CreatedAt:   time.Unix(cs.Created, 0).UTC().Format(time.RFC3339),
	}, nil
}

func (s *StripeCheckout) CheckoutStatus(ctx context.Context, id string) (*StatusResult, error) {
	cs, err := s.sc.V1CheckoutSessions.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	return StatusFromStripe(cs), nil
}

// StatusFromStripe normalises a Stripe session to the gateway status vocabulary.
func StatusFromStripe(cs *stripe.CheckoutSession) *StatusResult {
	status := "pending"
	switch {
	case cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		status = "completed"
	case cs.Status == stripe.CheckoutSessionStatusExpired:
		status = "expired"
	}
	res := &StatusResult{
		ID:       cs.ID,
		Status:   status,
		Amount:   fees.FromMinorUnits(cs.AmountTotal),
		Currency: string(cs.Currency),
	}
	if cs.PaymentIntent != nil {
		res.TransactionID = cs.PaymentIntent.ID
	}
	return res
}
