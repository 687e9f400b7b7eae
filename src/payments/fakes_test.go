package payments

import (
	"context"
	"sync"

	"sosseats/src/models"
	"sosseats/src/monime"

	"github.com/shopspring/decimal"
)

type fakeCatalog struct {
	events  map[string]*models.Event
	tickets []models.TicketType
}

func (f *fakeCatalog) Event(ctx context.Context, id string) (*models.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (f *fakeCatalog) TicketTypes(ctx context.Context, eventID string, ids []string) ([]models.TicketType, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []models.TicketType{}
	for _, tt := range f.tickets {
		if want[tt.ID] && tt.EventID == eventID {
			out = append(out, tt)
		}
	}
	return out, nil
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		events: map[string]*models.Event{
			"evt_1": {ID: "evt_1", Name: "Gala Night"},
			"evt_2": {ID: "evt_2", Name: "Other"},
		},
		tickets: []models.TicketType{
			{ID: "tt_vip", EventID: "evt_1", Name: "VIP", Price: decimal.NewFromInt(20)},
			{ID: "tt_reg", EventID: "evt_1", Name: "Regular", Price: decimal.NewFromInt(5)},
			{ID: "tt_free", EventID: "evt_1", Name: "Community", Price: decimal.Zero},
			{ID: "tt_other", EventID: "evt_2", Name: "Other", Price: decimal.NewFromInt(10)},
		},
	}
}

type fakeGateway struct {
	checkoutReqs    []monime.CheckoutSessionRequest
	paymentCodeReqs []monime.PaymentCodeRequest
	cancelled       []string

	session     *monime.CheckoutSession
	paymentCode *monime.PaymentCode
	err         error
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, r monime.CheckoutSessionRequest) (*monime.CheckoutSession, error) {
	f.checkoutReqs = append(f.checkoutReqs, r)
	if f.err != nil {
		return nil, f.err
	}
	return &monime.CheckoutSession{ID: "cs_1", Status: "pending", RedirectURL: "https://checkout.monime.io/cs_1", CreateTime: "2025-09-01T10:00:00Z"}, nil
}

func (f *fakeGateway) GetCheckoutSession(ctx context.Context, id string) (*monime.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeGateway) CreatePaymentCode(ctx context.Context, r monime.PaymentCodeRequest) (*monime.PaymentCode, error) {
	f.paymentCodeReqs = append(f.paymentCodeReqs, r)
	if f.err != nil {
		return nil, f.err
	}
	return &monime.PaymentCode{ID: "pmc_1", Status: "pending", USSDCode: "*715*1*0123#", ExpireTime: "2025-09-01T10:30:00Z", Amount: r.Amount}, nil
}

func (f *fakeGateway) GetPaymentCode(ctx context.Context, id string) (*monime.PaymentCode, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.paymentCode, nil
}

func (f *fakeGateway) CancelPaymentCode(ctx context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return f.err
}

func (f *fakeGateway) GetPayout(ctx context.Context, id string) (*monime.Payout, error) {
	return &monime.Payout{ID: id, Status: monime.StatusCompleted}, f.err
}

type memoryIntents struct {
	mu      sync.Mutex
	intents map[string]*PendingIntent
}

func newMemoryIntents() *memoryIntents {
	return &memoryIntents{intents: map[string]*PendingIntent{}}
}

func (m *memoryIntents) Save(ctx context.Context, intent *PendingIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[intent.ID] = intent
	return nil
}

func (m *memoryIntents) Load(ctx context.Context, id string) (*PendingIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return intent, nil
}

func (m *memoryIntents) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.intents, id)
	return nil
}
