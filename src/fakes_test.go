package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"sosseats/src/models"
	"sosseats/src/monime"
	"sosseats/src/payments"
	"sosseats/src/settlement"
	"sosseats/src/types"
	"sosseats/src/withdrawals"

	"github.com/shopspring/decimal"
)

type catalog struct{}

func (catalog) Event(_ context.Context, id string) (*models.Event, error) {
	if id != "evt_1" {
		return nil, payments.ErrEventNotFound
	}
	return &models.Event{ID: "evt_1", Name: "Gala Night"}, nil
}

func (catalog) TicketTypes(_ context.Context, eventID string, ids []string) ([]models.TicketType, error) {
	all := []models.TicketType{
		{ID: "tt_reg", EventID: "evt_1", Name: "Regular", Price: decimal.NewFromInt(5)},
		{ID: "tt_free", EventID: "evt_1", Name: "Community", Price: decimal.Zero},
	}
	var out []models.TicketType
	for _, tt := range all {
		for _, id := range ids {
			if tt.ID == id && tt.EventID == eventID {
				out = append(out, tt)
			}
		}
	}
	return out, nil
}

type gateway struct {
	mu      sync.Mutex
	session *monime.CheckoutSession
	payout  *monime.Payout
	err     error
}

func (g *gateway) CreateCheckoutSession(_ context.Context, r monime.CheckoutSessionRequest) (*monime.CheckoutSession, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &monime.CheckoutSession{ID: "cs_1", Status: "pending", RedirectURL: "https://checkout.monime.io/cs_1"}, nil
}

func (g *gateway) GetCheckoutSession(_ context.Context, id string) (*monime.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	if g.session == nil {
		return &monime.CheckoutSession{ID: id, Status: "pending"}, nil
	}
	return g.session, nil
}

func (g *gateway) CreatePaymentCode(_ context.Context, r monime.PaymentCodeRequest) (*monime.PaymentCode, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &monime.PaymentCode{ID: "pmc_1", Status: "pending", USSDCode: "*715*1*0123#", Amount: r.Amount}, nil
}

func (g *gateway) GetPaymentCode(_ context.Context, id string) (*monime.PaymentCode, error) {
	return &monime.PaymentCode{ID: id, Status: "pending"}, g.err
}

func (g *gateway) CancelPaymentCode(_ context.Context, id string) error {
	return g.err
}

func (g *gateway) CreatePayout(_ context.Context, r monime.PayoutRequest, reference string) (*monime.Payout, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &monime.Payout{ID: "po_1", Status: monime.StatusCompleted, Amount: r.Amount}, nil
}

func (g *gateway) GetPayout(_ context.Context, id string) (*monime.Payout, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.payout != nil {
		return g.payout, nil
	}
	return &monime.Payout{ID: id, Status: monime.StatusCompleted}, nil
}

type intentStore struct {
	mu      sync.Mutex
	intents map[string]*payments.PendingIntent
}

func newIntentStore() *intentStore {
	return &intentStore{intents: map[string]*payments.PendingIntent{}}
}

func (m *intentStore) Save(_ context.Context, intent *payments.PendingIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[intent.ID] = intent
	return nil
}

func (m *intentStore) Load(_ context.Context, id string) (*payments.PendingIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[id]
	if !ok {
		return nil, payments.ErrIntentNotFound
	}
	return intent, nil
}

func (m *intentStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.intents, id)
	return nil
}

type orderStore struct {
	mu      sync.Mutex
	orders  map[string]*models.Order
	created []settlement.OrderParams
	soldOut bool
	err     error
}

func newOrderStore() *orderStore {
	return &orderStore{orders: map[string]*models.Order{}}
}

func orderKey(txHash, eventID string, method types.PaymentMethod) string {
	return strings.Join([]string{txHash, eventID, string(method)}, "|")
}

func (o *orderStore) FindOrderByPayment(_ context.Context, txHash, eventID string, method types.PaymentMethod) (*models.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	return o.orders[orderKey(txHash, eventID, method)], nil
}

func (o *orderStore) CheckWalletExists(context.Context, string) (*settlement.WalletOwner, error) {
	return nil, nil
}

func (o *orderStore) FindUser(context.Context, string) (*models.User, error) {
	return nil, nil
}

func (o *orderStore) create(p settlement.OrderParams) (*settlement.ProcedureResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.soldOut {
		msg := "Not enough tickets available for Regular"
		return &settlement.ProcedureResult{Success: false, ErrorMessage: &msg}, nil
	}
	o.created = append(o.created, p)
	id := fmt.Sprintf("ord_%d", len(o.created))
	order := &models.Order{ID: id, OrderNumber: p.OrderNumber}
	claimed := 0
	for _, it := range p.Items {
		order.Items = append(order.Items, models.OrderItem{TicketTypeID: it.TicketTypeID, Quantity: it.Quantity})
		claimed += it.Quantity
	}
	o.orders[orderKey(p.TransactionHash, p.EventID, p.PaymentMethod)] = order
	return &settlement.ProcedureResult{Success: true, OrderID: &id, TicketsClaimed: claimed}, nil
}

func (o *orderStore) CreatePaidOrder(_ context.Context, p settlement.OrderParams) (*settlement.ProcedureResult, error) {
	return o.create(p)
}

func (o *orderStore) CreateFreeOrder(_ context.Context, p settlement.OrderParams) (*settlement.ProcedureResult, error) {
	return o.create(p)
}

type withdrawalStore struct {
	mu      sync.Mutex
	rows    map[string]*models.WalletTransaction
	configs map[string]*withdrawals.MultisigConfig
}

func newWithdrawalStore() *withdrawalStore {
	return &withdrawalStore{
		rows:    map[string]*models.WalletTransaction{},
		configs: map[string]*withdrawals.MultisigConfig{},
	}
}

func copyRow(w *models.WalletTransaction) *models.WalletTransaction {
	c := *w
	c.CollectedSignatures = append(types.Signatures{}, w.CollectedSignatures...)
	c.Metadata = types.JSONB{}
	for k, v := range w.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

func (r *withdrawalStore) Create(_ context.Context, w *models.WalletTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[w.ID] = copyRow(w)
	return nil
}

func (r *withdrawalStore) Get(_ context.Context, id string) (*models.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.rows[id]
	if !ok {
		return nil, withdrawals.ErrNotFound
	}
	return copyRow(w), nil
}

func (r *withdrawalStore) GetByToken(_ context.Context, token string) (*models.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.rows {
		if w.PendingToken != nil && *w.PendingToken == token {
			return copyRow(w), nil
		}
	}
	return nil, withdrawals.ErrNotFound
}

func (r *withdrawalStore) MultisigConfig(_ context.Context, wallet string) (*withdrawals.MultisigConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configs[wallet], nil
}

func (r *withdrawalStore) AppendSignature(_ context.Context, id string, fn func(w *models.WalletTransaction) error) (*models.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.rows[id]
	if !ok {
		return nil, withdrawals.ErrNotFound
	}
	c := copyRow(w)
	if err := fn(c); err != nil {
		return nil, err
	}
	w.CollectedSignatures = c.CollectedSignatures
	return copyRow(w), nil
}

func (r *withdrawalStore) UpdateStatus(_ context.Context, u withdrawals.StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.rows[u.ID]
	if !ok || w.Status != u.From {
		return false, nil
	}
	if (u.Claim != nil || u.Unclaimed) && w.ExecutionClaim != nil {
		return false, nil
	}
	w.Status = u.To
	if u.ExternalID != nil {
		w.ExternalID = u.ExternalID
	}
	if u.Claim != nil {
		claim := *u.Claim
		w.ExecutionClaim = &claim
	}
	if u.Release {
		w.ExecutionClaim = nil
	}
	if w.Metadata == nil {
		w.Metadata = types.JSONB{}
	}
	for k, v := range u.Metadata {
		w.Metadata[k] = v
	}
	return true, nil
}

func (r *withdrawalStore) ListSubmittedPayouts(_ context.Context, limit int) ([]models.WalletTransaction, error) {
	return nil, nil
}
