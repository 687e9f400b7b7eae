package withdrawals

import (
	"context"
	"sync"

	"sosseats/src/models"
	"sosseats/src/monime"
	"sosseats/src/types"
)

type memoryRepo struct {
	mu      sync.Mutex
	rows    map[string]*models.WalletTransaction
	configs map[string]*MultisigConfig
	updates []StatusUpdate
	failOn  types.WithdrawalStatus
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		rows:    map[string]*models.WalletTransaction{},
		configs: map[string]*MultisigConfig{},
	}
}

func clone(w *models.WalletTransaction) *models.WalletTransaction {
	c := *w
	c.CollectedSignatures = append(types.Signatures{}, w.CollectedSignatures...)
	c.Metadata = types.JSONB{}
	for k, v := range w.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

func (r *memoryRepo) Create(_ context.Context, w *models.WalletTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[w.ID] = clone(w)
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*models.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(w), nil
}

func (r *memoryRepo) GetByToken(_ context.Context, token string) (*models.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.rows {
		if w.PendingToken != nil && *w.PendingToken == token {
			return clone(w), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) MultisigConfig(_ context.Context, wallet string) (*MultisigConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configs[wallet], nil
}

func (r *memoryRepo) AppendSignature(_ context.Context, id string, fn func(w *models.WalletTransaction) error) (*models.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := clone(w)
	if err := fn(c); err != nil {
		return nil, err
	}
	w.CollectedSignatures = c.CollectedSignatures
	return clone(w), nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, u StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.To == r.failOn && u.To != "" {
		return false, errStore
	}
	w, ok := r.rows[u.ID]
	if !ok || w.Status != u.From {
		return false, nil
	}
	if (u.Claim != nil || u.Unclaimed) && w.ExecutionClaim != nil {
		return false, nil
	}
	r.updates = append(r.updates, u)
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
	for k, v := range u.Metadata {
		w.Metadata[k] = v
	}
	return true, nil
}

func (r *memoryRepo) ListSubmittedPayouts(_ context.Context, limit int) ([]models.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.WalletTransaction
	for _, w := range r.rows {
		if w.Status == types.WITHDRAWAL_PENDING && w.ExternalID != nil && len(out) < limit {
			out = append(out, *clone(w))
		}
	}
	return out, nil
}

// set mutates the stored row directly.
func (r *memoryRepo) set(id string, fn func(w *models.WalletTransaction)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.rows[id])
}

type fakePayouts struct {
	mu        sync.Mutex
	requests  []monime.PayoutRequest
	refs      []string
	createErr error
	created   *monime.Payout
	fetched   map[string]*monime.Payout
	gets      int
}

func (f *fakePayouts) CreatePayout(_ context.Context, r monime.PayoutRequest, reference string) (*monime.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
	f.refs = append(f.refs, reference)
	if f.createErr != nil {
		return nil, f.createErr
	}
	p := *f.created
	return &p, nil
}

func (f *fakePayouts) GetPayout(_ context.Context, id string) (*monime.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if p, ok := f.fetched[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, &monime.APIError{StatusCode: 404, Message: "payout not found"}
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (p *recordingPublisher) Publish(_ context.Context, topic, _ string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic == TopicWithdrawalsUpdated {
		p.payloads = append(p.payloads, payload.(map[string]any))
	}
	return nil
}
