// Package withdrawals runs organizer payouts. A withdrawal from a wallet
// with a multisig configuration waits in pending_approval until enough
// authorized signers have signed, then pays out through the mobile-money
// gateway.
package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sosseats/src/fees"
	"sosseats/src/models"
	"sosseats/src/monime"
	"sosseats/src/monitoring"
	"sosseats/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const TopicWithdrawalsUpdated = "withdrawals.updated"

const (
	DefaultApprovalWindow = 24 * time.Hour
	DefaultRecheckDelay   = 2 * time.Second

	reconcileBatch  = 50
	defaultCurrency = "NLe"
	defaultProvider = "orange_money"
)

var (
	ErrNotFound         = errors.New("withdrawal not found")
	ErrGone             = errors.New("withdrawal has expired or was already processed")
	ErrThresholdNotMet  = errors.New("not enough signatures to execute this withdrawal")
	ErrForbidden        = errors.New("wallet is not authorized for this withdrawal")
	ErrMissingPhone     = errors.New("phone number missing from withdrawal metadata")
	ErrInvalidPhone     = errors.New("invalid phone number format")
	ErrCompleted        = errors.New("withdrawal has already been completed")
	ErrInvalidAmount    = errors.New("withdrawal amount must be greater than fees")
	ErrInvalidProvider  = errors.New("unsupported mobile money provider")
	ErrAlreadySigned    = errors.New("wallet has already signed this withdrawal")
	ErrMissingSignature = errors.New("signature is required")
	ErrPayoutRejected   = errors.New("payout rejected by the payment gateway")
	ErrPayoutUnrecorded = errors.New("payout was sent but the withdrawal changed before it could be recorded")
)

// IsValidation reports whether err was caused by the caller's input.
func IsValidation(err error) bool {
	for _, target := range []error{ErrMissingPhone, ErrInvalidPhone, ErrInvalidAmount, ErrInvalidProvider, ErrMissingSignature, ErrPayoutRejected} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Payouts is the part of the gateway client used here.
type Payouts interface {
	CreatePayout(ctx context.Context, r monime.PayoutRequest, reference string) (*monime.Payout, error)
	GetPayout(ctx context.Context, id string) (*monime.Payout, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

type Approver struct {
	repo      Repository
	payouts   Payouts
	policy    fees.WithdrawalPolicy
	publisher Publisher

	window       time.Duration
	recheckDelay time.Duration
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	newID        func() string
}

type Option func(*Approver)

func WithApprovalWindow(d time.Duration) Option {
	return func(a *Approver) {
		if d > 0 {
			a.window = d
		}
	}
}

func WithRecheckDelay(d time.Duration) Option {
	return func(a *Approver) { a.recheckDelay = d }
}

func WithClock(now func() time.Time) Option {
	return func(a *Approver) { a.now = now }
}

func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Approver) { a.sleep = fn }
}

func NewApprover(repo Repository, payouts Payouts, policy fees.WithdrawalPolicy, publisher Publisher, opts ...Option) *Approver {
	a := &Approver{
		repo:         repo,
		payouts:      payouts,
		policy:       policy,
		publisher:    publisher,
		window:       DefaultApprovalWindow,
		recheckDelay: DefaultRecheckDelay,
		now:          time.Now,
		sleep:        sleepContext,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type CreateRequest struct {
	WalletAddress string
	Amount        decimal.Decimal
	Currency      string
	Provider      string
	PhoneNumber   string
}

// View is a withdrawal together with the wallets allowed to sign it.
type View struct {
	Withdrawal        *models.WalletTransaction `json:"withdrawal"`
	AuthorizedSigners []string                  `json:"authorized_signers"`
	SignatureCount    int                       `json:"signature_count"`
	ThresholdMet      bool                      `json:"threshold_met"`
}

type CreateResult struct {
	Withdrawal *models.WalletTransaction `json:"withdrawal"`
	Fees       fees.Breakdown            `json:"fees"`
	Execution  *ExecuteResult            `json:"execution,omitempty"`
}

type SignResult struct {
	WithdrawalID   string `json:"withdrawal_id"`
	SignatureCount int    `json:"signature_count"`
	Required       int    `json:"required_signatures"`
	ThresholdMet   bool   `json:"threshold_met"`
}

type ExecuteResult struct {
	WithdrawalID string                 `json:"withdrawal_id"`
	Status       types.WithdrawalStatus `json:"status"`
	PayoutID     string                 `json:"payout_id"`
	PayoutStatus string                 `json:"payout_status"`
	Message      string                 `json:"message"`
}

type CancelResult struct {
	WithdrawalID string                 `json:"withdrawal_id"`
	Status       types.WithdrawalStatus `json:"status"`
	Message      string                 `json:"message"`
}

// Create records a withdrawal. Wallets that need more than one signature get
// a pending_approval withdrawal with an approval token; all others are paid
// out immediately.
func (a *Approver) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	provider := req.Provider
	if provider == "" {
		provider = defaultProvider
	}
	if _, ok := monime.ProviderCode(provider); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	shown := a.policy.Fee(req.Amount).Rounded()
	if !shown.NetAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	cfg, err := a.repo.MultisigConfig(ctx, req.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("load multisig config: %w", err)
	}
	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	now := a.now().UTC()
	w := &models.WalletTransaction{
		ID:                  a.newID(),
		WalletAddress:       req.WalletAddress,
		Type:                models.WalletTransactionWithdrawal,
		Amount:              req.Amount,
		Currency:            currency,
		Status:              types.WITHDRAWAL_PENDING,
		RequiredSignatures:  1,
		CollectedSignatures: types.Signatures{},
		Metadata: types.JSONB{
			"withdrawal_type":               "mobile_money",
			"provider":                      provider,
			"phone_number":                  phone,
			"platform_fee":                  shown.PlatformFee.String(),
			"net_amount_after_platform_fee": shown.NetAfterPlatform.String(),
			"gateway_fee":                   shown.GatewayFee.String(),
			"total_fees":                    shown.TotalFees.String(),
			"final_net_amount":              shown.NetAmount.String(),
		},
	}
	if cfg != nil && cfg.MultisigEnabled && cfg.RequiredSignatures > 1 {
		token := a.newID()
		expires := now.Add(a.window)
		w.Status = types.WITHDRAWAL_PENDING_APPROVAL
		w.MultisigEnabled = true
		w.RequiredSignatures = cfg.RequiredSignatures
		w.PendingToken = &token
		w.ExpiresAt = &expires
	}
	if err := a.repo.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create withdrawal: %w", err)
	}
	log.WithFields(log.Fields{
		"withdrawal_id": w.ID,
		"wallet":        w.WalletAddress,
		"status":        w.Status,
		"amount":        w.Amount.String(),
	}).Info("withdrawal created")
	a.publish(ctx, w, "", w.Status)

	res := &CreateResult{Withdrawal: w, Fees: shown}
	if w.Status == types.WITHDRAWAL_PENDING_APPROVAL {
		return res, nil
	}
	exec, err := a.execute(ctx, w)
	if err != nil {
		return res, err
	}
	res.Execution = exec
	return res, nil
}

// Get returns a withdrawal in whatever state it is in.
func (a *Approver) Get(ctx context.Context, id string) (*View, error) {
	w, err := a.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w, _, err = a.expire(ctx, w); err != nil {
		return nil, err
	}
	return a.view(ctx, w)
}

// GetByToken serves the approval page, so only withdrawals still awaiting
// signatures are returned.
func (a *Approver) GetByToken(ctx context.Context, token string) (*View, error) {
	w, err := a.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if w, _, err = a.expire(ctx, w); err != nil {
		return nil, err
	}
	if w.Status != types.WITHDRAWAL_PENDING_APPROVAL {
		return nil, ErrGone
	}
	return a.view(ctx, w)
}

func (a *Approver) view(ctx context.Context, w *models.WalletTransaction) (*View, error) {
	signers, err := a.authorizedSigners(ctx, w)
	if err != nil {
		return nil, err
	}
	return &View{
		Withdrawal:        w,
		AuthorizedSigners: signers,
		SignatureCount:    len(w.CollectedSignatures),
		ThresholdMet:      w.ThresholdMet(),
	}, nil
}

// authorizedSigners is the owner wallet followed by the active signers of
// its multisig configuration.
func (a *Approver) authorizedSigners(ctx context.Context, w *models.WalletTransaction) ([]string, error) {
	signers := []string{w.WalletAddress}
	if !w.MultisigEnabled {
		return signers, nil
	}
	cfg, err := a.repo.MultisigConfig(ctx, w.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("load multisig config: %w", err)
	}
	for _, s := range cfg.ActiveSigners() {
		if s != w.WalletAddress {
			signers = append(signers, s)
		}
	}
	return signers, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// expire cancels a pending_approval withdrawal past its expiry. The returned
// withdrawal reflects the stored state afterwards.
func (a *Approver) expire(ctx context.Context, w *models.WalletTransaction) (*models.WalletTransaction, bool, error) {
	now := a.now().UTC()
	if !w.Expired(now) {
		return w, false, nil
	}
	ok, err := a.transition(ctx, w, StatusUpdate{
		To:        types.WITHDRAWAL_CANCELLED,
		Unclaimed: true,
		Metadata: types.JSONB{
			"cancelled_reason": "expired",
			"cancelled_at":     now.Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("expire withdrawal %s: %w", w.ID, err)
	}
	if !ok {
		fresh, err := a.repo.Get(ctx, w.ID)
		return fresh, false, err
	}
	return w, true, nil
}

// transition applies u to w, filling in the id and the expected status from
// w, and updates w when the store accepted it.
func (a *Approver) transition(ctx context.Context, w *models.WalletTransaction, u StatusUpdate) (bool, error) {
	u.ID = w.ID
	u.From = w.Status
	ok, err := a.repo.UpdateStatus(ctx, u)
	if err != nil || !ok {
		return ok, err
	}
	monitoring.RecordWithdrawalTransition(string(u.From), string(u.To))
	log.WithFields(log.Fields{
		"withdrawal_id": w.ID,
		"from":          u.From,
		"to":            u.To,
	}).Info("withdrawal status changed")
	w.Status = u.To
	if u.ExternalID != nil {
		w.ExternalID = u.ExternalID
	}
	if u.Claim != nil {
		w.ExecutionClaim = u.Claim
	}
	if u.Release {
		w.ExecutionClaim = nil
	}
	if len(u.Metadata) > 0 {
		if w.Metadata == nil {
			w.Metadata = types.JSONB{}
		}
		for k, v := range u.Metadata {
			w.Metadata[k] = v
		}
	}
	if u.From != u.To {
		a.publish(ctx, w, u.From, u.To)
	}
	return true, nil
}

// Sign adds signer's signature to a withdrawal awaiting approval.
func (a *Approver) Sign(ctx context.Context, id, signer, signature string) (*SignResult, error) {
	if signature == "" {
		return nil, ErrMissingSignature
	}
	w, err := a.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	w, expired, err := a.expire(ctx, w)
	if err != nil {
		return nil, err
	}
	if expired || w.Status != types.WITHDRAWAL_PENDING_APPROVAL {
		return nil, ErrGone
	}
	signers, err := a.authorizedSigners(ctx, w)
	if err != nil {
		return nil, err
	}
	if !contains(signers, signer) {
		return nil, ErrForbidden
	}

	updated, err := a.repo.AppendSignature(ctx, id, func(locked *models.WalletTransaction) error {
		now := a.now().UTC()
		if locked.Status != types.WITHDRAWAL_PENDING_APPROVAL || locked.Expired(now) {
			return ErrGone
		}
		if locked.CollectedSignatures.Has(signer) {
			return ErrAlreadySigned
		}
		locked.CollectedSignatures = append(locked.CollectedSignatures, types.Signature{
			SignerWalletAddress: signer,
			Signature:           signature,
			SignedAt:            now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := &SignResult{
		WithdrawalID:   updated.ID,
		SignatureCount: len(updated.CollectedSignatures),
		Required:       updated.RequiredSignatures,
		ThresholdMet:   updated.ThresholdMet(),
	}
	log.WithFields(log.Fields{
		"withdrawal_id": id,
		"signer":        signer,
		"signatures":    res.SignatureCount,
		"required":      res.Required,
	}).Info("withdrawal signed")
	a.publish(ctx, updated, updated.Status, updated.Status)
	return res, nil
}

// Execute pays out a withdrawal once it has enough signatures. caller must
// be an authorized signer.
func (a *Approver) Execute(ctx context.Context, id, caller string) (*ExecuteResult, error) {
	w, err := a.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	w, expired, err := a.expire(ctx, w)
	if err != nil {
		return nil, err
	}
	if expired || w.Status.Terminal() {
		return nil, ErrGone
	}
	if w.Executing() || (w.Status == types.WITHDRAWAL_PENDING && w.ExternalID != nil) {
		return nil, ErrGone
	}
	signers, err := a.authorizedSigners(ctx, w)
	if err != nil {
		return nil, err
	}
	if !contains(signers, caller) {
		return nil, ErrForbidden
	}
	if w.Status == types.WITHDRAWAL_PENDING_APPROVAL && !w.ThresholdMet() {
		return nil, fmt.Errorf("%w: %d of %d", ErrThresholdNotMet, len(w.CollectedSignatures), w.RequiredSignatures)
	}
	return a.execute(ctx, w)
}

func (a *Approver) execute(ctx context.Context, w *models.WalletTransaction) (*ExecuteResult, error) {
	raw := w.Metadata.String("phone_number")
	if raw == "" {
		return nil, ErrMissingPhone
	}
	phone, err := NormalizePhone(raw)
	if err != nil {
		return nil, err
	}
	provider := w.Metadata.String("provider")
	if provider == "" {
		provider = defaultProvider
	}
	code, ok := monime.ProviderCode(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	amount, ok := w.Metadata.Decimal("net_amount_after_platform_fee")
	if !ok {
		amount = a.policy.Fee(w.Amount).NetAfterPlatform
	}

	// The claim stays on the row once a payout is sent. Cancel and any
	// other execute refuse a claimed row.
	original := w.Status
	claim := a.newID()
	claimed, err := a.transition(ctx, w, StatusUpdate{
		To:       types.WITHDRAWAL_PENDING,
		Claim:    &claim,
		Metadata: types.JSONB{"execution_claimed_at": a.now().UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return nil, fmt.Errorf("claim withdrawal %s: %w", w.ID, err)
	}
	if !claimed {
		return nil, ErrGone
	}

	logger := log.WithFields(log.Fields{"withdrawal_id": w.ID, "wallet": w.WalletAddress})
	reference := fmt.Sprintf("multisig_withdrawal_%s_%d", w.ID, a.now().UnixMilli())
	metadata := monime.NewMetadata().
		Set("wallet_address", w.WalletAddress).
		Set("withdrawal_type", "mobile_money").
		Set("multisig_withdrawal_id", w.ID).
		Set("original_metadata", map[string]any(w.Metadata))
	payout, err := a.payouts.CreatePayout(ctx, monime.PayoutRequest{
		Amount: monime.Money{Currency: monime.ISOCurrency(w.Currency), Value: fees.ToMinorUnits(amount)},
		Destination: monime.PayoutDestination{
			ProviderID:  code,
			PhoneNumber: phone,
		},
		Metadata: metadata,
	}, reference)
	if err != nil {
		var apiErr *monime.APIError
		if errors.As(err, &apiErr) && !apiErr.Infrastructure {
			logger.WithError(err).Warn("payout rejected")
			if _, uerr := a.transition(ctx, w, StatusUpdate{
				To: types.WITHDRAWAL_FAILED,
				Metadata: types.JSONB{
					"failure_reason": apiErr.Message,
					"failed_at":      a.now().UTC().Format(time.RFC3339),
				},
			}); uerr != nil {
				logger.WithError(uerr).Error("could not mark withdrawal failed")
			}
			return nil, fmt.Errorf("%w: %s", ErrPayoutRejected, apiErr.Message)
		}
		logger.WithError(err).Error("payout could not be submitted")
		if _, uerr := a.transition(ctx, w, StatusUpdate{To: original, Release: true}); uerr != nil {
			logger.WithError(uerr).Error("could not release withdrawal claim")
		}
		return nil, err
	}

	if !payout.Settled() && payout.Status != monime.StatusFailed {
		if err := a.sleep(ctx, a.recheckDelay); err == nil {
			if again, err := a.payouts.GetPayout(ctx, payout.ID); err == nil {
				payout = again
			} else {
				logger.WithError(err).Warn("payout re-check failed")
			}
		}
	}

	status := payoutOutcome(payout)
	method := "direct"
	if w.MultisigEnabled {
		method = "multisig_auto"
	}
	md := payoutMetadata(payout)
	md["executed_at"] = a.now().UTC().Format(time.RFC3339)
	md["execution_method"] = method
	payoutID := payout.ID
	recorded, err := a.transition(ctx, w, StatusUpdate{To: status, ExternalID: &payoutID, Metadata: md})
	if err == nil && !recorded {
		err = ErrPayoutUnrecorded
	}
	if err != nil {
		monitoring.RecordUnrecordedPayout()
		logger.WithError(err).WithField("payout_id", payout.ID).Error("payout sent but withdrawal record not updated")
		return nil, fmt.Errorf("record payout %s: %w", payout.ID, err)
	}

	final := w.Metadata.String("final_net_amount")
	if final == "" {
		final = amount.StringFixed(2)
	}
	verb := "submitted"
	if status == types.WITHDRAWAL_COMPLETED {
		verb = "completed"
	} else if status == types.WITHDRAWAL_FAILED {
		verb = "failed"
	}
	return &ExecuteResult{
		WithdrawalID: w.ID,
		Status:       status,
		PayoutID:     payout.ID,
		PayoutStatus: payout.Status,
		Message:      fmt.Sprintf("Withdrawal %s. %s %s sent to %s.", verb, w.Currency, final, phone),
	}, nil
}

func payoutOutcome(p *monime.Payout) types.WithdrawalStatus {
	switch {
	case p.Settled():
		return types.WITHDRAWAL_COMPLETED
	case p.Status == monime.StatusFailed:
		return types.WITHDRAWAL_FAILED
	}
	return types.WITHDRAWAL_PENDING
}

func payoutMetadata(p *monime.Payout) types.JSONB {
	md := types.JSONB{
		"payout_id":          p.ID,
		"payout_status":      p.Status,
		"actual_monime_fees": fees.FromMinorUnits(p.FeesMinor()).String(),
	}
	if ref := p.Destination.TransactionReference; ref != "" {
		md["transaction_reference"] = ref
	}
	if p.FailureDetail != nil {
		md["failure_reason"] = p.FailureDetail.Message
	}
	return md
}

// Cancel withdraws a pending request. Only the owner wallet may cancel, and
// cancelling twice is not an error.
func (a *Approver) Cancel(ctx context.Context, id, wallet string) (*CancelResult, error) {
	w, err := a.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.WalletAddress != wallet {
		return nil, ErrForbidden
	}
	w, _, err = a.expire(ctx, w)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < 2; attempt++ {
		switch {
		case w.Status == types.WITHDRAWAL_CANCELLED:
			return &CancelResult{WithdrawalID: w.ID, Status: w.Status, Message: "Withdrawal is already cancelled"}, nil
		case w.Status == types.WITHDRAWAL_COMPLETED:
			return nil, ErrCompleted
		case w.Status == types.WITHDRAWAL_FAILED:
			return nil, ErrGone
		case w.Executing(), w.ExternalID != nil:
			// A payout is in flight or has reached the gateway.
			return nil, ErrGone
		}
		ok, err := a.transition(ctx, w, StatusUpdate{
			To:        types.WITHDRAWAL_CANCELLED,
			Unclaimed: true,
			Metadata: types.JSONB{
				"cancelled_by": wallet,
				"cancelled_at": a.now().UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("cancel withdrawal %s: %w", id, err)
		}
		if ok {
			return &CancelResult{WithdrawalID: w.ID, Status: w.Status, Message: "Withdrawal cancelled"}, nil
		}
		if w, err = a.repo.Get(ctx, id); err != nil {
			return nil, err
		}
	}
	return nil, ErrGone
}

// ReconcilePending polls the gateway for payouts that were still in flight
// when executed and returns how many withdrawals changed state.
func (a *Approver) ReconcilePending(ctx context.Context) (int, error) {
	list, err := a.repo.ListSubmittedPayouts(ctx, reconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("list submitted payouts: %w", err)
	}
	updated := 0
	for i := range list {
		w := &list[i]
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		payout, err := a.payouts.GetPayout(ctx, *w.ExternalID)
		if err != nil {
			log.WithError(err).WithField("withdrawal_id", w.ID).Warn("payout status check failed")
			continue
		}
		status := payoutOutcome(payout)
		if status == types.WITHDRAWAL_PENDING {
			continue
		}
		md := payoutMetadata(payout)
		md["reconciled_at"] = a.now().UTC().Format(time.RFC3339)
		ok, err := a.transition(ctx, w, StatusUpdate{To: status, Metadata: md})
		if err != nil {
			log.WithError(err).WithField("withdrawal_id", w.ID).Error("could not record payout outcome")
			continue
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

func (a *Approver) publish(ctx context.Context, w *models.WalletTransaction, from, to types.WithdrawalStatus) {
	if a.publisher == nil {
		return
	}
	payload := map[string]any{
		"withdrawal_id":       w.ID,
		"wallet_address":      w.WalletAddress,
		"from":                from,
		"status":              to,
		"amount":              w.Amount.String(),
		"currency":            w.Currency,
		"signatures":          len(w.CollectedSignatures),
		"required_signatures": w.RequiredSignatures,
		"updated_at":          a.now().UTC().Format(time.RFC3339),
	}
	if w.ExternalID != nil {
		payload["payout_id"] = *w.ExternalID
	}
	if err := a.publisher.Publish(ctx, TopicWithdrawalsUpdated, w.ID, payload); err != nil {
		log.Printf("[withdrawals] could not publish %s for %s: %s\n", TopicWithdrawalsUpdated, w.ID, err.Error())
	}
}
