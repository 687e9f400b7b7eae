package withdrawals

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"sosseats/src/models"
	"sosseats/src/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Signer struct {
	SignerWalletAddress string `json:"signer_wallet_address"`
	IsActive            bool   `json:"is_active"`
}

// SignerList is the jsonb signer array of a multisig configuration.
type SignerList []Signer

func (l SignerList) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *SignerList) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return fmt.Errorf("scan signers: unsupported type %T", value)
}

// MultisigConfig is the row returned by get_multisig_config.
type MultisigConfig struct {
	MultisigEnabled    bool       `gorm:"column:multisig_enabled"`
	RequiredSignatures int        `gorm:"column:required_signatures"`
	Signers            SignerList `gorm:"column:signers"`
}

func (c *MultisigConfig) ActiveSigners() []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, s := range c.Signers {
		if s.IsActive && s.SignerWalletAddress != "" {
			out = append(out, s.SignerWalletAddress)
		}
	}
	return out
}

// StatusUpdate moves a withdrawal from one status to another. It applies
// only while the stored status still equals From. Metadata is merged into
// the stored metadata.
type StatusUpdate struct {
	ID         string
	From       types.WithdrawalStatus
	To         types.WithdrawalStatus
	ExternalID *string
	Metadata   types.JSONB

	// Claim takes the execution claim. The update applies only while no
	// claim is held.
	Claim *string
	// Unclaimed applies the update only while no claim is held.
	Unclaimed bool
	// Release drops the execution claim.
	Release bool
}

type statusResult struct {
	Success bool    `gorm:"column:success"`
	Message *string `gorm:"column:message"`
}

type Repository interface {
	Create(ctx context.Context, w *models.WalletTransaction) error
	Get(ctx context.Context, id string) (*models.WalletTransaction, error)
	GetByToken(ctx context.Context, token string) (*models.WalletTransaction, error)
	MultisigConfig(ctx context.Context, wallet string) (*MultisigConfig, error)
	// AppendSignature runs fn against the row while it is locked and
	// stores the signatures fn leaves on it.
	AppendSignature(ctx context.Context, id string, fn func(w *models.WalletTransaction) error) (*models.WalletTransaction, error)
	UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error)
	ListSubmittedPayouts(ctx context.Context, limit int) ([]models.WalletTransaction, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, w *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *GormRepository) Get(ctx context.Context, id string) (*models.WalletTransaction, error) {
	return r.take(r.db.WithContext(ctx).Where("id = ? AND type = ?", id, models.WalletTransactionWithdrawal))
}

func (r *GormRepository) GetByToken(ctx context.Context, token string) (*models.WalletTransaction, error) {
	return r.take(r.db.WithContext(ctx).Where("pending_token = ? AND type = ?", token, models.WalletTransactionWithdrawal))
}

func (r *GormRepository) take(q *gorm.DB) (*models.WalletTransaction, error) {
	var w models.WalletTransaction
	if err := q.Take(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

// MultisigConfig returns nil when the wallet has no configuration.
func (r *GormRepository) MultisigConfig(ctx context.Context, wallet string) (*MultisigConfig, error) {
	var rows []MultisigConfig
	err := r.db.WithContext(ctx).
		Raw("SELECT * FROM get_multisig_config(p_wallet_address := ?)", wallet).
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *GormRepository) AppendSignature(ctx context.Context, id string, fn func(w *models.WalletTransaction) error) (*models.WalletTransaction, error) {
	var w models.WalletTransaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND type = ?", id, models.WalletTransactionWithdrawal).
			Take(&w).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := fn(&w); err != nil {
			return err
		}
		return tx.Model(&w).Update("collected_signatures", w.CollectedSignatures).Error
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// UpdateStatus reports false when the row was no longer in u.From.
func (r *GormRepository) UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error) {
	var metadata any
	if u.Metadata != nil {
		b, err := json.Marshal(u.Metadata)
		if err != nil {
			return false, fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(b)
	}
	var rows []statusResult
	err := r.db.WithContext(ctx).
		Raw(
			"SELECT * FROM update_withdrawal_status(p_withdrawal_id := ?, p_expected_status := ?, p_status := ?, p_external_id := ?, p_metadata := ?::jsonb, p_claim := ?, p_require_unclaimed := ?, p_release_claim := ?)",
			u.ID, string(u.From), string(u.To), u.ExternalID, metadata, u.Claim, u.Claim != nil || u.Unclaimed, u.Release,
		).
		Scan(&rows).
		Error
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, fmt.Errorf("update_withdrawal_status returned no row for %s", u.ID)
	}
	return rows[0].Success, nil
}

// ListSubmittedPayouts returns pending withdrawals whose payout was accepted
// by the gateway but not yet confirmed, oldest first.
func (r *GormRepository) ListSubmittedPayouts(ctx context.Context, limit int) ([]models.WalletTransaction, error) {
	var out []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("type = ? AND status = ? AND external_id IS NOT NULL", models.WalletTransactionWithdrawal, types.WITHDRAWAL_PENDING).
		Order("created_at").
		Limit(limit).
		Find(&out).
		Error
	return out, err
}
