package models

import (
	"sosseats/src/types"
	"time"

	"github.com/shopspring/decimal"
)

const WalletTransactionWithdrawal = "withdrawal"

type WalletTransaction struct {
	ID                  string                 `gorm:"primarykey;type:uuid" json:"id"`
	WalletAddress       string                 `json:"wallet_address"`
	Type                string                 `json:"type"`
	Amount              decimal.Decimal        `gorm:"type:numeric(12,2)" json:"amount"`
	Currency            string                 `json:"currency"`
	Status              types.WithdrawalStatus `json:"status"`
	MultisigEnabled     bool                   `json:"multisig_enabled"`
	RequiredSignatures  int                    `gorm:"default:1" json:"required_signatures"`
	CollectedSignatures types.Signatures       `gorm:"type:jsonb" json:"collected_signatures"`
	PendingToken        *string                `gorm:"uniqueIndex" json:"pending_token,omitempty"`
	ExpiresAt           *time.Time             `json:"expires_at,omitempty"`
	ExternalID          *string                `json:"external_id,omitempty"`
	ExecutionClaim      *string                `json:"-"`
	Metadata            types.JSONB            `gorm:"type:jsonb" json:"metadata"`

	types.Timestamps
}

func (w *WalletTransaction) Expired(now time.Time) bool {
	return w.Status == types.WITHDRAWAL_PENDING_APPROVAL && w.ExpiresAt != nil && now.After(*w.ExpiresAt)
}

// Executing reports whether a payout attempt holds the row.
func (w *WalletTransaction) Executing() bool {
	return w.ExecutionClaim != nil
}

func (w *WalletTransaction) ThresholdMet() bool {
	return len(w.CollectedSignatures) >= w.RequiredSignatures
}
