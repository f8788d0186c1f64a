// models/wallet.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TokenWallet holds a user's platform token balance. Address and chain are
// mirrored from the wallet sync service; Balance is owned by this service.
type TokenWallet struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string          `gorm:"not null;uniqueIndex" json:"user_id"`
	Address   *string         `gorm:"type:varchar(128)" json:"address,omitempty"`
	Chain     string          `gorm:"type:varchar(64)" json:"chain,omitempty"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0;check:balance >= 0" json:"balance"`
	IsActive  bool            `gorm:"not null;default:true" json:"is_active"`
	SyncedAt  *time.Time      `json:"synced_at,omitempty"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Configured reports whether the user has set up an on-chain wallet.
func (w *TokenWallet) Configured() bool {
	return w.IsActive && w.Address != nil && *w.Address != ""
}

type WalletTxKind string

const (
	WalletTxEntryFee WalletTxKind = "entry_fee"
	WalletTxReward   WalletTxKind = "reward"
	WalletTxRefund   WalletTxKind = "refund"
)

// WalletTransaction is the ledger line for every balance change. Reference is unique so
// a retried credit or debit can never apply twice.
type WalletTransaction struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	WalletID    string          `gorm:"type:uuid;not null;index" json:"wallet_id"`
	UserID      string          `gorm:"not null;index" json:"user_id"`
	Kind        WalletTxKind    `gorm:"type:varchar(16);not null" json:"kind"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Reference   string          `gorm:"not null;uniqueIndex" json:"reference"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
