package services

import (
	"strconv"

	"invest-tournament-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletService struct {
	DB *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{DB: db}
}

// lockWallet returns the user's wallet row locked for update, creating it when missing.
func lockWallet(tx *gorm.DB, userID string) (*models.TokenWallet, error) {
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.TokenWallet{
		ID:       uuid.NewString(),
		UserID:   userID,
		Balance:  decimal.Zero,
		IsActive: true,
	}).Error; err != nil {
		return nil, err
	}
	var w models.TokenWallet
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// applyWalletTx moves amount (positive credit, negative debit) through the ledger.
// A reference that was already applied is a no-op, so retries never double-post.
func applyWalletTx(tx *gorm.DB, userID string, amount decimal.Decimal, kind models.WalletTxKind, reference, description string) error {
	w, err := lockWallet(tx, userID)
	if err != nil {
		return err
	}
	if amount.IsNegative() && w.Balance.Add(amount).IsNegative() {
		return ErrInsufficientFunds
	}

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reference"}},
		DoNothing: true,
	}).Create(&models.WalletTransaction{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		UserID:      userID,
		Kind:        kind,
		Amount:      amount,
		Reference:   reference,
		Description: description,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return tx.Model(&models.TokenWallet{}).Where("id = ?", w.ID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}

// GetMyWalletEndpoint returns the caller's balance and latest ledger lines.
func (s *WalletService) GetMyWalletEndpoint(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	var wallet models.TokenWallet
	if err := s.DB.Where("user_id = ?", userID).Limit(1).Find(&wallet).Error; err != nil {
		return respondError(c, wrapDB(err, "wallet"))
	}
	if wallet.ID == "" {
		wallet = models.TokenWallet{UserID: userID, Balance: decimal.Zero}
	}

	var txs []models.WalletTransaction
	if err := s.DB.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&txs).Error; err != nil {
		return respondError(c, wrapDB(err, "wallet transactions"))
	}
	return c.JSON(fiber.Map{
		"wallet":       wallet,
		"configured":   wallet.Configured(),
		"transactions": txs,
	})
}
