package wallet

import (
	"fmt"

	"github.com/craftmatch/CraftMatch/app/models"
	"gorm.io/gorm"
)

// Debit withdraws points from a provider's balance. The balance check and
// the decrement are one conditional statement; false means the balance
// was insufficient (or the settings row is missing) and nothing changed.
// Must be called inside the transaction of the operation staking the
// points, so a failed insert later rolls the debit back too.
func Debit(tx *gorm.DB, userID uint, amount int, reason string, caseID, bidID *uint) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	res := tx.Model(&models.UserSettings{}).
		Where("user_id = ? AND points_balance >= ?", userID, amount).
		UpdateColumn("points_balance", gorm.Expr("points_balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	txn := &models.PointTransaction{
		UserID:    userID,
		Direction: models.PointDirectionDebit,
		Amount:    amount,
		Reason:    reason,
		CaseID:    caseID,
		BidID:     bidID,
	}
	if err := tx.Create(txn).Error; err != nil {
		return false, err
	}
	return true, nil
}

// Credit adds points to a provider's balance, creating the settings row
// when the provider never configured one. A refund failure must abort the
// surrounding settlement, so errors propagate to the caller's transaction.
func Credit(tx *gorm.DB, userID uint, amount int, reason string, caseID, bidID *uint) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	if _, err := models.GetOrCreateUserSettings(tx, userID); err != nil {
		return err
	}

	res := tx.Model(&models.UserSettings{}).
		Where("user_id = ?", userID).
		UpdateColumn("points_balance", gorm.Expr("points_balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}

	txn := &models.PointTransaction{
		UserID:    userID,
		Direction: models.PointDirectionCredit,
		Amount:    amount,
		Reason:    reason,
		CaseID:    caseID,
		BidID:     bidID,
	}
	return tx.Create(txn).Error
}

// Balance reads the current point balance of a user.
func Balance(db *gorm.DB, userID uint) (int, error) {
	settings, err := models.GetOrCreateUserSettings(db, userID)
	if err != nil {
		return 0, err
	}
	return settings.PointsBalance, nil
}

// Statement returns the user's ledger entries, newest first.
func Statement(db *gorm.DB, userID uint, offset, limit int) ([]models.PointTransaction, error) {
	var txns []models.PointTransaction
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&txns).Error
	return txns, err
}
