package wallet

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/craftmatch/CraftMatch/app/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.UserSettings{}, &models.PointTransaction{}))
	return db
}

func seedBalance(t *testing.T, db *gorm.DB, userID uint, points int) {
	t.Helper()
	require.NoError(t, db.Create(&models.UserSettings{
		UserID:        userID,
		Plan:          models.PlanPro,
		PointsBalance: points,
	}).Error)
}

func TestDebit(t *testing.T) {
	db := newTestDB(t)
	seedBalance(t, db, 1, 100)

	ok, err := Debit(db, 1, 40, models.PointReasonBidPlaced, nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	balance, err := Balance(db, 1)
	require.NoError(t, err)
	assert.Equal(t, 60, balance)

	entries, err := Statement(db, 1, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.PointDirectionDebit, entries[0].Direction)
	assert.Equal(t, 40, entries[0].Amount)
	assert.Equal(t, models.PointReasonBidPlaced, entries[0].Reason)
}

func TestDebitInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	seedBalance(t, db, 1, 30)

	ok, err := Debit(db, 1, 40, models.PointReasonBidPlaced, nil, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	// Nothing moved and nothing was ledgered.
	balance, err := Balance(db, 1)
	require.NoError(t, err)
	assert.Equal(t, 30, balance)

	entries, err := Statement(db, 1, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDebitExactBalance(t *testing.T) {
	db := newTestDB(t)
	seedBalance(t, db, 1, 40)

	ok, err := Debit(db, 1, 40, models.PointReasonBidPlaced, nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	balance, err := Balance(db, 1)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	db := newTestDB(t)
	seedBalance(t, db, 1, 100)

	_, err := Debit(db, 1, 0, models.PointReasonBidPlaced, nil, nil)
	require.Error(t, err)
	_, err = Debit(db, 1, -5, models.PointReasonBidPlaced, nil, nil)
	require.Error(t, err)
}

func TestCredit(t *testing.T) {
	db := newTestDB(t)
	seedBalance(t, db, 1, 10)

	caseID := uint(7)
	require.NoError(t, Credit(db, 1, 25, models.PointReasonBidRefund, &caseID, nil))

	balance, err := Balance(db, 1)
	require.NoError(t, err)
	assert.Equal(t, 35, balance)

	entries, err := Statement(db, 1, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.PointDirectionCredit, entries[0].Direction)
	require.NotNil(t, entries[0].CaseID)
	assert.Equal(t, caseID, *entries[0].CaseID)
}

func TestCreditCreatesMissingSettings(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, Credit(db, 9, 15, models.PointReasonTopUp, nil, nil))

	balance, err := Balance(db, 9)
	require.NoError(t, err)
	assert.Equal(t, 15, balance)
}
