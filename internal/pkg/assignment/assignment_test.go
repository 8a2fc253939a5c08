package assignment

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/craftmatch/CraftMatch/app/models"
	"github.com/craftmatch/CraftMatch/internal/pkg/notify"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Every pooled connection of an in-memory sqlite is its own database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.Case{},
		&models.Bid{},
		&models.QueueEntry{},
		&models.TrialState{},
		&models.IncomeRecord{},
		&models.PointTransaction{},
		&models.Notification{},
	))
	return db
}

func newTestService(db *gorm.DB) *Service {
	return NewService(db, notify.Noop{})
}

func seedUser(t *testing.T, db *gorm.DB, name, role, plan string, points int) *models.User {
	t.Helper()

	u := &models.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "irrelevant",
		Role:     role,
		Status:   models.STATUS_ACTIVE,
	}
	require.NoError(t, db.Create(u).Error)

	settings := &models.UserSettings{
		UserID:         u.ID,
		Plan:           plan,
		PointsBalance:  points,
		ContactEnabled: true,
	}
	require.NoError(t, db.Create(settings).Error)
	return u
}

func seedCustomer(t *testing.T, db *gorm.DB, name string) *models.User {
	return seedUser(t, db, name, models.ROLE_CUSTOMER, models.PlanPro, 0)
}

func seedProvider(t *testing.T, db *gorm.DB, name, plan string, points int) *models.User {
	return seedUser(t, db, name, models.ROLE_PROVIDER, plan, points)
}

func pointsBalance(t *testing.T, db *gorm.DB, userID uint) int {
	t.Helper()

	var settings models.UserSettings
	require.NoError(t, db.Where("user_id = ?", userID).First(&settings).Error)
	return settings.PointsBalance
}

func reloadCase(t *testing.T, db *gorm.DB, id uint) *models.Case {
	t.Helper()

	var c models.Case
	require.NoError(t, db.First(&c, id).Error)
	return &c
}
