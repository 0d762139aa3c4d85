package services

import (
	"context"
	"fmt"
	"testing"

	"exam-platform/database"
	"exam-platform/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, username, role, wallet string) *models.User {
	t.Helper()
	u := &models.User{
		Username:      username,
		Email:         username + "@example.com",
		PasswordHash:  "x",
		Role:          role,
		WalletBalance: decimal.RequireFromString(wallet),
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedQuestions(t *testing.T, qs *QuestionService, subject string, n int) []*models.Question {
	t.Helper()
	out := make([]*models.Question, 0, n)
	for i := 0; i < n; i++ {
		q, err := qs.CreateQuestion(context.Background(), CreateQuestionInput{
			Subject:       subject,
			Text:          fmt.Sprintf("%s question %d", subject, i),
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: i % 4,
		})
		require.NoError(t, err)
		out = append(out, q)
	}
	return out
}

func reloadUser(t *testing.T, db *gorm.DB, id string) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, "id = ?", id).Error)
	return u
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}
