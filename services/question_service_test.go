package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomQuestionIDs(t *testing.T) {
	db := newTestDB(t)
	qs := NewQuestionService(db)
	math := seedQuestions(t, qs, "Mathematics", 5)
	seedQuestions(t, qs, "Physics", 3)

	mathIDs := map[string]bool{}
	for _, q := range math {
		mathIDs[q.ID] = true
	}

	tests := []struct {
		name    string
		subject string
		n       int
		want    int
	}{
		{"fewer than available", "mathematics", 3, 3},
		{"more than available", "Mathematics", 10, 5},
		{"any subject", "", 7, 7},
		{"unknown subject", "history", 3, 0},
		{"zero", "mathematics", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := qs.RandomQuestionIDs(context.Background(), tt.subject, "", tt.n)
			require.NoError(t, err)
			assert.Len(t, ids, tt.want)

			seen := map[string]bool{}
			for _, id := range ids {
				assert.False(t, seen[id], "duplicate id %s", id)
				seen[id] = true
				if tt.subject != "" {
					assert.True(t, mathIDs[id], "id %s is not a mathematics question", id)
				}
			}
		})
	}
}
