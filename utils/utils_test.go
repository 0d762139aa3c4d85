package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Username string `validate:"required,min=3"`
	Plan     string `validate:"omitempty,oneof=monthly yearly"`
	Days     int    `validate:"max=30"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name string
		in   signup
		want []string
	}{
		{"valid", signup{Username: "ada", Plan: "monthly", Days: 3}, nil},
		{"missing", signup{}, []string{"username is required"}},
		{"too short", signup{Username: "ab"}, []string{"username must be at least 3"}},
		{"bad plan and days", signup{Username: "ada", Plan: "weekly", Days: 31}, []string{
			"plan must be one of [monthly yearly]",
			"days must be at most 30",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, msg := range tt.want {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}

func TestLocalStoragePut(t *testing.T) {
	store := &LocalStorage{Dir: t.TempDir(), BaseURL: "/archive/"}

	key := RoomResultsKey("room-1")
	url, err := store.Put(context.Background(), key, []byte(`{"ok":true}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "/archive/rooms/room-1/results.json", url)

	saved, err := os.ReadFile(filepath.Join(store.Dir, "rooms", "room-1", "results.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(saved))

	_, err = store.Put(context.Background(), key, []byte(`{"ok":false}`), "application/json")
	require.NoError(t, err)
	saved, err = os.ReadFile(GetArchivePath(store.Dir, key))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false}`, string(saved), "a later archive replaces the earlier one")
}
