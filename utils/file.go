package utils

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Storage persists archive objects and returns their public URL.
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// LocalStorage writes objects under Dir; BaseURL is where Dir is served.
type LocalStorage struct {
	Dir     string
	BaseURL string
}

// EnsureDir creates the archive directory if it doesn't exist
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, os.ModePerm)
}

func (s *LocalStorage) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if err := SaveFile(GetArchivePath(s.Dir, key), data); err != nil {
		return "", err
	}
	base := s.BaseURL
	if base == "" {
		base = "/archive"
	}
	return strings.TrimRight(base, "/") + "/" + filepath.ToSlash(key), nil
}

// SaveFile writes data to destPath, creating parent directories.
func SaveFile(destPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0o644)
}

// GetArchivePath returns the full path for a key inside the archive directory
func GetArchivePath(dir, key string) string {
	return filepath.Join(dir, filepath.FromSlash(key))
}

// RoomResultsKey is the object key of a room's final leaderboard.
func RoomResultsKey(roomID string) string {
	return "rooms/" + roomID + "/results.json"
}
