package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = RunMigrations(db)
	require.NoError(t, err)

	return db
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testFeedItem(key, title string) FeedItem {
	return FeedItem{
		ItemKey:        key,
		SourceURL:      "https://example.com/" + key,
		NormalizedURL:  "https://example.com/" + key,
		Title:          title,
		TitleHash:      "hash-" + key,
		DateConfidence: "low",
	}
}
