package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := InitSchema(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema(t *testing.T) {
	db := testDB(t)

	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='market_cache'`).Scan(&name)
	if err != nil {
		t.Fatalf("market_cache table not created: %v", err)
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := testDB(t)
	if err := InitSchema(db); err != nil {
		t.Fatalf("second InitSchema failed: %v", err)
	}
}

func TestMarketCache_ReplaceByID(t *testing.T) {
	db := testDB(t)

	for _, payload := range []string{`{"v":1}`, `{"v":2}`} {
		if _, err := db.Exec(
			`INSERT OR REPLACE INTO market_cache (id, payload, price_timestamp) VALUES (?, ?, ?)`,
			"bitcoin", payload, 100,
		); err != nil {
			t.Fatal(err)
		}
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM market_cache`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
	var payload string
	if err := db.QueryRow(`SELECT payload FROM market_cache WHERE id = 'bitcoin'`).Scan(&payload); err != nil {
		t.Fatal(err)
	}
	if payload != `{"v":2}` {
		t.Fatalf("expected latest payload, got %s", payload)
	}
}
