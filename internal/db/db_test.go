package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const failedToInitDB = "Failed to initialize database: %v"

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	db := NewSQLite(filepath.Join(t.TempDir(), "posts.db"))
	if err := db.InitDB(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewSQLite(t *testing.T) {
	t.Run("Default path", func(t *testing.T) {
		db := NewSQLite("")
		if db.Path() != DefaultPath {
			t.Errorf("Expected %s, got %s", DefaultPath, db.Path())
		}
		if db.Get() != nil {
			t.Error("Expected connection to be nil before InitDB")
		}
	})

	t.Run("Custom path", func(t *testing.T) {
		db := NewSQLite("/tmp/x.db")
		if db.Path() != "/tmp/x.db" {
			t.Errorf("Expected /tmp/x.db, got %s", db.Path())
		}
	})
}

func TestInitDB(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t.Run("Database file is created", func(t *testing.T) {
		if _, err := os.Stat(db.Path()); err != nil {
			t.Errorf("Expected database file to exist: %v", err)
		}
	})

	t.Run("Posts table schema", func(t *testing.T) {
		rows, err := db.QueryContext(ctx, "PRAGMA table_info(posts)")
		if err != nil {
			t.Fatalf("Failed to get posts table info: %v", err)
		}
		defer rows.Close()

		columns := make(map[string]bool)
		for rows.Next() {
			var cid, notNull, pk int
			var name, dataType string
			var defaultValue sql.NullString
			if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
				t.Fatalf("Failed to scan column info: %v", err)
			}
			columns[name] = true
		}

		for _, col := range []string{"id", "uid", "document", "compression", "content_hash", "created_at", "modified_at"} {
			if !columns[col] {
				t.Errorf("Expected posts table to have column %s", col)
			}
		}
	})

	t.Run("InitDB is idempotent", func(t *testing.T) {
		again := NewSQLite(db.Path())
		defer again.Close()
		if err := again.InitDB(); err != nil {
			t.Errorf("Expected second InitDB on same file to succeed, got %v", err)
		}
	})
}

func TestExecAndQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	res, err := db.ExecContext(ctx,
		`INSERT INTO posts (id, uid, document, compression) VALUES (?, ?, ?, ?)`,
		"p1", "u1", []byte(`{"title":"t"}`), "none")
	if err != nil {
		t.Fatalf("Failed to insert post: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Errorf("Expected 1 row affected, got %d", n)
	}

	var uid string
	var doc []byte
	if err := db.QueryRowContext(ctx, `SELECT uid, document FROM posts WHERE id = ?`, "p1").Scan(&uid, &doc); err != nil {
		t.Fatalf("Failed to query post: %v", err)
	}
	if uid != "u1" || string(doc) != `{"title":"t"}` {
		t.Errorf("Expected stored row, got uid=%s doc=%s", uid, doc)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO posts (id, uid, document, compression) VALUES (?, ?, ?, ?)`,
		"p1", "u2", []byte(`{}`), "none")
	if err == nil {
		t.Error("Expected primary key violation for duplicate id")
	}
}

func TestMemoryDatabase(t *testing.T) {
	db := NewSQLite(":memory:")
	if err := db.InitDB(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `INSERT INTO posts (id, document, compression) VALUES ('a', x'00', 'none')`); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 row visible on the shared connection, got %d", n)
	}
}

func TestUninitialized(t *testing.T) {
	db := NewSQLite(filepath.Join(t.TempDir(), "never.db"))
	ctx := context.Background()

	if _, err := db.QueryContext(ctx, "SELECT 1"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
	if _, err := db.ExecContext(ctx, "SELECT 1"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Expected closing an uninitialized database to succeed, got %v", err)
	}
}

func TestCloseTwice(t *testing.T) {
	db := NewSQLite(filepath.Join(t.TempDir(), "close.db"))
	if err := db.InitDB(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Expected second close to succeed, got %v", err)
	}
}

func TestDBInterface(t *testing.T) {
	var _ DB = (*SQLite)(nil)
}
