package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"weekly-rewards-api/internal/ledger"
)

// Supported database/sql driver names.
const (
	// DriverCGO is github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"
	// DriverPure is modernc.org/sqlite, usable with CGO_ENABLED=0.
	DriverPure = "sqlite"
)

// DB is a ledger.Store backed by SQLite.
type DB struct {
	conn *sql.DB
}

var _ ledger.Store = (*DB)(nil)

// NewDB opens the database at dbPath with the given driver and initializes
// the schema.
func NewDB(driver, dbPath string) (*DB, error) {
	dsn, err := buildDSN(driver, dbPath)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and avoids
	// writer contention inside one process.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func buildDSN(driver, dbPath string) (string, error) {
	switch driver {
	case DriverCGO:
		return dbPath + "?_foreign_keys=1&_busy_timeout=5000", nil
	case DriverPure:
		return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS reward_weeks (
			user_id TEXT NOT NULL REFERENCES users(id),
			week_key INTEGER NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, week_key)
		)`,
		`CREATE TABLE IF NOT EXISTS reward_redemptions (
			user_id TEXT NOT NULL,
			week_key INTEGER NOT NULL,
			day_index INTEGER NOT NULL CHECK (day_index BETWEEN 0 AND 6),
			redeemed_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, week_key, day_index),
			FOREIGN KEY (user_id, week_key) REFERENCES reward_weeks(user_id, week_key)
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// UserExists reports whether the user has a record.
func (db *DB) UserExists(ctx context.Context, userID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query user: %w", err)
	}
	return n > 0, nil
}

// EnsureWeek creates the user and the week if absent in a single transaction.
func (db *DB) EnsureWeek(ctx context.Context, userID string, weekKey time.Time) (ledger.Week, bool, error) {
	var (
		week    ledger.Week
		created bool
	)

	err := retryOnContention(func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, userID,
		); err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO reward_weeks (user_id, week_key) VALUES (?, ?)
			ON CONFLICT(user_id, week_key) DO NOTHING`,
			userID, weekKey.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert week: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}

		w, err := loadRedemptions(ctx, tx, userID, weekKey)
		if err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		week, created = w, n > 0
		return nil
	})
	if err != nil {
		return ledger.Week{}, false, err
	}

	return week, created, nil
}

// GetWeek returns the week if it was created.
func (db *DB) GetWeek(ctx context.Context, userID string, weekKey time.Time) (ledger.Week, bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reward_weeks WHERE user_id = ? AND week_key = ?`,
		userID, weekKey.UnixMilli(),
	).Scan(&n)
	if err != nil {
		return ledger.Week{}, false, fmt.Errorf("failed to query week: %w", err)
	}
	if n == 0 {
		return ledger.Week{}, false, nil
	}

	week, err := loadRedemptions(ctx, db.conn, userID, weekKey)
	if err != nil {
		return ledger.Week{}, false, err
	}
	return week, true, nil
}

// MarkRedeemed records the redemption unless the slot already has one.
func (db *DB) MarkRedeemed(ctx context.Context, userID string, weekKey time.Time, index int, at time.Time) (bool, error) {
	var written bool

	err := retryOnContention(func() error {
		res, err := db.conn.ExecContext(ctx,
			`INSERT INTO reward_redemptions (user_id, week_key, day_index, redeemed_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, week_key, day_index) DO NOTHING`,
			userID, weekKey.UnixMilli(), index, at.UnixMicro(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert redemption: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		written = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	return written, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadRedemptions reads the redeemed slots of one week.
func loadRedemptions(ctx context.Context, q querier, userID string, weekKey time.Time) (ledger.Week, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT day_index, redeemed_at FROM reward_redemptions
		WHERE user_id = ? AND week_key = ?`,
		userID, weekKey.UnixMilli(),
	)
	if err != nil {
		return ledger.Week{}, fmt.Errorf("failed to query redemptions: %w", err)
	}
	defer rows.Close()

	var week ledger.Week
	for rows.Next() {
		var (
			index      int
			redeemedAt int64
		)
		if err := rows.Scan(&index, &redeemedAt); err != nil {
			return ledger.Week{}, fmt.Errorf("failed to scan redemption: %w", err)
		}
		if index < 0 || index >= len(week) {
			return ledger.Week{}, fmt.Errorf("redemption has invalid day index %d", index)
		}
		t := time.UnixMicro(redeemedAt)
		week[index] = &t
	}

	if err := rows.Err(); err != nil {
		return ledger.Week{}, fmt.Errorf("error iterating redemptions: %w", err)
	}

	return week, nil
}
