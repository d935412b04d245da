// Package sql provides a database/sql violation ledger for MySQL, TiDB,
// PostgreSQL and SQLite. Drivers are registered by the caller.
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/ledger"
	"github.com/heibot/chatguard/utils"
)

// Dialect represents the SQL dialect.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectTiDB     Dialect = "tidb"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Valid reports whether d is a supported dialect.
func (d Dialect) Valid() bool {
	switch d {
	case DialectMySQL, DialectTiDB, DialectPostgres, DialectSQLite:
		return true
	}
	return false
}

// driverName is the database/sql driver conventionally registered for d.
func (d Dialect) driverName() string {
	switch d {
	case DialectTiDB:
		return "mysql"
	default:
		return string(d)
	}
}

const (
	countsTable  = "chatguard_user_violation"
	historyTable = "chatguard_violation_history"
)

// Config holds the configuration for the SQL ledger.
type Config struct {
	Dialect Dialect
	// Driver overrides the registered driver name, e.g. "pgx".
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// NodeID distinguishes history IDs written by different processes.
	NodeID int64
}

// DefaultConfig returns the default SQL ledger configuration.
func DefaultConfig() Config {
	return Config{
		Dialect:         DialectMySQL,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Ledger implements ledger.Ledger on a SQL database.
type Ledger struct {
	db      *sql.DB
	dialect Dialect
	idGen   *utils.IDGenerator
	now     func() time.Time
}

// New opens the database and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Ledger, error) {
	if !cfg.Dialect.Valid() {
		return nil, fmt.Errorf("%w: unknown sql dialect %q", chatguard.ErrInvalidConfig, cfg.Dialect)
	}
	driver := cfg.Driver
	if driver == "" {
		driver = cfg.Dialect.driverName()
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	l := NewWithDB(db, cfg.Dialect)
	l.idGen = utils.NewIDGeneratorForNode(cfg.NodeID)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, l.storeError("ping", err)
	}

	if cfg.Dialect == DialectSQLite {
		// Writers from other processes wait for the lock instead of failing.
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteBusyTimeout.Milliseconds())); err != nil {
			db.Close()
			return nil, l.storeError("pragma", err)
		}
	}
	return l, nil
}

// sqliteBusyTimeout bounds how long a SQLite write waits on another
// process holding the database lock.
const sqliteBusyTimeout = 5 * time.Second

// NewWithDB creates a ledger on an existing connection pool. For SQLite the
// pool is pinned to a single long-lived connection: SQLite allows one writer
// at a time, and every connection to ":memory:" opens its own database.
func NewWithDB(db *sql.DB, dialect Dialect) *Ledger {
	if dialect == DialectSQLite {
		pinSingleConn(db)
	}
	return &Ledger{
		db:      db,
		dialect: dialect,
		idGen:   utils.NewIDGenerator(),
		now:     time.Now,
	}
}

func pinSingleConn(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
}

// rebind converts ? placeholders to $n for PostgreSQL.
func (l *Ledger) rebind(query string) string {
	if l.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (l *Ledger) mysqlFamily() bool {
	return l.dialect == DialectMySQL || l.dialect == DialectTiDB
}

// Migrate creates the ledger tables if they do not exist.
func (l *Ledger) Migrate(ctx context.Context) error {
	for _, stmt := range l.schema() {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return l.storeError("migrate", err)
		}
	}
	return nil
}

func (l *Ledger) schema() []string {
	if l.mysqlFamily() {
		return []string{
			`CREATE TABLE IF NOT EXISTS ` + countsTable + ` (
				user_id VARCHAR(191) NOT NULL PRIMARY KEY,
				warning_count INT NOT NULL DEFAULT 0,
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS ` + historyTable + ` (
				id VARCHAR(64) NOT NULL PRIMARY KEY,
				user_id VARCHAR(191) NOT NULL,
				created_at BIGINT NOT NULL,
				INDEX idx_violation_history_user (user_id, created_at)
			)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + countsTable + ` (
			user_id VARCHAR(191) NOT NULL PRIMARY KEY,
			warning_count INTEGER NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + historyTable + ` (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			user_id VARCHAR(191) NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_violation_history_user ON ` + historyTable + ` (user_id, created_at)`,
	}
}

func (l *Ledger) upsertQuery() string {
	if l.mysqlFamily() {
		return `INSERT INTO ` + countsTable + ` (user_id, warning_count, created_at, updated_at)
			VALUES (?, 1, ?, ?)
			ON DUPLICATE KEY UPDATE warning_count = warning_count + 1, updated_at = VALUES(updated_at)`
	}
	return l.rebind(`INSERT INTO ` + countsTable + ` (user_id, warning_count, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET warning_count = ` + countsTable + `.warning_count + 1, updated_at = excluded.updated_at`)
}

// IncrementAndGet implements ledger.Ledger. The upsert, history insert and
// read-back run in one transaction. On MySQL, TiDB and PostgreSQL the row
// lock taken by the upsert serializes increments for the same user; on
// SQLite the single pooled connection serializes every transaction in the
// process.
func (l *Ledger) IncrementAndGet(ctx context.Context, userID string) (int, error) {
	now := l.now().UnixMilli()

	var count int
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, l.upsertQuery(), userID, now, now); err != nil {
			return err
		}

		insert := l.rebind(`INSERT INTO ` + historyTable + ` (id, user_id, created_at) VALUES (?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, insert, l.idGen.GenerateWithPrefix("vh"), userID, now); err != nil {
			return err
		}

		query := l.rebind(`SELECT warning_count FROM ` + countsTable + ` WHERE user_id = ?`)
		return tx.QueryRowContext(ctx, query, userID).Scan(&count)
	})
	if err != nil {
		return 0, l.storeError("increment", err)
	}
	return count, nil
}

// Get implements ledger.Ledger.
func (l *Ledger) Get(ctx context.Context, userID string) (int, error) {
	query := l.rebind(`SELECT warning_count FROM ` + countsTable + ` WHERE user_id = ?`)

	var count int
	err := l.db.QueryRowContext(ctx, query, userID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, l.storeError("get", err)
	}
	return count, nil
}

// Record implements ledger.Recorder.
func (l *Ledger) Record(ctx context.Context, userID string) (*chatguard.UserViolationRecord, error) {
	query := l.rebind(`SELECT user_id, warning_count, created_at, updated_at FROM ` + countsTable + ` WHERE user_id = ?`)

	var rec chatguard.UserViolationRecord
	err := l.db.QueryRowContext(ctx, query, userID).Scan(&rec.UserID, &rec.WarningCount, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chatguard.ErrUserNotFound
	}
	if err != nil {
		return nil, l.storeError("record", err)
	}

	history := l.rebind(`SELECT created_at FROM ` + historyTable + ` WHERE user_id = ? ORDER BY created_at, id`)
	rows, err := l.db.QueryContext(ctx, history, userID)
	if err != nil {
		return nil, l.storeError("record", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, l.storeError("record", err)
		}
		rec.History = append(rec.History, time.UnixMilli(ms))
	}
	if err := rows.Err(); err != nil {
		return nil, l.storeError("record", err)
	}
	return &rec, nil
}

// Reset implements ledger.Resetter.
func (l *Ledger) Reset(ctx context.Context, userID string) error {
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{historyTable, countsTable} {
			if _, err := tx.ExecContext(ctx, l.rebind(`DELETE FROM `+table+` WHERE user_id = ?`), userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return l.storeError("reset", err)
	}
	return nil
}

// withTx executes fn within a transaction.
func (l *Ledger) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (l *Ledger) storeError(op string, err error) error {
	return chatguard.NewLedgerError(op, string(l.dialect), chatguard.WrapNetworkError(err))
}

// Ping checks database connectivity.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

var (
	_ ledger.Ledger   = (*Ledger)(nil)
	_ ledger.Recorder = (*Ledger)(nil)
	_ ledger.Resetter = (*Ledger)(nil)
	_ ledger.Closer   = (*Ledger)(nil)
)
