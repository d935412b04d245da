package sql

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/heibot/chatguard"

	_ "modernc.org/sqlite"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	l := NewWithDB(db, DialectSQLite)
	if err := l.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return l
}

func TestLedger_IncrementAndGet(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	if n, err := l.Get(ctx, "alice"); err != nil || n != 0 {
		t.Fatalf("Get(unknown) = %d, %v", n, err)
	}

	for want := 1; want <= 3; want++ {
		got, err := l.IncrementAndGet(ctx, "alice")
		if err != nil {
			t.Fatalf("IncrementAndGet: %v", err)
		}
		if got != want {
			t.Errorf("IncrementAndGet = %d, want %d", got, want)
		}
	}

	if n, _ := l.IncrementAndGet(ctx, "bob"); n != 1 {
		t.Errorf("bob count = %d, want 1", n)
	}
	if n, _ := l.Get(ctx, "alice"); n != 3 {
		t.Errorf("alice count = %d, want 3", n)
	}
}

func TestLedger_Record(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	if _, err := l.Record(ctx, "carol"); !errors.Is(err, chatguard.ErrUserNotFound) {
		t.Fatalf("Record(unknown) error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := l.IncrementAndGet(ctx, "carol"); err != nil {
			t.Fatal(err)
		}
	}

	rec, err := l.Record(ctx, "carol")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.UserID != "carol" || rec.WarningCount != 2 || len(rec.History) != 2 {
		t.Errorf("record = %+v", rec)
	}
	if rec.CreatedAt == 0 || rec.UpdatedAt < rec.CreatedAt {
		t.Errorf("timestamps = %d/%d", rec.CreatedAt, rec.UpdatedAt)
	}
}

func TestLedger_Reset(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	if _, err := l.IncrementAndGet(ctx, "dave"); err != nil {
		t.Fatal(err)
	}
	if err := l.Reset(ctx, "dave"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n, _ := l.Get(ctx, "dave"); n != 0 {
		t.Errorf("count after reset = %d", n)
	}
	if n, _ := l.IncrementAndGet(ctx, "dave"); n != 1 {
		t.Errorf("count after reset and increment = %d", n)
	}
}

func TestLedger_MigrateIdempotent(t *testing.T) {
	l := newTestLedger(t)
	if err := l.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate: %v", err)
	}
}

func TestLedger_ConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.IncrementAndGet(ctx, "eve"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got, _ := l.Get(ctx, "eve"); got != n {
		t.Errorf("count = %d, want %d", got, n)
	}
	rec, err := l.Record(ctx, "eve")
	if err != nil || len(rec.History) != n {
		t.Errorf("history = %d entries, %v", len(rec.History), err)
	}
}

func TestLedger_ErrorsAreLedgerErrors(t *testing.T) {
	l := newTestLedger(t)
	l.db.Close()

	_, err := l.IncrementAndGet(context.Background(), "frank")
	if !errors.Is(err, chatguard.ErrLedgerUnavailable) {
		t.Errorf("error = %v, want ErrLedgerUnavailable", err)
	}
	var le *chatguard.LedgerError
	if !errors.As(err, &le) || le.Backend != "sqlite" || le.Operation != "increment" {
		t.Errorf("LedgerError = %+v", le)
	}
}

func TestRebind(t *testing.T) {
	pg := &Ledger{dialect: DialectPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	my := &Ledger{dialect: DialectMySQL}
	if got := my.rebind("a = ?"); got != "a = ?" {
		t.Errorf("mysql rebind = %q", got)
	}
}

func TestNew_InvalidDialect(t *testing.T) {
	_, err := New(context.Background(), Config{Dialect: "oracle"})
	if !errors.Is(err, chatguard.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestNew_SQLite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dialect = DialectSQLite
	cfg.DSN = ":memory:"

	l, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	if err := l.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := l.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	// The migrated tables must be visible to every later call.
	assertConcurrentIncrements(t, l, "mem", 20)
}

func TestNew_SQLiteFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dialect = DialectSQLite
	cfg.DSN = filepath.Join(t.TempDir(), "ledger.db")

	l, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	if err := l.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if got := l.db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("max open connections = %d, want 1", got)
	}
	assertConcurrentIncrements(t, l, "u", 20)
}

func assertConcurrentIncrements(t *testing.T, l *Ledger, userID string, n int) {
	t.Helper()
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   []error
		counts = make(map[int]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := l.IncrementAndGet(ctx, userID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			counts[c] = true
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("%d of %d increments failed, first: %v", len(errs), n, errs[0])
	}
	if len(counts) != n {
		t.Errorf("distinct counts = %d, want %d", len(counts), n)
	}
	rec, err := l.Record(ctx, userID)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.WarningCount != n || len(rec.History) != n {
		t.Errorf("record count = %d history = %d, want %d", rec.WarningCount, len(rec.History), n)
	}
}
