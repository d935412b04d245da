package ledger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/heibot/chatguard"
)

// flakyLedger fails the first n calls of each kind.
type flakyLedger struct {
	failIncrements int
	failGets       int
	err            error
	increments     int
	gets           int
	count          int
}

func (f *flakyLedger) IncrementAndGet(ctx context.Context, userID string) (int, error) {
	f.increments++
	if f.increments <= f.failIncrements {
		return 0, f.err
	}
	f.count++
	return f.count, nil
}

func (f *flakyLedger) Get(ctx context.Context, userID string) (int, error) {
	f.gets++
	if f.gets <= f.failGets {
		return 0, f.err
	}
	return f.count, nil
}

func quickConfig(buf *bytes.Buffer) ResilientConfig {
	return ResilientConfig{
		Backend:      "flaky",
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Logger:       slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
}

func TestResilient_RetriesReads(t *testing.T) {
	var buf bytes.Buffer
	inner := &flakyLedger{failGets: 2, err: chatguard.ErrTimeout}
	r := NewResilient(inner, quickConfig(&buf))

	if _, err := r.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if inner.gets != 3 {
		t.Errorf("gets = %d, want 3", inner.gets)
	}
	if !strings.Contains(buf.String(), "retry_count=2") {
		t.Errorf("log does not mention retries: %s", buf.String())
	}
}

func TestResilient_DoesNotRetryWritesByDefault(t *testing.T) {
	var buf bytes.Buffer
	inner := &flakyLedger{failIncrements: 1, err: chatguard.ErrConnectionRefused}
	r := NewResilient(inner, quickConfig(&buf))

	_, err := r.IncrementAndGet(context.Background(), "u1")
	if !errors.Is(err, chatguard.ErrLedgerUnavailable) {
		t.Fatalf("error = %v, want ErrLedgerUnavailable", err)
	}
	if !errors.Is(err, chatguard.ErrConnectionRefused) {
		t.Errorf("error %v lost its cause", err)
	}
	var le *chatguard.LedgerError
	if !errors.As(err, &le) || le.Backend != "flaky" || le.Operation != "increment" {
		t.Errorf("LedgerError = %+v", le)
	}
	if inner.increments != 1 {
		t.Errorf("increments = %d, want 1", inner.increments)
	}
	if !strings.Contains(buf.String(), "ledger call failed") {
		t.Errorf("failure was not logged: %s", buf.String())
	}
}

func TestResilient_RetryWrites(t *testing.T) {
	var buf bytes.Buffer
	cfg := quickConfig(&buf)
	cfg.RetryWrites = true
	inner := &flakyLedger{failIncrements: 1, err: chatguard.ErrTimeout}

	n, err := NewResilient(inner, cfg).IncrementAndGet(context.Background(), "u1")
	if err != nil || n != 1 {
		t.Fatalf("IncrementAndGet = %d, %v", n, err)
	}
	if inner.increments != 2 {
		t.Errorf("increments = %d, want 2", inner.increments)
	}
}

func TestResilient_OptionalInterfaces(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	plain := NewResilient(&flakyLedger{}, quickConfig(&buf))
	if _, err := plain.Record(ctx, "u1"); !errors.Is(err, chatguard.ErrNotSupported) {
		t.Errorf("Record on plain ledger error = %v", err)
	}
	if err := plain.Reset(ctx, "u1"); !errors.Is(err, chatguard.ErrNotSupported) {
		t.Errorf("Reset on plain ledger error = %v", err)
	}

	mem := NewMemory()
	wrapped := NewResilient(mem, quickConfig(&buf))
	if _, err := wrapped.Record(ctx, "u1"); !errors.Is(err, chatguard.ErrUserNotFound) {
		t.Errorf("Record(unknown) error = %v", err)
	}
	if _, err := wrapped.IncrementAndGet(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	rec, err := wrapped.Record(ctx, "u1")
	if err != nil || rec.WarningCount != 1 {
		t.Errorf("Record = %+v, %v", rec, err)
	}
	if err := wrapped.Reset(ctx, "u1"); err != nil {
		t.Errorf("Reset: %v", err)
	}
	if wrapped.Unwrap() != Ledger(mem) {
		t.Error("Unwrap returned a different ledger")
	}
}
