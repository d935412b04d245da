// Package redis provides a violation ledger backed by Redis.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/ledger"
)

const backend = "redis"

// Options holds configuration for connecting to Redis.
type Options struct {
	// Address is the host:port of the Redis server.
	Address  string
	Password string
	DB       int
	// KeyPrefix namespaces every key written by the ledger.
	KeyPrefix string
	// HistoryLimit caps the per-user history list, 0 keeps everything.
	HistoryLimit int64
}

// DefaultOptions returns localhost defaults.
func DefaultOptions() Options {
	return Options{
		Address:   "localhost:6379",
		KeyPrefix: "chatguard",
	}
}

// Ledger implements ledger.Ledger on Redis. Each user has a hash holding
// the count and timestamps, and a list of violation timestamps.
type Ledger struct {
	client       *redis.Client
	prefix       string
	historyLimit int64
	now          func() time.Time
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Ledger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, chatguard.NewLedgerError("ping", backend, chatguard.WrapNetworkError(err))
	}
	return NewWithClient(client, opts), nil
}

// NewWithClient creates a ledger on an existing client.
func NewWithClient(client *redis.Client, opts Options) *Ledger {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultOptions().KeyPrefix
	}
	return &Ledger{
		client:       client,
		prefix:       prefix,
		historyLimit: opts.HistoryLimit,
		now:          time.Now,
	}
}

func (l *Ledger) recordKey(userID string) string {
	return l.prefix + ":violations:" + userID
}

func (l *Ledger) historyKey(userID string) string {
	return l.prefix + ":violations:" + userID + ":history"
}

// IncrementAndGet implements ledger.Ledger. The count and history are
// updated in one MULTI/EXEC block.
func (l *Ledger) IncrementAndGet(ctx context.Context, userID string) (int, error) {
	now := l.now().UnixMilli()
	key, hist := l.recordKey(userID), l.historyKey(userID)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, "warning_count", 1)
		pipe.HSetNX(ctx, key, "created_at", now)
		pipe.HSet(ctx, key, "updated_at", now)
		pipe.RPush(ctx, hist, now)
		if l.historyLimit > 0 {
			pipe.LTrim(ctx, hist, -l.historyLimit, -1)
		}
		return nil
	})
	if err != nil {
		return 0, l.storeError("increment", err)
	}
	return int(incr.Val()), nil
}

// Get implements ledger.Ledger.
func (l *Ledger) Get(ctx context.Context, userID string) (int, error) {
	n, err := l.client.HGet(ctx, l.recordKey(userID), "warning_count").Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, l.storeError("get", err)
	}
	return n, nil
}

// Record implements ledger.Recorder.
func (l *Ledger) Record(ctx context.Context, userID string) (*chatguard.UserViolationRecord, error) {
	var fields *redis.MapStringStringCmd
	var history *redis.StringSliceCmd
	_, err := l.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, l.recordKey(userID))
		history = pipe.LRange(ctx, l.historyKey(userID), 0, -1)
		return nil
	})
	if err != nil {
		return nil, l.storeError("record", err)
	}

	vals := fields.Val()
	if len(vals) == 0 {
		return nil, chatguard.ErrUserNotFound
	}

	rec := &chatguard.UserViolationRecord{UserID: userID}
	rec.WarningCount, _ = strconv.Atoi(vals["warning_count"])
	rec.CreatedAt, _ = strconv.ParseInt(vals["created_at"], 10, 64)
	rec.UpdatedAt, _ = strconv.ParseInt(vals["updated_at"], 10, 64)
	for _, s := range history.Val() {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		rec.History = append(rec.History, time.UnixMilli(ms))
	}
	return rec, nil
}

// Reset implements ledger.Resetter.
func (l *Ledger) Reset(ctx context.Context, userID string) error {
	if err := l.client.Del(ctx, l.recordKey(userID), l.historyKey(userID)).Err(); err != nil {
		return l.storeError("reset", err)
	}
	return nil
}

// Ping checks the connection.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the client.
func (l *Ledger) Close() error {
	return l.client.Close()
}

func (l *Ledger) storeError(op string, err error) error {
	return chatguard.NewLedgerError(op, backend, chatguard.WrapNetworkError(err))
}

var (
	_ ledger.Ledger   = (*Ledger)(nil)
	_ ledger.Recorder = (*Ledger)(nil)
	_ ledger.Resetter = (*Ledger)(nil)
	_ ledger.Closer   = (*Ledger)(nil)
)
