package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/utils"
)

const defaultShards = 32

type memoryShard struct {
	mu      sync.Mutex
	records map[string]*chatguard.UserViolationRecord
}

// Memory is an in-process ledger. Users are spread over mutex-guarded
// shards so unrelated users do not contend.
type Memory struct {
	shards []*memoryShard
	now    func() time.Time
}

// MemoryOption configures a Memory ledger.
type MemoryOption func(*Memory)

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty in-memory ledger.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		shards: make([]*memoryShard, defaultShards),
		now:    time.Now,
	}
	for i := range m.shards {
		m.shards[i] = &memoryShard{records: make(map[string]*chatguard.UserViolationRecord)}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) shard(userID string) *memoryShard {
	return m.shards[utils.Shard(userID, len(m.shards))]
}

// IncrementAndGet implements Ledger.
func (m *Memory) IncrementAndGet(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s := m.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := m.now()
	rec, ok := s.records[userID]
	if !ok {
		rec = &chatguard.UserViolationRecord{UserID: userID, CreatedAt: now.UnixMilli()}
		s.records[userID] = rec
	}
	rec.WarningCount++
	rec.History = append(rec.History, now)
	rec.UpdatedAt = now.UnixMilli()
	return rec.WarningCount, nil
}

// Get implements Ledger.
func (m *Memory) Get(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s := m.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[userID]; ok {
		return rec.WarningCount, nil
	}
	return 0, nil
}

// Record implements Recorder. The returned record is a copy.
func (m *Memory) Record(ctx context.Context, userID string) (*chatguard.UserViolationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := m.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, chatguard.ErrUserNotFound
	}
	out := *rec
	out.History = append([]time.Time(nil), rec.History...)
	return &out, nil
}

// Set seeds a user's count, e.g. when migrating from another store.
func (m *Memory) Set(userID string, count int) {
	s := m.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := m.now()
	rec, ok := s.records[userID]
	if !ok {
		rec = &chatguard.UserViolationRecord{UserID: userID, CreatedAt: now.UnixMilli()}
		s.records[userID] = rec
	}
	rec.WarningCount = count
	rec.UpdatedAt = now.UnixMilli()
}

// Reset implements Resetter.
func (m *Memory) Reset(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := m.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}

var (
	_ Ledger   = (*Memory)(nil)
	_ Recorder = (*Memory)(nil)
	_ Resetter = (*Memory)(nil)
)
