// Package utils holds small helpers shared by the moderation packages.
package utils

import (
	"strconv"
	"sync/atomic"
	"time"
)

const (
	seqBits  = 12
	nodeBits = 10
	seqMask  = 1<<seqBits - 1
	nodeMask = 1<<nodeBits - 1
)

// idEpoch is the zero point of the millisecond field.
var idEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// IDGenerator issues time-ordered IDs for violation history rows. An ID packs
// milliseconds since 2024-01-01, a 10 bit node and a 12 bit sequence, and
// is rendered in base 36.
type IDGenerator struct {
	// state holds the last issued (millis << seqBits | seq).
	state atomic.Int64
	node  int64
	now   func() time.Time
}

// NewIDGenerator creates a generator for node 0.
func NewIDGenerator() *IDGenerator {
	return NewIDGeneratorForNode(0)
}

// NewIDGeneratorForNode creates a generator for node; only the low 10 bits are used.
func NewIDGeneratorForNode(node int64) *IDGenerator {
	return &IDGenerator{node: node & nodeMask, now: time.Now}
}

// next reserves the next (millis, seq) pair. When the sequence for the
// current millisecond runs out it borrows from the following one, so the
// clock never has to be waited on and a clock stepping back cannot repeat.
func (g *IDGenerator) next() (int64, int64) {
	for {
		old := g.state.Load()
		ms := g.now().UnixMilli() - idEpoch
		next := ms << seqBits
		if next <= old {
			next = old + 1
		}
		if g.state.CompareAndSwap(old, next) {
			return next >> seqBits, next & seqMask
		}
	}
}

// Generate returns the next ID.
func (g *IDGenerator) Generate() string {
	ms, seq := g.next()
	return strconv.FormatInt(ms<<(nodeBits+seqBits)|g.node<<seqBits|seq, 36)
}

// GenerateWithPrefix returns prefix + "_" + Generate().
func (g *IDGenerator) GenerateWithPrefix(prefix string) string {
	return prefix + "_" + g.Generate()
}
