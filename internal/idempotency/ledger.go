package idempotency

import (
	"context"
	"strings"
	"sync"
)

// Ledger is a best-effort duplicate filter for payment-session processing.
// It short-circuits redelivered webhooks before any provider calls happen.
// It is NOT the correctness guarantee: the unique index on
// orders.stripe_session_id is. A restart or a second instance missing a
// duplicate here is acceptable.
type Ledger interface {
	HasProcessed(ctx context.Context, sessionID string) bool
	MarkProcessed(ctx context.Context, sessionID string)
}

const defaultMaxEntries = 1000

// MemoryLedger is a bounded process-local set. When the bound is exceeded
// only the most-recently-marked half is retained.
type MemoryLedger struct {
	mu         sync.Mutex
	maxEntries int
	seen       map[string]struct{}
	order      []string
}

func NewMemoryLedger(maxEntries int) *MemoryLedger {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryLedger{
		maxEntries: maxEntries,
		seen:       make(map[string]struct{}, maxEntries),
	}
}

func (l *MemoryLedger) HasProcessed(ctx context.Context, sessionID string) bool {
	_ = ctx
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[sessionID]
	return ok
}

func (l *MemoryLedger) MarkProcessed(ctx context.Context, sessionID string) {
	_ = ctx
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[sessionID]; !ok {
		l.seen[sessionID] = struct{}{}
		l.order = append(l.order, sessionID)
	}

	if len(l.order) <= l.maxEntries {
		return
	}

	// keep the newest half; oldest sessions are the least likely to be
	// redelivered again
	keepFrom := len(l.order) / 2
	for _, old := range l.order[:keepFrom] {
		delete(l.seen, old)
	}
	l.order = append([]string(nil), l.order[keepFrom:]...)
}

var _ Ledger = (*MemoryLedger)(nil)
