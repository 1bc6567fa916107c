package audit

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"walletd.org/internal/ids"
)

// Entry records one admin balance override: who changed what, from which
// value to which value, and when.
type Entry struct {
	ID         string          `json:"id"`
	OccurredAt time.Time       `json:"occurred_at"`
	ActorID    string          `json:"actor_id"`
	Action     string          `json:"action"`
	TargetID   string          `json:"target_id"`
	OldValue   decimal.Decimal `json:"old_value"`
	NewValue   decimal.Decimal `json:"new_value"`
}

// Trail is an append-only in-memory record kept for the lifetime of the
// process.
type Trail struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewTrail returns an empty trail.
func NewTrail() *Trail {
	return &Trail{}
}

// Record appends the entry, filling in ID and timestamp when absent, and
// mirrors it to the audit log.
func (t *Trail) Record(ctx context.Context, e Entry) Entry {
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()

	_ = LogEvent(ctx, e.Action, map[string]any{
		"actor_id":  e.ActorID,
		"target_id": e.TargetID,
		"old_value": e.OldValue.String(),
		"new_value": e.NewValue.String(),
	})
	return e
}

// Entries returns a copy of the recorded entries in append order.
func (t *Trail) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
