package incident

import (
	"context"
	"slices"
	"sync"
)

// Ledger is the append-only incident history.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ordering: All returns incidents in the order Append completed.
type Ledger interface {
	Append(ctx context.Context, inc Incident) error
	All(ctx context.Context) ([]Incident, error)
}

// MemoryLedger keeps incidents in process memory.
type MemoryLedger struct {
	mu        sync.RWMutex
	incidents []Incident
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// Append records inc.
func (l *MemoryLedger) Append(_ context.Context, inc Incident) error {
	l.mu.Lock()
	l.incidents = append(l.incidents, inc)
	l.mu.Unlock()
	return nil
}

// All returns a copy of the history.
func (l *MemoryLedger) All(_ context.Context) ([]Incident, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.incidents), nil
}

// Len returns the number of recorded incidents.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.incidents)
}
