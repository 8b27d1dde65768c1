package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Recorder defines a sink for transaction records.
type Recorder interface {
	Put(ctx context.Context, rec Record) error
}

// PendingStore exposes the records a finalizer still has to resolve.
type PendingStore interface {
	Pending(ctx context.Context) ([]Record, error)
	Update(ctx context.Context, rec Record) error
}

// MemoryLog keeps records in process, insertion-ordered. It is the primary
// log; file and database sinks mirror it for persistence.
type MemoryLog struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{records: make(map[string]Record)}
}

// Put stores a record, replacing any previous version with the same ID.
func (l *MemoryLog) Put(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record has no id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[rec.ID]; !ok {
		l.order = append(l.order, rec.ID)
	}
	l.records[rec.ID] = rec
	return nil
}

// Update replaces a known record.
func (l *MemoryLog) Update(_ context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[rec.ID]; !ok {
		return fmt.Errorf("record %s is not in the log", rec.ID)
	}
	l.records[rec.ID] = rec
	return nil
}

// Pending returns the records still awaiting a receipt, oldest first.
func (l *MemoryLog) Pending(_ context.Context) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var pending []Record
	for _, id := range l.order {
		if rec := l.records[id]; rec.Status == StatusPending {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// All returns every record, oldest first.
func (l *MemoryLog) All() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	all := make([]Record, 0, len(l.order))
	for _, id := range l.order {
		all = append(all, l.records[id])
	}
	return all
}

// HasPendingApproval reports whether an approval for the token and spender
// is already in flight, so callers do not submit a second one.
func (l *MemoryLog) HasPendingApproval(token, spender common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, rec := range l.records {
		if rec.Kind == KindApproval && rec.Status == StatusPending && rec.Token == token && rec.Spender == spender {
			return true
		}
	}
	return false
}

// Tee fans every Put out to all sinks, failing on the first error.
type Tee struct {
	sinks []Recorder
}

// NewTee combines recorders into one sink. Nil entries are skipped.
func NewTee(sinks ...Recorder) *Tee {
	t := &Tee{}
	for _, s := range sinks {
		if s != nil {
			t.sinks = append(t.sinks, s)
		}
	}
	return t
}

func (t *Tee) Put(ctx context.Context, rec Record) error {
	for _, s := range t.sinks {
		if err := s.Put(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
