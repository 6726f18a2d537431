package persistence

import (
	"context"
	"sync"

	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
)

type MemoryLog struct {
	mu   sync.Mutex
	recs []types.Record
}

func NewMemoryLog() *MemoryLog { return &MemoryLog{} }

var _ ports.Log = (*MemoryLog)(nil)

func (l *MemoryLog) Append(_ context.Context, rec types.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
	return nil
}

func (l *MemoryLog) List(_ context.Context, targetType string, targetID string) ([]types.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.Record
	for _, r := range l.recs {
		if targetType != "" && r.TargetType != targetType {
			continue
		}
		if targetID != "" && r.TargetID != targetID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// All returns every record in append order. Test helper.
func (l *MemoryLog) All() []types.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.Record, len(l.recs))
	copy(out, l.recs)
	return out
}
