package ports

import (
	"context"

	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
)

// Sink receives one record per mutating operation. Postgres stores append
// the row inside the mutation transaction themselves; the memory stores
// funnel through a shared Sink instead.
type Sink interface {
	Append(ctx context.Context, rec types.Record) error
}

type Log interface {
	Sink
	List(ctx context.Context, targetType string, targetID string) ([]types.Record, error)
}
