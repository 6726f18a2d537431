package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type AuditPGStore struct {
	pool pgBeginner
}

func NewAuditPGStore(pool pgBeginner) ports.Log {
	return &AuditPGStore{pool: pool}
}

func (s *AuditPGStore) Append(ctx context.Context, rec types.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO audit_log (id, actor_id, action, target_type, target_id, metadata, created_at)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6::jsonb, $7)
`, rec.ID, rec.ActorID, rec.Action, rec.TargetType, rec.TargetID, rec.Metadata, rec.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *AuditPGStore) List(ctx context.Context, targetType string, targetID string) ([]types.Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT id, actor_id, action, target_type, target_id, metadata, created_at
FROM audit_log
WHERE ($1 = '' OR target_type = $1)
  AND ($2 = '' OR target_id = $2::text)
ORDER BY created_at, id
`, targetType, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		var rec types.Record
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.Action, &rec.TargetType, &rec.TargetID, &rec.Metadata, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, tx.Commit(ctx)
}
