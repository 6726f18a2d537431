package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/uuidv7"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type GrovePGStore struct {
	pool pgBeginner
}

func NewGrovePGStore(pool pgBeginner) ports.GroveStore {
	return &GrovePGStore{pool: pool}
}

func appendAudit(ctx context.Context, tx pgx.Tx, rec audittypes.Record) error {
	_, err := tx.Exec(ctx, `
INSERT INTO audit_log (id, actor_id, action, target_type, target_id, metadata, created_at)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6::jsonb, $7)
`, rec.ID, rec.ActorID, rec.Action, rec.TargetType, rec.TargetID, rec.Metadata, rec.CreatedAt)
	return err
}

func (s *GrovePGStore) GetGrove(ctx context.Context, groveID string) (types.Grove, error) {
	return s.getGrove(ctx, `WHERE id = $1::uuid`, groveID)
}

func (s *GrovePGStore) GetOpenGrove(ctx context.Context) (types.Grove, error) {
	return s.getGrove(ctx, `WHERE is_open_grove`)
}

func (s *GrovePGStore) getGrove(ctx context.Context, where string, args ...any) (types.Grove, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Grove{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var g types.Grove
	err = tx.QueryRow(ctx, `
SELECT id, owner_id, name, tree_limit, tree_count, status, is_open_grove
FROM groves `+where,
		args...).Scan(&g.ID, &g.OwnerID, &g.Name, &g.TreeLimit, &g.TreeCount, &g.Status, &g.IsOpenGrove)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Grove{}, ports.ErrGroveNotFound
	}
	if err != nil {
		return types.Grove{}, err
	}
	return g, tx.Commit(ctx)
}

func (s *GrovePGStore) GetTree(ctx context.Context, treeID string) (types.Tree, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Tree{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var t types.Tree
	err = tx.QueryRow(ctx, `
SELECT id, grove_id, name, status, is_legacy, has_own_subscription
FROM trees WHERE id = $1::uuid
`, treeID).Scan(&t.ID, &t.GroveID, &t.Name, &t.Status, &t.IsLegacy, &t.HasOwnSubscription)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Tree{}, ports.ErrTreeNotFound
	}
	if err != nil {
		return types.Tree{}, err
	}
	return t, tx.Commit(ctx)
}

func (s *GrovePGStore) GetPersonRef(ctx context.Context, personID string) (ports.PersonRef, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ports.PersonRef{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var ref ports.PersonRef
	err = tx.QueryRow(ctx, `
SELECT id, owner_id, death_date IS NOT NULL, tree_id
FROM persons WHERE id = $1::uuid
`, personID).Scan(&ref.ID, &ref.OwnerID, &ref.Legacy, &ref.TreeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.PersonRef{}, ports.ErrPersonNotFound
	}
	if err != nil {
		return ports.PersonRef{}, err
	}
	return ref, tx.Commit(ctx)
}

func (s *GrovePGStore) GetOriginalMembership(ctx context.Context, personID string) (types.Membership, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Membership{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var m types.Membership
	err = tx.QueryRow(ctx, `
SELECT id, grove_id, person_id, is_original, adoption_type, status
FROM grove_memberships WHERE person_id = $1::uuid AND is_original
`, personID).Scan(&m.ID, &m.GroveID, &m.PersonID, &m.IsOriginal, &m.AdoptionType, &m.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Membership{}, ports.ErrMembershipNotFound
	}
	if err != nil {
		return types.Membership{}, err
	}
	return m, tx.Commit(ctx)
}

func (s *GrovePGStore) ListMembershipsForPerson(ctx context.Context, personID string) ([]types.Membership, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT id, grove_id, person_id, is_original, adoption_type, status
FROM grove_memberships WHERE person_id = $1::uuid
`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Membership
	for rows.Next() {
		var m types.Membership
		if err := rows.Scan(&m.ID, &m.GroveID, &m.PersonID, &m.IsOriginal, &m.AdoptionType, &m.Status); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, tx.Commit(ctx)
}

func (s *GrovePGStore) SetGroveStatus(ctx context.Context, groveID string, status types.GroveStatus, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `UPDATE groves SET status = $2 WHERE id = $1::uuid`, groveID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrGroveNotFound
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *GrovePGStore) Transplant(ctx context.Context, treeID string, destGroveID string, adjustCounters bool, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var srcGroveID string
	err = tx.QueryRow(ctx, `SELECT grove_id FROM trees WHERE id = $1::uuid FOR UPDATE`, treeID).Scan(&srcGroveID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.ErrTreeNotFound
	}
	if err != nil {
		return err
	}

	if adjustCounters {
		// Lock the destination counter row and re-check headroom so two
		// concurrent transplants cannot both consume the last slot.
		var count, limit int
		err = tx.QueryRow(ctx, `SELECT tree_count, tree_limit FROM groves WHERE id = $1::uuid FOR UPDATE`, destGroveID).Scan(&count, &limit)
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.ErrGroveNotFound
		}
		if err != nil {
			return err
		}
		if count >= limit {
			return ports.ErrCapacityExceeded
		}
		if _, err := tx.Exec(ctx, `UPDATE groves SET tree_count = tree_count - 1 WHERE id = $1::uuid`, srcGroveID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE groves SET tree_count = tree_count + 1 WHERE id = $1::uuid`, destGroveID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE trees SET grove_id = $2::uuid WHERE id = $1::uuid`, treeID, destGroveID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
UPDATE grove_memberships m SET grove_id = $2::uuid
FROM persons p
WHERE m.person_id = p.id AND p.tree_id = $1::uuid AND m.is_original AND m.grove_id = $3::uuid
`, treeID, destGroveID, srcGroveID); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *GrovePGStore) Adopt(ctx context.Context, personID string, treeID string, destGroveID string, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var count, limit int
	err = tx.QueryRow(ctx, `SELECT tree_count, tree_limit FROM groves WHERE id = $1::uuid FOR UPDATE`, destGroveID).Scan(&count, &limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.ErrGroveNotFound
	}
	if err != nil {
		return err
	}
	if count >= limit {
		return ports.ErrCapacityExceeded
	}

	tag, err := tx.Exec(ctx, `
DELETE FROM grove_memberships WHERE person_id = $1::uuid AND is_original
`, personID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrMembershipNotFound
	}

	id, err := uuidv7.NewString()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO grove_memberships (id, grove_id, person_id, is_original, adoption_type, status)
VALUES ($1::uuid, $2::uuid, $3::uuid, true, $4, $5)
`, id, destGroveID, personID, types.AdoptionAdopted, types.MembershipActive); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE trees SET grove_id = $2::uuid WHERE id = $1::uuid`, treeID, destGroveID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE groves SET tree_count = tree_count + 1 WHERE id = $1::uuid`, destGroveID); err != nil {
		return err
	}
	// Adoption removes metered constraints.
	if _, err := tx.Exec(ctx, `UPDATE persons SET memory_limit = NULL WHERE id = $1::uuid`, personID); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *GrovePGStore) InsertLinkedMemberships(ctx context.Context, memberships []types.Membership, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	for _, m := range memberships {
		var exists bool
		if err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM grove_memberships WHERE person_id = $1::uuid AND grove_id = $2::uuid)
`, m.PersonID, m.GroveID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ports.ErrMembershipExists
		}
	}
	for _, m := range memberships {
		if _, err := tx.Exec(ctx, `
INSERT INTO grove_memberships (id, grove_id, person_id, is_original, adoption_type, status)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6)
`, m.ID, m.GroveID, m.PersonID, m.IsOriginal, m.AdoptionType, m.Status); err != nil {
			return err
		}
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
