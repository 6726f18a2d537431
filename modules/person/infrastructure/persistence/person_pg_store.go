package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	grovetypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PersonPGStore struct {
	pool pgBeginner
}

func NewPersonPGStore(pool pgBeginner) ports.PersonStore {
	return &PersonPGStore{pool: pool}
}

func appendAudit(ctx context.Context, tx pgx.Tx, rec audittypes.Record) error {
	_, err := tx.Exec(ctx, `
INSERT INTO audit_log (id, actor_id, action, target_type, target_id, metadata, created_at)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6::jsonb, $7)
`, rec.ID, rec.ActorID, rec.Action, rec.TargetType, rec.TargetID, rec.Metadata, rec.CreatedAt)
	return err
}

const personColumns = `
id, tree_id, name,
COALESCE(to_char(birth_date, 'YYYY-MM-DD'), ''),
COALESCE(to_char(death_date, 'YYYY-MM-DD'), ''),
discovery, owner_id, COALESCE(moderator_id::text, ''), COALESCE(trustee_id::text, ''),
trustee_until, memory_count, memory_limit`

func scanPerson(row pgx.Row) (types.Person, error) {
	var p types.Person
	err := row.Scan(&p.ID, &p.TreeID, &p.Name, &p.BirthDate, &p.DeathDate,
		&p.Discovery, &p.OwnerID, &p.ModeratorID, &p.TrusteeID,
		&p.TrusteeUntil, &p.MemoryCount, &p.MemoryLimit)
	return p, err
}

func (s *PersonPGStore) GetPerson(ctx context.Context, personID string) (types.Person, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Person{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	p, err := scanPerson(tx.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1::uuid`, personID))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Person{}, ports.ErrPersonNotFound
	}
	if err != nil {
		return types.Person{}, err
	}
	return p, tx.Commit(ctx)
}

func (s *PersonPGStore) CreatePerson(ctx context.Context, p types.Person, tree grovetypes.Tree, membership grovetypes.Membership, meterCapacity bool, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if meterCapacity {
		var count, limit int
		err = tx.QueryRow(ctx, `SELECT tree_count, tree_limit FROM groves WHERE id = $1::uuid FOR UPDATE`, tree.GroveID).Scan(&count, &limit)
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.ErrGroveNotFound
		}
		if err != nil {
			return err
		}
		if count >= limit {
			return ports.ErrCapacityFull
		}
		if _, err := tx.Exec(ctx, `UPDATE groves SET tree_count = tree_count + 1 WHERE id = $1::uuid`, tree.GroveID); err != nil {
			return err
		}
	} else {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM groves WHERE id = $1::uuid)`, tree.GroveID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ports.ErrGroveNotFound
		}
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO trees (id, grove_id, name, status, is_legacy, has_own_subscription)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6)
`, tree.ID, tree.GroveID, tree.Name, tree.Status, tree.IsLegacy, tree.HasOwnSubscription); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO persons (id, tree_id, name, birth_date, death_date, discovery, owner_id, memory_count, memory_limit)
VALUES ($1::uuid, $2::uuid, $3, NULLIF($4, '')::date, NULLIF($5, '')::date, $6, $7::uuid, 0, $8)
`, p.ID, p.TreeID, p.Name, p.BirthDate, p.DeathDate, p.Discovery, p.OwnerID, p.MemoryLimit); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO grove_memberships (id, grove_id, person_id, is_original, adoption_type, status)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6)
`, membership.ID, membership.GroveID, membership.PersonID, membership.IsOriginal, membership.AdoptionType, membership.Status); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PersonPGStore) ClearTrustee(ctx context.Context, personID string, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE persons SET trustee_id = NULL, trustee_until = NULL WHERE id = $1::uuid
`, personID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrPersonNotFound
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PersonPGStore) FindActiveRoot(ctx context.Context, pair types.RootPair) (types.PersonRoot, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.PersonRoot{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var root types.PersonRoot
	err = tx.QueryRow(ctx, `
SELECT id, person_a, person_b, status, created_at
FROM person_roots WHERE person_a = $1::uuid AND person_b = $2::uuid AND status = $3
`, pair.A, pair.B, types.RootActive).Scan(&root.ID, &root.Pair.A, &root.Pair.B, &root.Status, &root.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.PersonRoot{}, ports.ErrRootNotFound
	}
	if err != nil {
		return types.PersonRoot{}, err
	}
	return root, tx.Commit(ctx)
}

func (s *PersonPGStore) CreateRoot(ctx context.Context, root types.PersonRoot, memberships []grovetypes.Membership, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	// Re-check inside the transaction so two concurrent roots of the same
	// pair cannot both land.
	var exists bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM person_roots WHERE person_a = $1::uuid AND person_b = $2::uuid AND status = $3 FOR UPDATE)
`, root.Pair.A, root.Pair.B, types.RootActive).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ports.ErrRootExists
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO person_roots (id, person_a, person_b, status, created_at)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5)
`, root.ID, root.Pair.A, root.Pair.B, root.Status, root.CreatedAt); err != nil {
		return err
	}
	for _, m := range memberships {
		if _, err := tx.Exec(ctx, `
INSERT INTO grove_memberships (id, grove_id, person_id, is_original, adoption_type, status)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6)
ON CONFLICT (grove_id, person_id) DO NOTHING
`, m.ID, m.GroveID, m.PersonID, m.IsOriginal, m.AdoptionType, m.Status); err != nil {
			return err
		}
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PersonPGStore) OriginalGroveID(ctx context.Context, personID string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var groveID string
	err = tx.QueryRow(ctx, `
SELECT grove_id FROM grove_memberships WHERE person_id = $1::uuid AND is_original
`, personID).Scan(&groveID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ports.ErrPersonNotFound
	}
	if err != nil {
		return "", err
	}
	return groveID, tx.Commit(ctx)
}

func (s *PersonPGStore) OpenGroveID(ctx context.Context) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var id string
	err = tx.QueryRow(ctx, `SELECT id FROM groves WHERE is_open_grove`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ports.ErrGroveNotFound
	}
	if err != nil {
		return "", err
	}
	return id, tx.Commit(ctx)
}

func (s *PersonPGStore) ListLegacyByDeathDate(ctx context.Context, deathDate string) ([]types.Person, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT `+personColumns+` FROM persons WHERE death_date = $1::date
`, deathDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, tx.Commit(ctx)
}
