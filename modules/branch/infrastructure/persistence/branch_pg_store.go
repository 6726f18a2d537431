package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type BranchPGStore struct {
	pool pgBeginner
}

func NewBranchPGStore(pool pgBeginner) *BranchPGStore {
	return &BranchPGStore{pool: pool}
}

var (
	_ ports.Store        = (*BranchPGStore)(nil)
	_ ports.RequestStore = (*BranchPGStore)(nil)
)

func appendAudit(ctx context.Context, tx pgx.Tx, rec audittypes.Record) error {
	_, err := tx.Exec(ctx, `
INSERT INTO audit_log (id, actor_id, action, target_type, target_id, metadata, created_at)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6::jsonb, $7)
`, rec.ID, rec.ActorID, rec.Action, rec.TargetType, rec.TargetID, rec.Metadata, rec.CreatedAt)
	return err
}

const branchColumns = `
id, tree_id, owner_id, title, COALESCE(description, ''), status,
archived_at, COALESCE(archived_by::text, ''), COALESCE(person_id::text, ''), created_at`

func scanBranch(row pgx.Row) (types.Branch, error) {
	var b types.Branch
	err := row.Scan(&b.ID, &b.TreeID, &b.OwnerID, &b.Title, &b.Description, &b.Status,
		&b.ArchivedAt, &b.ArchivedBy, &b.PersonID, &b.CreatedAt)
	return b, err
}

const entryColumns = `
id, branch_id, author_id, text, COALESCE(media_url, ''), COALESCE(audio_url, ''), status,
withdrawn_at, hidden_at, COALESCE(hidden_by::text, ''), glow_count, created_at`

func scanEntry(row pgx.Row) (types.Entry, error) {
	var e types.Entry
	err := row.Scan(&e.ID, &e.BranchID, &e.AuthorID, &e.Text, &e.MediaURL, &e.AudioURL, &e.Status,
		&e.WithdrawnAt, &e.HiddenAt, &e.HiddenBy, &e.GlowCount, &e.CreatedAt)
	return e, err
}

func (s *BranchPGStore) GetBranch(ctx context.Context, branchID string) (types.Branch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Branch{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	b, err := scanBranch(tx.QueryRow(ctx, `SELECT `+branchColumns+` FROM branches WHERE id = $1::uuid`, branchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Branch{}, ports.ErrBranchNotFound
	}
	if err != nil {
		return types.Branch{}, err
	}
	return b, tx.Commit(ctx)
}

func (s *BranchPGStore) CreateBranch(ctx context.Context, b types.Branch, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO branches (id, tree_id, owner_id, title, description, status, created_at)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, NULLIF($5, ''), $6, $7)
`, b.ID, b.TreeID, b.OwnerID, b.Title, b.Description, b.Status, b.CreatedAt); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) ArchiveBranch(ctx context.Context, branchID string, at time.Time, by string, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE branches SET status = $2, archived_at = $3, archived_by = $4::uuid
WHERE id = $1::uuid AND status = $5
`, branchID, types.BranchArchived, at, by, types.BranchActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM branches WHERE id = $1::uuid)`, branchID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ports.ErrBranchNotFound
		}
		return ports.ErrBranchStateChanged
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) ListArchivedBranches(ctx context.Context, ownerID string) ([]types.Branch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT `+branchColumns+` FROM branches WHERE owner_id = $1::uuid AND status = $2
`, ownerID, types.BranchArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, tx.Commit(ctx)
}

func (s *BranchPGStore) GetPreferences(ctx context.Context, branchID string) (types.BranchPreferences, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.BranchPreferences{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var p types.BranchPreferences
	err = tx.QueryRow(ctx, `
SELECT branch_id, taggable, require_approval, show_in_cross_shares
FROM branch_preferences WHERE branch_id = $1::uuid
`, branchID).Scan(&p.BranchID, &p.Taggable, &p.RequireApproval, &p.ShowInCrossShares)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.BranchPreferences{}, ports.ErrPrefsNotFound
	}
	if err != nil {
		return types.BranchPreferences{}, err
	}
	return p, tx.Commit(ctx)
}

func (s *BranchPGStore) UpsertPreferences(ctx context.Context, prefs types.BranchPreferences, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO branch_preferences (branch_id, taggable, require_approval, show_in_cross_shares)
VALUES ($1::uuid, $2, $3, $4)
ON CONFLICT (branch_id) DO UPDATE SET taggable = $2, require_approval = $3, show_in_cross_shares = $4
`, prefs.BranchID, prefs.Taggable, prefs.RequireApproval, prefs.ShowInCrossShares); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) GetEntry(ctx context.Context, entryID string) (types.Entry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Entry{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	e, err := scanEntry(tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1::uuid`, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Entry{}, ports.ErrEntryNotFound
	}
	if err != nil {
		return types.Entry{}, err
	}
	return e, tx.Commit(ctx)
}

// adjustMemoryCount moves the bound person's counter; with enforceLimit it
// locks the row and refuses when the limit is already spent.
func adjustMemoryCount(ctx context.Context, tx pgx.Tx, personID string, delta int, enforceLimit bool) error {
	if enforceLimit {
		var count int
		var limit *int
		err := tx.QueryRow(ctx, `
SELECT memory_count, memory_limit FROM persons WHERE id = $1::uuid FOR UPDATE
`, personID).Scan(&count, &limit)
		if err != nil {
			return err
		}
		if limit != nil && count >= *limit {
			return ports.ErrMemoryLimitReached
		}
	}
	_, err := tx.Exec(ctx, `UPDATE persons SET memory_count = memory_count + $2 WHERE id = $1::uuid`, personID, delta)
	return err
}

func (s *BranchPGStore) CreateEntry(ctx context.Context, e types.Entry, origin types.MemoryBranchLink, personID string, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if personID != "" {
		if err := adjustMemoryCount(ctx, tx, personID, +1, true); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO entries (id, branch_id, author_id, text, media_url, audio_url, status, glow_count, created_at)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, NULLIF($5, ''), NULLIF($6, ''), $7, 0, $8)
`, e.ID, e.BranchID, e.AuthorID, e.Text, e.MediaURL, e.AudioURL, e.Status, e.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO memory_branch_links (id, entry_id, branch_id, role, visibility, created_at)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6)
`, origin.ID, origin.EntryID, origin.BranchID, origin.Role, origin.Visibility, origin.CreatedAt); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) UpdateEntryState(ctx context.Context, e types.Entry, from types.EntryStatus, personID string, personDelta int, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE entries SET status = $2, withdrawn_at = $3, hidden_at = $4, hidden_by = NULLIF($5, '')::uuid
WHERE id = $1::uuid AND status = $6
`, e.ID, e.Status, e.WithdrawnAt, e.HiddenAt, e.HiddenBy, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM entries WHERE id = $1::uuid)`, e.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ports.ErrEntryNotFound
		}
		return ports.ErrEntryStateChanged
	}
	if personID != "" && personDelta != 0 {
		if err := adjustMemoryCount(ctx, tx, personID, personDelta, false); err != nil {
			return err
		}
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) HardDeleteEntry(ctx context.Context, entryID string, from types.EntryStatus, personID string, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var status types.EntryStatus
	err = tx.QueryRow(ctx, `SELECT status FROM entries WHERE id = $1::uuid FOR UPDATE`, entryID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.ErrEntryNotFound
	}
	if err != nil {
		return err
	}
	if status != from {
		return ports.ErrEntryStateChanged
	}

	if _, err := tx.Exec(ctx, `DELETE FROM memory_branch_links WHERE entry_id = $1::uuid`, entryID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM entries WHERE id = $1::uuid`, entryID); err != nil {
		return err
	}
	if personID != "" {
		if err := adjustMemoryCount(ctx, tx, personID, -1, false); err != nil {
			return err
		}
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) IncrementGlow(ctx context.Context, entryID string, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE entries SET glow_count = glow_count + 1 WHERE id = $1::uuid AND status = $2
`, entryID, types.EntryActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM entries WHERE id = $1::uuid)`, entryID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ports.ErrEntryNotFound
		}
		return ports.ErrEntryStateChanged
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) ListEntriesByAuthor(ctx context.Context, authorID string, status types.EntryStatus) ([]types.Entry, error) {
	return s.listEntries(ctx, `WHERE author_id = $1::uuid AND status = $2`, authorID, status)
}

func (s *BranchPGStore) ListHiddenEntriesForOwner(ctx context.Context, ownerID string) ([]types.Entry, error) {
	return s.listEntries(ctx, `
JOIN branches b ON b.id = entries.branch_id
WHERE b.owner_id = $1::uuid AND entries.status = $2`, ownerID, types.EntryHidden)
}

func (s *BranchPGStore) listEntries(ctx context.Context, tail string, args ...any) ([]types.Entry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	cols := `
entries.id, entries.branch_id, entries.author_id, entries.text,
COALESCE(entries.media_url, ''), COALESCE(entries.audio_url, ''), entries.status,
entries.withdrawn_at, entries.hidden_at, COALESCE(entries.hidden_by::text, ''),
entries.glow_count, entries.created_at`
	rows, err := tx.Query(ctx, `SELECT `+cols+` FROM entries `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, tx.Commit(ctx)
}

func (s *BranchPGStore) GetLink(ctx context.Context, entryID string, branchID string) (types.MemoryBranchLink, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.MemoryBranchLink{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var l types.MemoryBranchLink
	err = tx.QueryRow(ctx, `
SELECT id, entry_id, branch_id, role, visibility, created_at
FROM memory_branch_links WHERE entry_id = $1::uuid AND branch_id = $2::uuid
`, entryID, branchID).Scan(&l.ID, &l.EntryID, &l.BranchID, &l.Role, &l.Visibility, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.MemoryBranchLink{}, ports.ErrLinkNotFound
	}
	if err != nil {
		return types.MemoryBranchLink{}, err
	}
	return l, tx.Commit(ctx)
}

func (s *BranchPGStore) CreateLink(ctx context.Context, l types.MemoryBranchLink, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var exists bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM memory_branch_links WHERE entry_id = $1::uuid AND branch_id = $2::uuid)
`, l.EntryID, l.BranchID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ports.ErrLinkExists
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO memory_branch_links (id, entry_id, branch_id, role, visibility, created_at)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6)
`, l.ID, l.EntryID, l.BranchID, l.Role, l.Visibility, l.CreatedAt); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) SetLinkVisibility(ctx context.Context, entryID string, branchID string, v types.LinkVisibility, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var role types.LinkRole
	err = tx.QueryRow(ctx, `
SELECT role FROM memory_branch_links WHERE entry_id = $1::uuid AND branch_id = $2::uuid FOR UPDATE
`, entryID, branchID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.ErrLinkNotFound
	}
	if err != nil {
		return err
	}
	if role == types.LinkOrigin {
		return ports.ErrOriginLinkImmutable
	}

	if _, err := tx.Exec(ctx, `
UPDATE memory_branch_links SET visibility = $3 WHERE entry_id = $1::uuid AND branch_id = $2::uuid
`, entryID, branchID, v); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) GetMember(ctx context.Context, branchID string, userID string) (types.BranchMember, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.BranchMember{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var m types.BranchMember
	err = tx.QueryRow(ctx, `
SELECT id, branch_id, user_id, status FROM branch_members
WHERE branch_id = $1::uuid AND user_id = $2::uuid
`, branchID, userID).Scan(&m.ID, &m.BranchID, &m.UserID, &m.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.BranchMember{}, ports.ErrMemberNotFound
	}
	if err != nil {
		return types.BranchMember{}, err
	}
	return m, tx.Commit(ctx)
}

func (s *BranchPGStore) AddMember(ctx context.Context, m types.BranchMember, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := insertMember(ctx, tx, m); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertMember(ctx context.Context, tx pgx.Tx, m types.BranchMember) error {
	var exists bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM branch_members WHERE branch_id = $1::uuid AND user_id = $2::uuid)
`, m.BranchID, m.UserID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ports.ErrMemberExists
	}
	_, err := tx.Exec(ctx, `
INSERT INTO branch_members (id, branch_id, user_id, status)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4)
`, m.ID, m.BranchID, m.UserID, m.Status)
	return err
}
