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

const requestColumns = `id, branch_id, person_id, token, status, expires_at, created_at`

func scanRequest(row pgx.Row) (types.ConnectionRequest, error) {
	var r types.ConnectionRequest
	err := row.Scan(&r.ID, &r.BranchID, &r.PersonID, &r.Token, &r.Status, &r.ExpiresAt, &r.CreatedAt)
	return r, err
}

func (s *BranchPGStore) FindRequest(ctx context.Context, branchID string, personID string) (types.ConnectionRequest, error) {
	return s.getRequest(ctx, `WHERE branch_id = $1::uuid AND person_id = $2::uuid`, branchID, personID)
}

func (s *BranchPGStore) GetRequestByToken(ctx context.Context, token string) (types.ConnectionRequest, error) {
	return s.getRequest(ctx, `WHERE token = $1`, token)
}

func (s *BranchPGStore) getRequest(ctx context.Context, where string, args ...any) (types.ConnectionRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.ConnectionRequest{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	r, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM branch_connection_requests `+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ConnectionRequest{}, ports.ErrRequestNotFound
	}
	if err != nil {
		return types.ConnectionRequest{}, err
	}
	return r, tx.Commit(ctx)
}

func (s *BranchPGStore) InsertRequest(ctx context.Context, r types.ConnectionRequest, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO branch_connection_requests (id, branch_id, person_id, token, status, expires_at, created_at)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7)
`, r.ID, r.BranchID, r.PersonID, r.Token, r.Status, r.ExpiresAt, r.CreatedAt); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) ReissueRequest(ctx context.Context, requestID string, token string, expiresAt time.Time, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE branch_connection_requests SET token = $2, expires_at = $3, status = $4
WHERE id = $1::uuid AND status IN ($4, $5)
`, requestID, token, expiresAt, types.RequestPending, types.RequestExpired)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.requestMissingOrResolved(ctx, tx, requestID)
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) MarkRequestExpired(ctx context.Context, requestID string, rec audittypes.Record) error {
	return s.setRequestStatus(ctx, requestID, types.RequestExpired, rec)
}

func (s *BranchPGStore) DeclineRequest(ctx context.Context, requestID string, rec audittypes.Record) error {
	return s.setRequestStatus(ctx, requestID, types.RequestDeclined, rec)
}

func (s *BranchPGStore) setRequestStatus(ctx context.Context, requestID string, to types.RequestStatus, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE branch_connection_requests SET status = $2 WHERE id = $1::uuid AND status = $3
`, requestID, to, types.RequestPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.requestMissingOrResolved(ctx, tx, requestID)
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) requestMissingOrResolved(ctx context.Context, tx pgx.Tx, requestID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM branch_connection_requests WHERE id = $1::uuid)`, requestID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ports.ErrRequestNotFound
	}
	return ports.ErrRequestResolved
}

// AcceptRequest binds the branch to the person while marking the request
// accepted. The request row, the branch row and the person's existing
// binding are all re-checked under locks.
func (s *BranchPGStore) AcceptRequest(ctx context.Context, requestID string, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var r types.ConnectionRequest
	err = tx.QueryRow(ctx, `
SELECT `+requestColumns+` FROM branch_connection_requests WHERE id = $1::uuid FOR UPDATE
`, requestID).Scan(&r.ID, &r.BranchID, &r.PersonID, &r.Token, &r.Status, &r.ExpiresAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.ErrRequestNotFound
	}
	if err != nil {
		return err
	}
	if r.Status != types.RequestPending {
		return ports.ErrRequestResolved
	}

	var boundPerson *string
	err = tx.QueryRow(ctx, `SELECT person_id FROM branches WHERE id = $1::uuid FOR UPDATE`, r.BranchID).Scan(&boundPerson)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.ErrBranchNotFound
	}
	if err != nil {
		return err
	}
	if boundPerson != nil {
		return ports.ErrBranchAlreadyBound
	}
	var personBound bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM branches WHERE person_id = $1::uuid)
`, r.PersonID).Scan(&personBound); err != nil {
		return err
	}
	if personBound {
		return ports.ErrPersonAlreadyBound
	}

	if _, err := tx.Exec(ctx, `
UPDATE branch_connection_requests SET status = $2 WHERE id = $1::uuid
`, requestID, types.RequestAccepted); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
UPDATE branches SET person_id = $2::uuid WHERE id = $1::uuid
`, r.BranchID, r.PersonID); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const inviteColumns = `id, branch_id, email, token, status, expires_at, created_at`

func scanInvite(row pgx.Row) (types.Invite, error) {
	var i types.Invite
	err := row.Scan(&i.ID, &i.BranchID, &i.Email, &i.Token, &i.Status, &i.ExpiresAt, &i.CreatedAt)
	return i, err
}

func (s *BranchPGStore) FindInvite(ctx context.Context, branchID string, email string) (types.Invite, error) {
	return s.getInvite(ctx, `WHERE branch_id = $1::uuid AND email = $2`, branchID, email)
}

func (s *BranchPGStore) GetInviteByToken(ctx context.Context, token string) (types.Invite, error) {
	return s.getInvite(ctx, `WHERE token = $1`, token)
}

func (s *BranchPGStore) getInvite(ctx context.Context, where string, args ...any) (types.Invite, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Invite{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	i, err := scanInvite(tx.QueryRow(ctx, `SELECT `+inviteColumns+` FROM invites `+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Invite{}, ports.ErrInviteNotFound
	}
	if err != nil {
		return types.Invite{}, err
	}
	return i, tx.Commit(ctx)
}

func (s *BranchPGStore) InsertInvite(ctx context.Context, i types.Invite, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO invites (id, branch_id, email, token, status, expires_at, created_at)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7)
`, i.ID, i.BranchID, i.Email, i.Token, i.Status, i.ExpiresAt, i.CreatedAt); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) ReissueInvite(ctx context.Context, inviteID string, token string, expiresAt time.Time, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE invites SET token = $2, expires_at = $3, status = $4
WHERE id = $1::uuid AND status IN ($4, $5)
`, inviteID, token, expiresAt, types.RequestPending, types.RequestExpired)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.inviteMissingOrResolved(ctx, tx, inviteID)
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) MarkInviteExpired(ctx context.Context, inviteID string, rec audittypes.Record) error {
	return s.setInviteStatus(ctx, inviteID, types.RequestExpired, rec)
}

func (s *BranchPGStore) DeclineInvite(ctx context.Context, inviteID string, rec audittypes.Record) error {
	return s.setInviteStatus(ctx, inviteID, types.RequestDeclined, rec)
}

func (s *BranchPGStore) setInviteStatus(ctx context.Context, inviteID string, to types.RequestStatus, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE invites SET status = $2 WHERE id = $1::uuid AND status = $3
`, inviteID, to, types.RequestPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.inviteMissingOrResolved(ctx, tx, inviteID)
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BranchPGStore) inviteMissingOrResolved(ctx context.Context, tx pgx.Tx, inviteID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invites WHERE id = $1::uuid)`, inviteID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ports.ErrInviteNotFound
	}
	return ports.ErrRequestResolved
}

func (s *BranchPGStore) AcceptInvite(ctx context.Context, inviteID string, member types.BranchMember, rec audittypes.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE invites SET status = $2 WHERE id = $1::uuid AND status = $3
`, inviteID, types.RequestAccepted, types.RequestPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.inviteMissingOrResolved(ctx, tx, inviteID)
	}
	if err := insertMember(ctx, tx, member); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
