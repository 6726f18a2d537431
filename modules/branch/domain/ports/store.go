package ports

import (
	"context"
	"errors"
	"time"

	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/types"
)

var (
	ErrBranchNotFound      = errors.New("branch_not_found")
	ErrEntryNotFound       = errors.New("entry_not_found")
	ErrLinkNotFound        = errors.New("link_not_found")
	ErrPrefsNotFound       = errors.New("prefs_not_found")
	ErrMemberNotFound      = errors.New("member_not_found")
	ErrMemberExists        = errors.New("member_exists")
	ErrRequestNotFound     = errors.New("request_not_found")
	ErrInviteNotFound      = errors.New("invite_not_found")
	ErrEntryStateChanged   = errors.New("entry_state_changed")
	ErrBranchStateChanged  = errors.New("branch_state_changed")
	ErrLinkExists          = errors.New("link_exists")
	ErrOriginLinkImmutable = errors.New("origin_link_immutable")
	ErrRequestResolved     = errors.New("request_resolved")
	ErrBranchAlreadyBound  = errors.New("branch_already_bound")
	ErrPersonAlreadyBound  = errors.New("person_already_bound")
	ErrMemoryLimitReached  = errors.New("memory_limit_reached")
)

// Store owns branches, entries, links and members. State transitions
// re-check the expected prior state inside the transaction and fail with
// the *StateChanged sentinels when a concurrent writer got there first.
type Store interface {
	GetBranch(ctx context.Context, branchID string) (types.Branch, error)
	CreateBranch(ctx context.Context, b types.Branch, rec audittypes.Record) error

	// ArchiveBranch stamps the archive fields after re-checking the branch
	// is still active.
	ArchiveBranch(ctx context.Context, branchID string, at time.Time, by string, rec audittypes.Record) error
	ListArchivedBranches(ctx context.Context, ownerID string) ([]types.Branch, error)

	// GetPreferences returns ErrPrefsNotFound for a branch that never set
	// any; callers apply the permissive defaults.
	GetPreferences(ctx context.Context, branchID string) (types.BranchPreferences, error)
	UpsertPreferences(ctx context.Context, prefs types.BranchPreferences, rec audittypes.Record) error

	GetEntry(ctx context.Context, entryID string) (types.Entry, error)

	// CreateEntry inserts the entry with its origin link. When personID is
	// set the bound person's memory counter is incremented in the same
	// transaction, and a non-null memory limit is enforced there.
	CreateEntry(ctx context.Context, e types.Entry, origin types.MemoryBranchLink, personID string, rec audittypes.Record) error

	// UpdateEntryState writes e's status and stamp fields after re-checking
	// the current status equals from. personDelta adjusts the bound
	// person's memory counter (0 when unbound).
	UpdateEntryState(ctx context.Context, e types.Entry, from types.EntryStatus, personID string, personDelta int, rec audittypes.Record) error

	// HardDeleteEntry removes the entry and all of its links, re-checking
	// the current status equals from.
	HardDeleteEntry(ctx context.Context, entryID string, from types.EntryStatus, personID string, rec audittypes.Record) error

	IncrementGlow(ctx context.Context, entryID string, rec audittypes.Record) error

	ListEntriesByAuthor(ctx context.Context, authorID string, status types.EntryStatus) ([]types.Entry, error)
	ListHiddenEntriesForOwner(ctx context.Context, ownerID string) ([]types.Entry, error)

	GetLink(ctx context.Context, entryID string, branchID string) (types.MemoryBranchLink, error)
	CreateLink(ctx context.Context, l types.MemoryBranchLink, rec audittypes.Record) error

	// SetLinkVisibility flips a shared link; origin links refuse with
	// ErrOriginLinkImmutable.
	SetLinkVisibility(ctx context.Context, entryID string, branchID string, v types.LinkVisibility, rec audittypes.Record) error

	GetMember(ctx context.Context, branchID string, userID string) (types.BranchMember, error)
	AddMember(ctx context.Context, m types.BranchMember, rec audittypes.Record) error
}

// RequestStore owns connection requests and invites.
type RequestStore interface {
	FindRequest(ctx context.Context, branchID string, personID string) (types.ConnectionRequest, error)
	GetRequestByToken(ctx context.Context, token string) (types.ConnectionRequest, error)
	InsertRequest(ctx context.Context, r types.ConnectionRequest, rec audittypes.Record) error

	// ReissueRequest rotates the token and pushes the expiry on a still
	// pending row.
	ReissueRequest(ctx context.Context, requestID string, token string, expiresAt time.Time, rec audittypes.Record) error
	MarkRequestExpired(ctx context.Context, requestID string, rec audittypes.Record) error
	DeclineRequest(ctx context.Context, requestID string, rec audittypes.Record) error

	// AcceptRequest marks the request accepted and binds the branch to the
	// person in one transaction, re-checking the request is pending, the
	// branch unbound and the person not bound elsewhere.
	AcceptRequest(ctx context.Context, requestID string, rec audittypes.Record) error

	FindInvite(ctx context.Context, branchID string, email string) (types.Invite, error)
	GetInviteByToken(ctx context.Context, token string) (types.Invite, error)
	InsertInvite(ctx context.Context, i types.Invite, rec audittypes.Record) error
	ReissueInvite(ctx context.Context, inviteID string, token string, expiresAt time.Time, rec audittypes.Record) error
	MarkInviteExpired(ctx context.Context, inviteID string, rec audittypes.Record) error
	DeclineInvite(ctx context.Context, inviteID string, rec audittypes.Record) error

	// AcceptInvite marks the invite accepted and inserts the member row in
	// one transaction.
	AcceptInvite(ctx context.Context, inviteID string, member types.BranchMember, rec audittypes.Record) error
}
