package ports

import (
	"context"
	"errors"

	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/types"
)

var (
	ErrGroveNotFound      = errors.New("grove_not_found")
	ErrTreeNotFound       = errors.New("tree_not_found")
	ErrPersonNotFound     = errors.New("person_not_found")
	ErrMembershipNotFound = errors.New("membership_not_found")
	ErrCapacityExceeded   = errors.New("capacity_exceeded")
	ErrMembershipExists   = errors.New("membership_exists")
)

// PersonRef is the slice of a person the grove module needs for adoption
// and transplant decisions.
type PersonRef struct {
	ID      string
	OwnerID string
	Legacy  bool
	TreeID  string
}

// GroveStore mutations run in one transaction: precondition re-checks
// (capacity, membership presence) happen inside it and surface as the
// sentinel errors above, and the audit record is appended before commit.
type GroveStore interface {
	GetGrove(ctx context.Context, groveID string) (types.Grove, error)
	GetOpenGrove(ctx context.Context) (types.Grove, error)
	GetTree(ctx context.Context, treeID string) (types.Tree, error)
	GetPersonRef(ctx context.Context, personID string) (PersonRef, error)
	GetOriginalMembership(ctx context.Context, personID string) (types.Membership, error)
	ListMembershipsForPerson(ctx context.Context, personID string) ([]types.Membership, error)

	SetGroveStatus(ctx context.Context, groveID string, status types.GroveStatus, rec audittypes.Record) error

	// Transplant updates the tree's grove and, when adjustCounters is set,
	// re-checks destination headroom and moves one slot from source to
	// destination.
	Transplant(ctx context.Context, treeID string, destGroveID string, adjustCounters bool, rec audittypes.Record) error

	// Adopt replaces the person's open-grove original membership with a new
	// original membership in the destination grove, moves the tree, consumes
	// one destination slot and clears the person's memory limit.
	Adopt(ctx context.Context, personID string, treeID string, destGroveID string, rec audittypes.Record) error

	// InsertLinkedMemberships adds rooted, non-original memberships. Never
	// touches tree counters.
	InsertLinkedMemberships(ctx context.Context, memberships []types.Membership, rec audittypes.Record) error
}
