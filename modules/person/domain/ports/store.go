package ports

import (
	"context"
	"errors"

	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	grovetypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/domain/types"
)

var (
	ErrPersonNotFound = errors.New("person_not_found")
	ErrRootNotFound   = errors.New("root_not_found")
	ErrRootExists     = errors.New("root_exists")
	ErrGroveNotFound  = errors.New("grove_not_found")
	ErrCapacityFull   = errors.New("capacity_exceeded")
)

// PersonStore owns persons and person roots, and reaches into the
// membership table for the cross-entity pieces of creation and rooting so
// each of those stays a single transaction.
type PersonStore interface {
	GetPerson(ctx context.Context, personID string) (types.Person, error)

	// CreatePerson inserts the person with its tree and original
	// membership. The destination grove's counter is consumed for living
	// trees only; legacy trees land in the open grove unmetered.
	CreatePerson(ctx context.Context, p types.Person, tree grovetypes.Tree, membership grovetypes.Membership, meterCapacity bool, rec audittypes.Record) error

	// ClearTrustee persists a lapsed trustee role. Called lazily from
	// permission checks; idempotent.
	ClearTrustee(ctx context.Context, personID string, rec audittypes.Record) error

	FindActiveRoot(ctx context.Context, pair types.RootPair) (types.PersonRoot, error)

	// CreateRoot inserts the root after re-checking no active root exists
	// for the pair, and inserts the linked memberships, skipping any that
	// would duplicate an existing person/grove row.
	CreateRoot(ctx context.Context, root types.PersonRoot, memberships []grovetypes.Membership, rec audittypes.Record) error

	// OriginalGroveID resolves where a person's canonical membership lives.
	OriginalGroveID(ctx context.Context, personID string) (string, error)
	OpenGroveID(ctx context.Context) (string, error)

	ListLegacyByDeathDate(ctx context.Context, deathDate string) ([]types.Person, error)
}
