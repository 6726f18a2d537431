package persistence

import (
	"context"
	"sync"

	auditports "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/ports"
	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	groveports "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/ports"
	grovetypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/domain/types"
)

// GroveLinker is the grove-module surface the person store needs for the
// cross-entity halves of creation and rooting.
type GroveLinker interface {
	InsertTreeWithMembership(tree grovetypes.Tree, m grovetypes.Membership, meterCapacity bool) error
	InsertRootedMemberships(memberships []grovetypes.Membership)
	LookupOriginalGrove(personID string) (string, bool)
	LookupOpenGrove() (string, bool)
}

type MemoryStore struct {
	mu      sync.Mutex
	persons map[string]types.Person
	roots   map[types.RootPair]types.PersonRoot
	groves  GroveLinker
	audit   auditports.Sink
}

func NewMemoryStore(audit auditports.Sink) *MemoryStore {
	return &MemoryStore{
		persons: make(map[string]types.Person),
		roots:   make(map[types.RootPair]types.PersonRoot),
		audit:   audit,
	}
}

var _ ports.PersonStore = (*MemoryStore)(nil)

// AttachGroves breaks the construction cycle between the person and grove
// memory stores.
func (s *MemoryStore) AttachGroves(g GroveLinker) { s.groves = g }

func (s *MemoryStore) SeedPerson(p types.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons[p.ID] = p
}

func (s *MemoryStore) GetPerson(_ context.Context, personID string) (types.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[personID]
	if !ok {
		return types.Person{}, ports.ErrPersonNotFound
	}
	return p, nil
}

func (s *MemoryStore) CreatePerson(ctx context.Context, p types.Person, tree grovetypes.Tree, membership grovetypes.Membership, meterCapacity bool, rec audittypes.Record) error {
	if err := s.groves.InsertTreeWithMembership(tree, membership, meterCapacity); err != nil {
		return mapGroveErr(err)
	}
	s.mu.Lock()
	s.persons[p.ID] = p
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) ClearTrustee(ctx context.Context, personID string, rec audittypes.Record) error {
	s.mu.Lock()
	p, ok := s.persons[personID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrPersonNotFound
	}
	p.TrusteeID = ""
	p.TrusteeUntil = nil
	s.persons[personID] = p
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) FindActiveRoot(_ context.Context, pair types.RootPair) (types.PersonRoot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roots[pair]
	if !ok || r.Status != types.RootActive {
		return types.PersonRoot{}, ports.ErrRootNotFound
	}
	return r, nil
}

func (s *MemoryStore) CreateRoot(ctx context.Context, root types.PersonRoot, memberships []grovetypes.Membership, rec audittypes.Record) error {
	s.mu.Lock()
	if existing, ok := s.roots[root.Pair]; ok && existing.Status == types.RootActive {
		s.mu.Unlock()
		return ports.ErrRootExists
	}
	s.roots[root.Pair] = root
	s.mu.Unlock()

	s.groves.InsertRootedMemberships(memberships)
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) OriginalGroveID(_ context.Context, personID string) (string, error) {
	groveID, ok := s.groves.LookupOriginalGrove(personID)
	if !ok {
		return "", ports.ErrPersonNotFound
	}
	return groveID, nil
}

func (s *MemoryStore) OpenGroveID(_ context.Context) (string, error) {
	id, ok := s.groves.LookupOpenGrove()
	if !ok {
		return "", ports.ErrGroveNotFound
	}
	return id, nil
}

func (s *MemoryStore) ListLegacyByDeathDate(_ context.Context, deathDate string) ([]types.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Person
	for _, p := range s.persons {
		if p.DeathDate == deathDate {
			out = append(out, p)
		}
	}
	return out, nil
}

// PersonRef and ClearMemoryLimit implement the grove store's person
// directory, so adoption can reach back into person state.
func (s *MemoryStore) PersonRef(personID string) (groveports.PersonRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[personID]
	if !ok {
		return groveports.PersonRef{}, false
	}
	return groveports.PersonRef{ID: p.ID, OwnerID: p.OwnerID, Legacy: p.IsLegacy(), TreeID: p.TreeID}, true
}

func (s *MemoryStore) ClearMemoryLimit(personID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[personID]
	if !ok {
		return
	}
	p.MemoryLimit = nil
	s.persons[personID] = p
}

// AdjustMemoryCount backs the branch store's counter coupling.
func (s *MemoryStore) AdjustMemoryCount(personID string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[personID]
	if !ok {
		return
	}
	p.MemoryCount += delta
	s.persons[personID] = p
}

// MemoryBudget reports the person's counter and limit for creation-time
// enforcement in the branch store.
func (s *MemoryStore) MemoryBudget(personID string) (count int, limit *int, legacy bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.persons[personID]
	if !found {
		return 0, nil, false, false
	}
	return p.MemoryCount, p.MemoryLimit, p.IsLegacy(), true
}

func mapGroveErr(err error) error {
	switch err {
	case groveports.ErrGroveNotFound:
		return ports.ErrGroveNotFound
	case groveports.ErrCapacityExceeded:
		return ports.ErrCapacityFull
	default:
		return err
	}
}
