package persistence

import (
	"context"
	"sync"

	auditports "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/ports"
	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/types"
)

// PersonDirectory is the person-module surface the grove store needs:
// adoption reads the person and clears its memory limit atomically with
// the membership move.
type PersonDirectory interface {
	PersonRef(personID string) (ports.PersonRef, bool)
	ClearMemoryLimit(personID string)
}

// MemoryStore mirrors the pg store's transactional re-checks under one
// mutex. Backs unit tests and DB-less local runs.
type MemoryStore struct {
	mu          sync.Mutex
	groves      map[string]types.Grove
	trees       map[string]types.Tree
	memberships map[string]types.Membership
	openGroveID string
	persons     PersonDirectory
	audit       auditports.Sink
}

func NewMemoryStore(persons PersonDirectory, audit auditports.Sink) *MemoryStore {
	return &MemoryStore{
		groves:      make(map[string]types.Grove),
		trees:       make(map[string]types.Tree),
		memberships: make(map[string]types.Membership),
		persons:     persons,
		audit:       audit,
	}
}

var _ ports.GroveStore = (*MemoryStore)(nil)

// SeedGrove, SeedTree and SeedMembership install fixture state.
func (s *MemoryStore) SeedGrove(g types.Grove) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groves[g.ID] = g
	if g.IsOpenGrove {
		s.openGroveID = g.ID
	}
}

func (s *MemoryStore) SeedTree(t types.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees[t.ID] = t
}

func (s *MemoryStore) SeedMembership(m types.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[m.ID] = m
}

func (s *MemoryStore) GetGrove(_ context.Context, groveID string) (types.Grove, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groves[groveID]
	if !ok {
		return types.Grove{}, ports.ErrGroveNotFound
	}
	return g, nil
}

func (s *MemoryStore) GetOpenGrove(_ context.Context) (types.Grove, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groves[s.openGroveID]
	if !ok {
		return types.Grove{}, ports.ErrGroveNotFound
	}
	return g, nil
}

func (s *MemoryStore) GetTree(_ context.Context, treeID string) (types.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trees[treeID]
	if !ok {
		return types.Tree{}, ports.ErrTreeNotFound
	}
	return t, nil
}

func (s *MemoryStore) GetPersonRef(_ context.Context, personID string) (ports.PersonRef, error) {
	ref, ok := s.persons.PersonRef(personID)
	if !ok {
		return ports.PersonRef{}, ports.ErrPersonNotFound
	}
	return ref, nil
}

func (s *MemoryStore) GetOriginalMembership(_ context.Context, personID string) (types.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.PersonID == personID && m.IsOriginal {
			return m, nil
		}
	}
	return types.Membership{}, ports.ErrMembershipNotFound
}

func (s *MemoryStore) ListMembershipsForPerson(_ context.Context, personID string) ([]types.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Membership
	for _, m := range s.memberships {
		if m.PersonID == personID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) SetGroveStatus(ctx context.Context, groveID string, status types.GroveStatus, rec audittypes.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groves[groveID]
	if !ok {
		return ports.ErrGroveNotFound
	}
	g.Status = status
	s.groves[groveID] = g
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) Transplant(ctx context.Context, treeID string, destGroveID string, adjustCounters bool, rec audittypes.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, ok := s.trees[treeID]
	if !ok {
		return ports.ErrTreeNotFound
	}
	src, ok := s.groves[tree.GroveID]
	if !ok {
		return ports.ErrGroveNotFound
	}
	dest, ok := s.groves[destGroveID]
	if !ok {
		return ports.ErrGroveNotFound
	}

	if adjustCounters {
		if !dest.HasCapacity() {
			return ports.ErrCapacityExceeded
		}
		src.TreeCount--
		dest.TreeCount++
		s.groves[src.ID] = src
		s.groves[dest.ID] = dest
	}
	tree.GroveID = destGroveID
	s.trees[treeID] = tree

	// The original membership follows the tree.
	for id, m := range s.memberships {
		if m.IsOriginal && m.GroveID == src.ID && s.treeForPerson(m.PersonID) == treeID {
			m.GroveID = destGroveID
			s.memberships[id] = m
		}
	}
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) treeForPerson(personID string) string {
	ref, ok := s.persons.PersonRef(personID)
	if !ok {
		return ""
	}
	return ref.TreeID
}

func (s *MemoryStore) Adopt(ctx context.Context, personID string, treeID string, destGroveID string, rec audittypes.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dest, ok := s.groves[destGroveID]
	if !ok {
		return ports.ErrGroveNotFound
	}
	if !dest.HasCapacity() {
		return ports.ErrCapacityExceeded
	}

	var originalID string
	for id, m := range s.memberships {
		if m.PersonID == personID && m.IsOriginal {
			originalID = id
			break
		}
	}
	if originalID == "" {
		return ports.ErrMembershipNotFound
	}

	m := s.memberships[originalID]
	m.GroveID = destGroveID
	m.AdoptionType = types.AdoptionAdopted
	s.memberships[originalID] = m

	if tree, ok := s.trees[treeID]; ok {
		tree.GroveID = destGroveID
		s.trees[treeID] = tree
	}

	dest.TreeCount++
	s.groves[destGroveID] = dest
	s.persons.ClearMemoryLimit(personID)
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) InsertLinkedMemberships(ctx context.Context, memberships []types.Membership, rec audittypes.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range memberships {
		for _, existing := range s.memberships {
			if existing.PersonID == m.PersonID && existing.GroveID == m.GroveID {
				return ports.ErrMembershipExists
			}
		}
	}
	for _, m := range memberships {
		s.memberships[m.ID] = m
	}
	return s.audit.Append(ctx, rec)
}

// InsertTreeWithMembership backs person creation from the person module's
// memory store. Capacity is metered only for living trees.
func (s *MemoryStore) InsertTreeWithMembership(tree types.Tree, m types.Membership, meterCapacity bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groves[tree.GroveID]
	if !ok {
		return ports.ErrGroveNotFound
	}
	if meterCapacity {
		if !g.HasCapacity() {
			return ports.ErrCapacityExceeded
		}
		g.TreeCount++
		s.groves[g.ID] = g
	}
	s.trees[tree.ID] = tree
	s.memberships[m.ID] = m
	return nil
}

// InsertRootedMemberships adds linked rows, silently skipping any that
// would duplicate an existing person/grove pair.
func (s *MemoryStore) InsertRootedMemberships(memberships []types.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range memberships {
		dup := false
		for _, existing := range s.memberships {
			if existing.PersonID == m.PersonID && existing.GroveID == m.GroveID {
				dup = true
				break
			}
		}
		if !dup {
			s.memberships[m.ID] = m
		}
	}
}

func (s *MemoryStore) LookupOriginalGrove(personID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.PersonID == personID && m.IsOriginal {
			return m.GroveID, true
		}
	}
	return "", false
}

func (s *MemoryStore) LookupOpenGrove() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openGroveID == "" {
		return "", false
	}
	return s.openGroveID, true
}

// TreeCountSum is a test helper summing counters across groves owned by
// the given actor.
func (s *MemoryStore) TreeCountSum(ownerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, g := range s.groves {
		if g.OwnerID == ownerID {
			total += g.TreeCount
		}
	}
	return total
}
