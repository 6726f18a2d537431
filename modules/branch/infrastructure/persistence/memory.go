package persistence

import (
	"context"
	"sync"
	"time"

	auditports "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/ports"
	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/types"
)

// PersonCounter is the person-module surface the branch store needs to
// keep the legacy memory counter and limit in step with entry lifecycle.
type PersonCounter interface {
	AdjustMemoryCount(personID string, delta int)
	MemoryBudget(personID string) (count int, limit *int, legacy bool, ok bool)
}

type MemoryStore struct {
	mu       sync.Mutex
	branches map[string]types.Branch
	entries  map[string]types.Entry
	links    map[string]types.MemoryBranchLink // entryID + "/" + branchID
	members  map[string]types.BranchMember     // branchID + "/" + userID
	prefs    map[string]types.BranchPreferences
	requests map[string]types.ConnectionRequest
	invites  map[string]types.Invite
	persons  PersonCounter
	audit    auditports.Sink
}

func NewMemoryStore(persons PersonCounter, audit auditports.Sink) *MemoryStore {
	return &MemoryStore{
		branches: make(map[string]types.Branch),
		entries:  make(map[string]types.Entry),
		links:    make(map[string]types.MemoryBranchLink),
		members:  make(map[string]types.BranchMember),
		prefs:    make(map[string]types.BranchPreferences),
		requests: make(map[string]types.ConnectionRequest),
		invites:  make(map[string]types.Invite),
		persons:  persons,
		audit:    audit,
	}
}

var (
	_ ports.Store        = (*MemoryStore)(nil)
	_ ports.RequestStore = (*MemoryStore)(nil)
)

func linkKey(entryID, branchID string) string  { return entryID + "/" + branchID }
func memberKey(branchID, userID string) string { return branchID + "/" + userID }

func (s *MemoryStore) SeedBranch(b types.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[b.ID] = b
}

func (s *MemoryStore) SeedEntry(e types.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
}

func (s *MemoryStore) SeedLink(l types.MemoryBranchLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[linkKey(l.EntryID, l.BranchID)] = l
}

func (s *MemoryStore) SeedMember(m types.BranchMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey(m.BranchID, m.UserID)] = m
}

func (s *MemoryStore) GetBranch(_ context.Context, branchID string) (types.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[branchID]
	if !ok {
		return types.Branch{}, ports.ErrBranchNotFound
	}
	return b, nil
}

func (s *MemoryStore) CreateBranch(ctx context.Context, b types.Branch, rec audittypes.Record) error {
	s.mu.Lock()
	s.branches[b.ID] = b
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) ArchiveBranch(ctx context.Context, branchID string, at time.Time, by string, rec audittypes.Record) error {
	s.mu.Lock()
	b, ok := s.branches[branchID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrBranchNotFound
	}
	if b.Status != types.BranchActive {
		s.mu.Unlock()
		return ports.ErrBranchStateChanged
	}
	b.Status = types.BranchArchived
	b.ArchivedAt = &at
	b.ArchivedBy = by
	s.branches[branchID] = b
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) ListArchivedBranches(_ context.Context, ownerID string) ([]types.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Branch
	for _, b := range s.branches {
		if b.OwnerID == ownerID && b.Status == types.BranchArchived {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetPreferences(_ context.Context, branchID string) (types.BranchPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[branchID]
	if !ok {
		return types.BranchPreferences{}, ports.ErrPrefsNotFound
	}
	return p, nil
}

func (s *MemoryStore) UpsertPreferences(ctx context.Context, prefs types.BranchPreferences, rec audittypes.Record) error {
	s.mu.Lock()
	s.prefs[prefs.BranchID] = prefs
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) GetEntry(_ context.Context, entryID string) (types.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return types.Entry{}, ports.ErrEntryNotFound
	}
	return e, nil
}

func (s *MemoryStore) CreateEntry(ctx context.Context, e types.Entry, origin types.MemoryBranchLink, personID string, rec audittypes.Record) error {
	s.mu.Lock()
	if personID != "" {
		count, limit, _, ok := s.persons.MemoryBudget(personID)
		if ok && limit != nil && count >= *limit {
			s.mu.Unlock()
			return ports.ErrMemoryLimitReached
		}
		s.persons.AdjustMemoryCount(personID, +1)
	}
	s.entries[e.ID] = e
	s.links[linkKey(origin.EntryID, origin.BranchID)] = origin
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) UpdateEntryState(ctx context.Context, e types.Entry, from types.EntryStatus, personID string, personDelta int, rec audittypes.Record) error {
	s.mu.Lock()
	current, ok := s.entries[e.ID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrEntryNotFound
	}
	if current.Status != from {
		s.mu.Unlock()
		return ports.ErrEntryStateChanged
	}
	current.Status = e.Status
	current.WithdrawnAt = e.WithdrawnAt
	current.HiddenAt = e.HiddenAt
	current.HiddenBy = e.HiddenBy
	s.entries[e.ID] = current
	if personID != "" && personDelta != 0 {
		s.persons.AdjustMemoryCount(personID, personDelta)
	}
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) HardDeleteEntry(ctx context.Context, entryID string, from types.EntryStatus, personID string, rec audittypes.Record) error {
	s.mu.Lock()
	current, ok := s.entries[entryID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrEntryNotFound
	}
	if current.Status != from {
		s.mu.Unlock()
		return ports.ErrEntryStateChanged
	}
	delete(s.entries, entryID)
	for key, l := range s.links {
		if l.EntryID == entryID {
			delete(s.links, key)
		}
	}
	if personID != "" {
		s.persons.AdjustMemoryCount(personID, -1)
	}
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) IncrementGlow(ctx context.Context, entryID string, rec audittypes.Record) error {
	s.mu.Lock()
	e, ok := s.entries[entryID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrEntryNotFound
	}
	if e.Status != types.EntryActive {
		s.mu.Unlock()
		return ports.ErrEntryStateChanged
	}
	e.GlowCount++
	s.entries[entryID] = e
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) ListEntriesByAuthor(_ context.Context, authorID string, status types.EntryStatus) ([]types.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Entry
	for _, e := range s.entries {
		if e.AuthorID == authorID && e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListHiddenEntriesForOwner(_ context.Context, ownerID string) ([]types.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Entry
	for _, e := range s.entries {
		if e.Status != types.EntryHidden {
			continue
		}
		if b, ok := s.branches[e.BranchID]; ok && b.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetLink(_ context.Context, entryID string, branchID string) (types.MemoryBranchLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[linkKey(entryID, branchID)]
	if !ok {
		return types.MemoryBranchLink{}, ports.ErrLinkNotFound
	}
	return l, nil
}

func (s *MemoryStore) CreateLink(ctx context.Context, l types.MemoryBranchLink, rec audittypes.Record) error {
	s.mu.Lock()
	key := linkKey(l.EntryID, l.BranchID)
	if _, exists := s.links[key]; exists {
		s.mu.Unlock()
		return ports.ErrLinkExists
	}
	s.links[key] = l
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) SetLinkVisibility(ctx context.Context, entryID string, branchID string, v types.LinkVisibility, rec audittypes.Record) error {
	s.mu.Lock()
	key := linkKey(entryID, branchID)
	l, ok := s.links[key]
	if !ok {
		s.mu.Unlock()
		return ports.ErrLinkNotFound
	}
	if l.Role == types.LinkOrigin {
		s.mu.Unlock()
		return ports.ErrOriginLinkImmutable
	}
	l.Visibility = v
	s.links[key] = l
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) GetMember(_ context.Context, branchID string, userID string) (types.BranchMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey(branchID, userID)]
	if !ok {
		return types.BranchMember{}, ports.ErrMemberNotFound
	}
	return m, nil
}

func (s *MemoryStore) AddMember(ctx context.Context, m types.BranchMember, rec audittypes.Record) error {
	s.mu.Lock()
	key := memberKey(m.BranchID, m.UserID)
	if _, exists := s.members[key]; exists {
		s.mu.Unlock()
		return ports.ErrMemberExists
	}
	s.members[key] = m
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) FindRequest(_ context.Context, branchID string, personID string) (types.ConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.BranchID == branchID && r.PersonID == personID {
			return r, nil
		}
	}
	return types.ConnectionRequest{}, ports.ErrRequestNotFound
}

func (s *MemoryStore) GetRequestByToken(_ context.Context, token string) (types.ConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.Token == token {
			return r, nil
		}
	}
	return types.ConnectionRequest{}, ports.ErrRequestNotFound
}

func (s *MemoryStore) InsertRequest(ctx context.Context, r types.ConnectionRequest, rec audittypes.Record) error {
	s.mu.Lock()
	s.requests[r.ID] = r
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) ReissueRequest(ctx context.Context, requestID string, token string, expiresAt time.Time, rec audittypes.Record) error {
	s.mu.Lock()
	r, ok := s.requests[requestID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrRequestNotFound
	}
	if r.Status == types.RequestAccepted || r.Status == types.RequestDeclined {
		s.mu.Unlock()
		return ports.ErrRequestResolved
	}
	r.Token = token
	r.Status = types.RequestPending
	r.ExpiresAt = expiresAt
	s.requests[requestID] = r
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) MarkRequestExpired(ctx context.Context, requestID string, rec audittypes.Record) error {
	s.mu.Lock()
	r, ok := s.requests[requestID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrRequestNotFound
	}
	if r.Status != types.RequestPending {
		s.mu.Unlock()
		return ports.ErrRequestResolved
	}
	r.Status = types.RequestExpired
	s.requests[requestID] = r
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) DeclineRequest(ctx context.Context, requestID string, rec audittypes.Record) error {
	s.mu.Lock()
	r, ok := s.requests[requestID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrRequestNotFound
	}
	if r.Status != types.RequestPending {
		s.mu.Unlock()
		return ports.ErrRequestResolved
	}
	r.Status = types.RequestDeclined
	s.requests[requestID] = r
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) AcceptRequest(ctx context.Context, requestID string, rec audittypes.Record) error {
	s.mu.Lock()
	r, ok := s.requests[requestID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrRequestNotFound
	}
	if r.Status != types.RequestPending {
		s.mu.Unlock()
		return ports.ErrRequestResolved
	}
	b, ok := s.branches[r.BranchID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrBranchNotFound
	}
	if b.PersonID != "" {
		s.mu.Unlock()
		return ports.ErrBranchAlreadyBound
	}
	for _, other := range s.branches {
		if other.PersonID == r.PersonID {
			s.mu.Unlock()
			return ports.ErrPersonAlreadyBound
		}
	}
	r.Status = types.RequestAccepted
	s.requests[requestID] = r
	b.PersonID = r.PersonID
	s.branches[b.ID] = b
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) FindInvite(_ context.Context, branchID string, email string) (types.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.invites {
		if i.BranchID == branchID && i.Email == email {
			return i, nil
		}
	}
	return types.Invite{}, ports.ErrInviteNotFound
}

func (s *MemoryStore) GetInviteByToken(_ context.Context, token string) (types.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.invites {
		if i.Token == token {
			return i, nil
		}
	}
	return types.Invite{}, ports.ErrInviteNotFound
}

func (s *MemoryStore) InsertInvite(ctx context.Context, i types.Invite, rec audittypes.Record) error {
	s.mu.Lock()
	s.invites[i.ID] = i
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) ReissueInvite(ctx context.Context, inviteID string, token string, expiresAt time.Time, rec audittypes.Record) error {
	s.mu.Lock()
	i, ok := s.invites[inviteID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrInviteNotFound
	}
	if i.Status == types.RequestAccepted || i.Status == types.RequestDeclined {
		s.mu.Unlock()
		return ports.ErrRequestResolved
	}
	i.Token = token
	i.Status = types.RequestPending
	i.ExpiresAt = expiresAt
	s.invites[inviteID] = i
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) MarkInviteExpired(ctx context.Context, inviteID string, rec audittypes.Record) error {
	s.mu.Lock()
	i, ok := s.invites[inviteID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrInviteNotFound
	}
	if i.Status != types.RequestPending {
		s.mu.Unlock()
		return ports.ErrRequestResolved
	}
	i.Status = types.RequestExpired
	s.invites[inviteID] = i
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) DeclineInvite(ctx context.Context, inviteID string, rec audittypes.Record) error {
	s.mu.Lock()
	i, ok := s.invites[inviteID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrInviteNotFound
	}
	if i.Status != types.RequestPending {
		s.mu.Unlock()
		return ports.ErrRequestResolved
	}
	i.Status = types.RequestDeclined
	s.invites[inviteID] = i
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}

func (s *MemoryStore) AcceptInvite(ctx context.Context, inviteID string, member types.BranchMember, rec audittypes.Record) error {
	s.mu.Lock()
	i, ok := s.invites[inviteID]
	if !ok {
		s.mu.Unlock()
		return ports.ErrInviteNotFound
	}
	if i.Status != types.RequestPending {
		s.mu.Unlock()
		return ports.ErrRequestResolved
	}
	key := memberKey(member.BranchID, member.UserID)
	if _, exists := s.members[key]; exists {
		s.mu.Unlock()
		return ports.ErrMemberExists
	}
	i.Status = types.RequestAccepted
	s.invites[inviteID] = i
	s.members[key] = member
	s.mu.Unlock()
	return s.audit.Append(ctx, rec)
}
