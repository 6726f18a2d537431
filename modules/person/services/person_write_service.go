package services

import (
	"context"
	"errors"
	"strings"
	"time"

	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	grovetypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/httperr"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/uuidv7"
)

const (
	errPersonInvalidArgument = "PERSON_INVALID_ARGUMENT"
	errPersonNotFound        = "PERSON_NOT_FOUND"
	errPersonNotOwned        = "PERSON_NOT_OWNED"
	errPersonNotReachable    = "PERSON_NOT_REACHABLE"
	errRootSelf              = "ROOT_SELF"
	errRootExists            = "ROOT_EXISTS"
	errDateInvalid           = "DATE_INVALID"
	errTrusteeExpired        = "TRUSTEE_EXPIRED"
	errGroveNotFound         = "GROVE_NOT_FOUND"
	errCapacityExceeded      = "GROVE_CAPACITY_EXCEEDED"
)

const (
	actionPersonCreate = "PERSON_CREATE"
	actionRoot         = "ROOT"
	actionTrusteeLapse = "TRUSTEE_LAPSE"
	dateLayout         = "2006-01-02"
)

var (
	newUUID = uuidv7.NewString
	nowUTC  = func() time.Time { return time.Now().UTC() }
)

type PersonService interface {
	Create(ctx context.Context, req CreatePersonRequest) (types.Person, error)
	Resolve(ctx context.Context, personID string) (types.Person, error)
	CanMutate(ctx context.Context, req CanMutateRequest) error
	Root(ctx context.Context, req RootRequest) error
	IsRooted(ctx context.Context, personA string, personB string) (bool, error)
	CheckDuplicates(ctx context.Context, req DuplicateCheckRequest) ([]DuplicateCandidate, error)
}

type CreatePersonRequest struct {
	Name           string
	BirthDate      string
	DeathDate      string
	Discovery      bool
	GroveID        string // destination for living subjects; ignored for legacy
	MemoryLimit    *int
	InitiatorID    string
	InitiatorAdmin bool
}

type CanMutateRequest struct {
	PersonID       string
	InitiatorID    string
	InitiatorAdmin bool
}

type RootRequest struct {
	SourcePersonID string
	TargetPersonID string
	InitiatorID    string
	InitiatorAdmin bool
}

type personService struct {
	store         ports.PersonStore
	systemActorID string
}

func NewPersonService(store ports.PersonStore, systemActorID string) PersonService {
	return &personService{store: store, systemActorID: systemActorID}
}

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

func (s *personService) Create(ctx context.Context, req CreatePersonRequest) (types.Person, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.TrimSpace(req.InitiatorID) == "" {
		return types.Person{}, httperr.NewValidation(errPersonInvalidArgument)
	}
	if req.BirthDate != "" && !validDate(req.BirthDate) {
		return types.Person{}, httperr.NewValidation(errDateInvalid)
	}
	if req.DeathDate != "" && !validDate(req.DeathDate) {
		return types.Person{}, httperr.NewValidation(errDateInvalid)
	}

	legacy := req.DeathDate != ""
	groveID := strings.TrimSpace(req.GroveID)
	if legacy {
		open, err := s.store.OpenGroveID(ctx)
		if err != nil {
			return types.Person{}, s.mapErr(err)
		}
		groveID = open
	} else if groveID == "" {
		return types.Person{}, httperr.NewValidation(errPersonInvalidArgument)
	}

	personID, err := newUUID()
	if err != nil {
		return types.Person{}, err
	}
	treeID, err := newUUID()
	if err != nil {
		return types.Person{}, err
	}
	membershipID, err := newUUID()
	if err != nil {
		return types.Person{}, err
	}

	p := types.Person{
		ID:          personID,
		TreeID:      treeID,
		Name:        name,
		BirthDate:   req.BirthDate,
		DeathDate:   req.DeathDate,
		Discovery:   req.Discovery,
		OwnerID:     req.InitiatorID,
		MemoryLimit: req.MemoryLimit,
	}
	tree := grovetypes.Tree{
		ID:       treeID,
		GroveID:  groveID,
		Name:     name,
		Status:   grovetypes.TreeActive,
		IsLegacy: legacy,
	}
	membership := grovetypes.Membership{
		ID:           membershipID,
		GroveID:      groveID,
		PersonID:     personID,
		IsOriginal:   true,
		AdoptionType: grovetypes.AdoptionAdopted,
		Status:       grovetypes.MembershipActive,
	}

	recID, err := newUUID()
	if err != nil {
		return types.Person{}, err
	}
	rec := audittypes.Record{
		ID:         recID,
		ActorID:    req.InitiatorID,
		Action:     actionPersonCreate,
		TargetType: audittypes.TargetPerson,
		TargetID:   personID,
		Metadata:   map[string]string{"grove": groveID, "legacy": boolString(legacy)},
		CreatedAt:  nowUTC(),
	}
	if err := s.store.CreatePerson(ctx, p, tree, membership, !legacy, rec); err != nil {
		return types.Person{}, s.mapErr(err)
	}
	return p, nil
}

// Resolve loads a person and applies the lazy trustee-term check: a lapsed
// trustee role is cleared and persisted before the person is returned, so
// no caller ever observes a stale trustee.
func (s *personService) Resolve(ctx context.Context, personID string) (types.Person, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return types.Person{}, httperr.NewValidation(errPersonInvalidArgument)
	}
	p, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		return types.Person{}, s.mapErr(err)
	}
	if !p.TrusteeLapsed(nowUTC()) {
		return p, nil
	}

	recID, err := newUUID()
	if err != nil {
		return types.Person{}, err
	}
	rec := audittypes.Record{
		ID:         recID,
		ActorID:    s.systemActorID,
		Action:     actionTrusteeLapse,
		TargetType: audittypes.TargetPerson,
		TargetID:   personID,
		Metadata:   map[string]string{"trustee": p.TrusteeID},
		CreatedAt:  nowUTC(),
	}
	if err := s.store.ClearTrustee(ctx, personID, rec); err != nil {
		return types.Person{}, s.mapErr(err)
	}
	p.TrusteeID = ""
	p.TrusteeUntil = nil
	return p, nil
}

// CanMutate answers whether the initiator may mutate the person. The
// trustee check runs against the freshly resolved state, so an actor whose
// term ended gets expired_trustee, not a stale allow.
func (s *personService) CanMutate(ctx context.Context, req CanMutateRequest) error {
	if req.InitiatorAdmin {
		return nil
	}
	p, err := s.store.GetPerson(ctx, req.PersonID)
	if err != nil {
		return s.mapErr(err)
	}
	wasTrustee := p.TrusteeID == req.InitiatorID

	p, err = s.Resolve(ctx, req.PersonID)
	if err != nil {
		return err
	}
	switch {
	case p.OwnerID == req.InitiatorID:
		return nil
	case p.ModeratorID != "" && p.ModeratorID == req.InitiatorID:
		return nil
	case p.TrusteeID != "" && p.TrusteeID == req.InitiatorID:
		return nil
	case wasTrustee && p.TrusteeID == "":
		return httperr.NewForbidden(errTrusteeExpired, "expired_trustee")
	default:
		return httperr.NewForbidden(errPersonNotOwned, "not_owner")
	}
}

func (s *personService) Root(ctx context.Context, req RootRequest) error {
	source := strings.TrimSpace(req.SourcePersonID)
	target := strings.TrimSpace(req.TargetPersonID)
	if source == "" || target == "" || strings.TrimSpace(req.InitiatorID) == "" {
		return httperr.NewValidation(errPersonInvalidArgument)
	}
	pair, err := types.NewRootPair(source, target)
	if err != nil {
		return httperr.NewValidation(errRootSelf)
	}

	src, err := s.Resolve(ctx, source)
	if err != nil {
		return err
	}
	if !req.InitiatorAdmin && src.OwnerID != req.InitiatorID {
		return httperr.NewForbidden(errPersonNotOwned, "not_owner")
	}
	tgt, err := s.Resolve(ctx, target)
	if err != nil {
		return err
	}
	if !req.InitiatorAdmin && tgt.OwnerID != req.InitiatorID {
		reachable, err := s.discoverable(ctx, tgt)
		if err != nil {
			return err
		}
		if !reachable {
			return httperr.NewForbidden(errPersonNotReachable, "not_owner")
		}
	}

	if _, err := s.store.FindActiveRoot(ctx, pair); err == nil {
		return httperr.NewConflict(errRootExists)
	} else if !errors.Is(err, ports.ErrRootNotFound) {
		return s.mapErr(err)
	}

	memberships, err := s.linkedMemberships(ctx, src, tgt)
	if err != nil {
		return err
	}

	rootID, err := newUUID()
	if err != nil {
		return err
	}
	recID, err := newUUID()
	if err != nil {
		return err
	}
	root := types.PersonRoot{ID: rootID, Pair: pair, Status: types.RootActive, CreatedAt: nowUTC()}
	rec := audittypes.Record{
		ID:         recID,
		ActorID:    req.InitiatorID,
		Action:     actionRoot,
		TargetType: audittypes.TargetRoot,
		TargetID:   rootID,
		Metadata:   map[string]string{"person_a": pair.A, "person_b": pair.B},
		CreatedAt:  nowUTC(),
	}
	if err := s.store.CreateRoot(ctx, root, memberships, rec); err != nil {
		if errors.Is(err, ports.ErrRootExists) {
			return httperr.NewConflict(errRootExists)
		}
		return s.mapErr(err)
	}
	return nil
}

// discoverable: the target sits in the open grove with public listing on.
func (s *personService) discoverable(ctx context.Context, p types.Person) (bool, error) {
	if !p.Discovery {
		return false, nil
	}
	groveID, err := s.store.OriginalGroveID(ctx, p.ID)
	if err != nil {
		return false, s.mapErr(err)
	}
	open, err := s.store.OpenGroveID(ctx)
	if err != nil {
		return false, s.mapErr(err)
	}
	return groveID == open, nil
}

// linkedMemberships places each person into the other's original grove.
// Rooted rows never meter capacity; duplicates are skipped by the store.
func (s *personService) linkedMemberships(ctx context.Context, a types.Person, b types.Person) ([]grovetypes.Membership, error) {
	groveA, err := s.store.OriginalGroveID(ctx, a.ID)
	if err != nil {
		return nil, s.mapErr(err)
	}
	groveB, err := s.store.OriginalGroveID(ctx, b.ID)
	if err != nil {
		return nil, s.mapErr(err)
	}

	var out []grovetypes.Membership
	for _, pair := range []struct {
		personID string
		groveID  string
	}{
		{a.ID, groveB},
		{b.ID, groveA},
	} {
		id, err := newUUID()
		if err != nil {
			return nil, err
		}
		out = append(out, grovetypes.Membership{
			ID:           id,
			GroveID:      pair.groveID,
			PersonID:     pair.personID,
			IsOriginal:   false,
			AdoptionType: grovetypes.AdoptionRooted,
			Status:       grovetypes.MembershipActive,
		})
	}
	return out, nil
}

func (s *personService) IsRooted(ctx context.Context, personA string, personB string) (bool, error) {
	pair, err := types.NewRootPair(strings.TrimSpace(personA), strings.TrimSpace(personB))
	if err != nil {
		return false, httperr.NewValidation(errRootSelf)
	}
	if _, err := s.store.FindActiveRoot(ctx, pair); err != nil {
		if errors.Is(err, ports.ErrRootNotFound) {
			return false, nil
		}
		return false, s.mapErr(err)
	}
	return true, nil
}

func (s *personService) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ports.ErrPersonNotFound):
		return httperr.NewNotFound(errPersonNotFound)
	case errors.Is(err, ports.ErrGroveNotFound):
		return httperr.NewNotFound(errGroveNotFound)
	case errors.Is(err, ports.ErrCapacityFull):
		return httperr.NewCapacityExceeded(errCapacityExceeded)
	default:
		return err
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
