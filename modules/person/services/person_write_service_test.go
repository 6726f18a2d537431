package services

import (
	"context"
	"errors"
	"testing"
	"time"

	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	grovetypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/httperr"
)

type personStoreStub struct {
	getPersonFn      func(ctx context.Context, personID string) (types.Person, error)
	createPersonFn   func(ctx context.Context, p types.Person, tree grovetypes.Tree, m grovetypes.Membership, meter bool, rec audittypes.Record) error
	clearTrusteeFn   func(ctx context.Context, personID string, rec audittypes.Record) error
	findActiveRootFn func(ctx context.Context, pair types.RootPair) (types.PersonRoot, error)
	createRootFn     func(ctx context.Context, root types.PersonRoot, memberships []grovetypes.Membership, rec audittypes.Record) error
	originalGroveFn  func(ctx context.Context, personID string) (string, error)
	openGroveFn      func(ctx context.Context) (string, error)
	listLegacyFn     func(ctx context.Context, deathDate string) ([]types.Person, error)
}

func (s personStoreStub) GetPerson(ctx context.Context, personID string) (types.Person, error) {
	if s.getPersonFn == nil {
		return types.Person{}, errors.New("GetPerson not mocked")
	}
	return s.getPersonFn(ctx, personID)
}

func (s personStoreStub) CreatePerson(ctx context.Context, p types.Person, tree grovetypes.Tree, m grovetypes.Membership, meter bool, rec audittypes.Record) error {
	if s.createPersonFn == nil {
		return errors.New("CreatePerson not mocked")
	}
	return s.createPersonFn(ctx, p, tree, m, meter, rec)
}

func (s personStoreStub) ClearTrustee(ctx context.Context, personID string, rec audittypes.Record) error {
	if s.clearTrusteeFn == nil {
		return errors.New("ClearTrustee not mocked")
	}
	return s.clearTrusteeFn(ctx, personID, rec)
}

func (s personStoreStub) FindActiveRoot(ctx context.Context, pair types.RootPair) (types.PersonRoot, error) {
	if s.findActiveRootFn == nil {
		return types.PersonRoot{}, errors.New("FindActiveRoot not mocked")
	}
	return s.findActiveRootFn(ctx, pair)
}

func (s personStoreStub) CreateRoot(ctx context.Context, root types.PersonRoot, memberships []grovetypes.Membership, rec audittypes.Record) error {
	if s.createRootFn == nil {
		return errors.New("CreateRoot not mocked")
	}
	return s.createRootFn(ctx, root, memberships, rec)
}

func (s personStoreStub) OriginalGroveID(ctx context.Context, personID string) (string, error) {
	if s.originalGroveFn == nil {
		return "", errors.New("OriginalGroveID not mocked")
	}
	return s.originalGroveFn(ctx, personID)
}

func (s personStoreStub) OpenGroveID(ctx context.Context) (string, error) {
	if s.openGroveFn == nil {
		return "", errors.New("OpenGroveID not mocked")
	}
	return s.openGroveFn(ctx)
}

func (s personStoreStub) ListLegacyByDeathDate(ctx context.Context, deathDate string) ([]types.Person, error) {
	if s.listLegacyFn == nil {
		return nil, errors.New("ListLegacyByDeathDate not mocked")
	}
	return s.listLegacyFn(ctx, deathDate)
}

func TestCreateRejectsMissingName(t *testing.T) {
	svc := NewPersonService(personStoreStub{}, "sys")
	_, err := svc.Create(context.Background(), CreatePersonRequest{Name: "  ", GroveID: "g1", InitiatorID: "u1"})
	if err == nil || !httperr.IsValidation(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestCreateRejectsBadDate(t *testing.T) {
	svc := NewPersonService(personStoreStub{}, "sys")
	_, err := svc.Create(context.Background(), CreatePersonRequest{Name: "Ada", DeathDate: "03/01/1990", InitiatorID: "u1"})
	if err == nil || !httperr.IsValidation(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestCreateLivingRequiresGrove(t *testing.T) {
	svc := NewPersonService(personStoreStub{}, "sys")
	_, err := svc.Create(context.Background(), CreatePersonRequest{Name: "Ada", InitiatorID: "u1"})
	if err == nil || !httperr.IsValidation(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestCreateLegacyLandsInOpenGroveUnmetered(t *testing.T) {
	var gotGrove string
	var gotMeter *bool
	svc := NewPersonService(personStoreStub{
		openGroveFn: func(_ context.Context) (string, error) { return "g-open", nil },
		createPersonFn: func(_ context.Context, p types.Person, tree grovetypes.Tree, m grovetypes.Membership, meter bool, rec audittypes.Record) error {
			gotGrove = tree.GroveID
			gotMeter = &meter
			if !tree.IsLegacy || !m.IsOriginal || rec.Action != "PERSON_CREATE" {
				t.Fatalf("tree=%+v membership=%+v action=%q", tree, m, rec.Action)
			}
			return nil
		},
	}, "sys")
	p, err := svc.Create(context.Background(), CreatePersonRequest{
		Name: "Ada Lovelace", DeathDate: "1852-11-27", GroveID: "g-ignored", InitiatorID: "u1",
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if gotGrove != "g-open" || gotMeter == nil || *gotMeter {
		t.Fatalf("grove=%q meter=%v", gotGrove, gotMeter)
	}
	if !p.IsLegacy() || p.OwnerID != "u1" {
		t.Fatalf("person=%+v", p)
	}
}

func TestCreateLivingMetersCapacity(t *testing.T) {
	svc := NewPersonService(personStoreStub{
		createPersonFn: func(_ context.Context, _ types.Person, _ grovetypes.Tree, _ grovetypes.Membership, meter bool, _ audittypes.Record) error {
			if !meter {
				t.Fatalf("meter=false for living subject")
			}
			return ports.ErrCapacityFull
		},
	}, "sys")
	_, err := svc.Create(context.Background(), CreatePersonRequest{Name: "Ada", GroveID: "g1", InitiatorID: "u1"})
	if err == nil || !httperr.IsCapacityExceeded(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestResolveClearsLapsedTrustee(t *testing.T) {
	restore := nowUTC
	defer func() { nowUTC = restore }()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	nowUTC = func() time.Time { return now }

	until := now.Add(-time.Hour)
	cleared := false
	svc := NewPersonService(personStoreStub{
		getPersonFn: func(_ context.Context, id string) (types.Person, error) {
			return types.Person{ID: id, OwnerID: "u1", TrusteeID: "u2", TrusteeUntil: &until}, nil
		},
		clearTrusteeFn: func(_ context.Context, _ string, rec audittypes.Record) error {
			cleared = true
			if rec.ActorID != "sys" || rec.Action != "TRUSTEE_LAPSE" {
				t.Fatalf("rec=%+v", rec)
			}
			return nil
		},
	}, "sys")

	p, err := svc.Resolve(context.Background(), "p1")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !cleared || p.TrusteeID != "" || p.TrusteeUntil != nil {
		t.Fatalf("cleared=%v person=%+v", cleared, p)
	}
}

func TestResolveKeepsCurrentTrustee(t *testing.T) {
	restore := nowUTC
	defer func() { nowUTC = restore }()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	nowUTC = func() time.Time { return now }

	until := now.Add(time.Hour)
	svc := NewPersonService(personStoreStub{
		getPersonFn: func(_ context.Context, id string) (types.Person, error) {
			return types.Person{ID: id, OwnerID: "u1", TrusteeID: "u2", TrusteeUntil: &until}, nil
		},
	}, "sys")

	p, err := svc.Resolve(context.Background(), "p1")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p.TrusteeID != "u2" {
		t.Fatalf("person=%+v", p)
	}
}

func TestCanMutateExpiredTrusteeReason(t *testing.T) {
	restore := nowUTC
	defer func() { nowUTC = restore }()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	nowUTC = func() time.Time { return now }

	until := now.Add(-time.Minute)
	svc := NewPersonService(personStoreStub{
		getPersonFn: func(_ context.Context, id string) (types.Person, error) {
			return types.Person{ID: id, OwnerID: "u1", TrusteeID: "u2", TrusteeUntil: &until}, nil
		},
		clearTrusteeFn: func(_ context.Context, _ string, _ audittypes.Record) error { return nil },
	}, "sys")

	err := svc.CanMutate(context.Background(), CanMutateRequest{PersonID: "p1", InitiatorID: "u2"})
	if err == nil || !httperr.IsForbidden(err) || httperr.ForbiddenReason(err) != "expired_trustee" {
		t.Fatalf("err=%v", err)
	}
}

func TestCanMutateOwnerModeratorTrustee(t *testing.T) {
	restore := nowUTC
	defer func() { nowUTC = restore }()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	nowUTC = func() time.Time { return now }

	until := now.Add(time.Hour)
	store := personStoreStub{
		getPersonFn: func(_ context.Context, id string) (types.Person, error) {
			return types.Person{ID: id, OwnerID: "u1", ModeratorID: "u2", TrusteeID: "u3", TrusteeUntil: &until}, nil
		},
	}
	svc := NewPersonService(store, "sys")

	for _, actor := range []string{"u1", "u2", "u3"} {
		if err := svc.CanMutate(context.Background(), CanMutateRequest{PersonID: "p1", InitiatorID: actor}); err != nil {
			t.Fatalf("actor=%s err=%v", actor, err)
		}
	}
	err := svc.CanMutate(context.Background(), CanMutateRequest{PersonID: "p1", InitiatorID: "u9"})
	if err == nil || !httperr.IsForbidden(err) || httperr.ForbiddenReason(err) != "not_owner" {
		t.Fatalf("err=%v", err)
	}
	if err := svc.CanMutate(context.Background(), CanMutateRequest{PersonID: "p1", InitiatorID: "u9", InitiatorAdmin: true}); err != nil {
		t.Fatalf("admin err=%v", err)
	}
}

func TestRootRejectsSelf(t *testing.T) {
	svc := NewPersonService(personStoreStub{}, "sys")
	err := svc.Root(context.Background(), RootRequest{SourcePersonID: "p1", TargetPersonID: "p1", InitiatorID: "u1"})
	if err == nil || !httperr.IsValidation(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestRootRejectsUnreachableTarget(t *testing.T) {
	svc := NewPersonService(personStoreStub{
		getPersonFn: func(_ context.Context, id string) (types.Person, error) {
			if id == "p1" {
				return types.Person{ID: id, OwnerID: "u1"}, nil
			}
			// Other owner, discovery off.
			return types.Person{ID: id, OwnerID: "u2"}, nil
		},
	}, "sys")
	err := svc.Root(context.Background(), RootRequest{SourcePersonID: "p1", TargetPersonID: "p2", InitiatorID: "u1"})
	if err == nil || !httperr.IsForbidden(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestRootDiscoverableTargetInOpenGrove(t *testing.T) {
	var created *types.PersonRoot
	var memberships []grovetypes.Membership
	svc := NewPersonService(personStoreStub{
		getPersonFn: func(_ context.Context, id string) (types.Person, error) {
			if id == "p1" {
				return types.Person{ID: id, OwnerID: "u1"}, nil
			}
			return types.Person{ID: id, OwnerID: "u2", Discovery: true}, nil
		},
		originalGroveFn: func(_ context.Context, id string) (string, error) {
			if id == "p1" {
				return "g-private", nil
			}
			return "g-open", nil
		},
		openGroveFn:      func(_ context.Context) (string, error) { return "g-open", nil },
		findActiveRootFn: func(_ context.Context, _ types.RootPair) (types.PersonRoot, error) { return types.PersonRoot{}, ports.ErrRootNotFound },
		createRootFn: func(_ context.Context, root types.PersonRoot, ms []grovetypes.Membership, rec audittypes.Record) error {
			created = &root
			memberships = ms
			if rec.Action != "ROOT" {
				t.Fatalf("action=%q", rec.Action)
			}
			return nil
		},
	}, "sys")

	if err := svc.Root(context.Background(), RootRequest{SourcePersonID: "p2", TargetPersonID: "p1", InitiatorID: "u2"}); err == nil {
		// p1 is neither owned by u2 nor discoverable.
		t.Fatalf("expected forbidden for non-discoverable target")
	}
	if err := svc.Root(context.Background(), RootRequest{SourcePersonID: "p1", TargetPersonID: "p2", InitiatorID: "u1"}); err != nil {
		t.Fatalf("err=%v", err)
	}
	if created == nil || created.Pair.A != "p1" || created.Pair.B != "p2" {
		t.Fatalf("root=%+v", created)
	}
	if len(memberships) != 2 {
		t.Fatalf("memberships=%d", len(memberships))
	}
	// Each person lands in the other's original grove, never metered.
	for _, m := range memberships {
		if m.IsOriginal || m.AdoptionType != grovetypes.AdoptionRooted {
			t.Fatalf("membership=%+v", m)
		}
	}
}

func TestRootConflictIsSymmetric(t *testing.T) {
	svc := NewPersonService(personStoreStub{
		getPersonFn: func(_ context.Context, id string) (types.Person, error) {
			return types.Person{ID: id, OwnerID: "u1"}, nil
		},
		findActiveRootFn: func(_ context.Context, pair types.RootPair) (types.PersonRoot, error) {
			if pair.A == "p1" && pair.B == "p2" {
				return types.PersonRoot{ID: "r1", Pair: pair, Status: types.RootActive}, nil
			}
			return types.PersonRoot{}, ports.ErrRootNotFound
		},
	}, "sys")

	for _, order := range [][2]string{{"p1", "p2"}, {"p2", "p1"}} {
		err := svc.Root(context.Background(), RootRequest{SourcePersonID: order[0], TargetPersonID: order[1], InitiatorID: "u1"})
		if err == nil || !httperr.IsConflict(err) {
			t.Fatalf("order=%v err=%v", order, err)
		}
	}
}

func TestIsRootedSymmetric(t *testing.T) {
	svc := NewPersonService(personStoreStub{
		findActiveRootFn: func(_ context.Context, pair types.RootPair) (types.PersonRoot, error) {
			if pair.A == "a" && pair.B == "b" {
				return types.PersonRoot{ID: "r1", Pair: pair, Status: types.RootActive}, nil
			}
			return types.PersonRoot{}, ports.ErrRootNotFound
		},
	}, "sys")

	for _, order := range [][2]string{{"a", "b"}, {"b", "a"}} {
		rooted, err := svc.IsRooted(context.Background(), order[0], order[1])
		if err != nil || !rooted {
			t.Fatalf("order=%v rooted=%v err=%v", order, rooted, err)
		}
	}
}

func TestCheckDuplicatesFiltersByThreshold(t *testing.T) {
	svc := NewPersonService(personStoreStub{
		listLegacyFn: func(_ context.Context, _ string) ([]types.Person, error) {
			return []types.Person{
				{ID: "p1", Name: "Margaret Rose Hill", OwnerID: "u2", MemoryCount: 3, Discovery: true},
				{ID: "p2", Name: "margaret rose hill"},
				{ID: "p3", Name: "Thomas Whitfield"},
			}, nil
		},
	}, "sys")

	out, err := svc.CheckDuplicates(context.Background(), DuplicateCheckRequest{Name: "Margaret Rose Hill", DeathDate: "1991-03-01"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(out) != 2 {
		t.Fatalf("candidates=%+v", out)
	}
	for _, c := range out {
		if c.Similarity != 1.0 {
			t.Fatalf("candidate=%+v", c)
		}
	}
}

func TestCheckDuplicatesRequiresValidDate(t *testing.T) {
	svc := NewPersonService(personStoreStub{}, "sys")
	if _, err := svc.CheckDuplicates(context.Background(), DuplicateCheckRequest{Name: "Ada", DeathDate: "yesterday"}); err == nil || !httperr.IsValidation(err) {
		t.Fatalf("err=%v", err)
	}
}
