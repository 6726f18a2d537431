package services

import (
	"context"
	"testing"
	"time"

	auditpersistence "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/infrastructure/persistence"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/types"
	branchmem "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/infrastructure/persistence"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/httperr"
)

type guardStub struct {
	allow map[string]bool // personID + "/" + actorID
}

func (g guardStub) CanMutate(_ context.Context, personID string, actorID string, admin bool) error {
	if admin || g.allow[personID+"/"+actorID] {
		return nil
	}
	return httperr.NewForbidden("PERSON_NOT_OWNED", "not_owner")
}

type requestFixture struct {
	store   *branchmem.MemoryStore
	svc     RequestService
	advance func(time.Time)
	start   time.Time
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()
	store := branchmem.NewMemoryStore(newPersonCounterStub(), auditpersistence.NewMemoryLog())
	store.SeedBranch(types.Branch{ID: "b1", TreeID: "t1", OwnerID: "owner", Status: types.BranchActive})
	store.SeedBranch(types.Branch{ID: "b2", TreeID: "t1", OwnerID: "owner", Status: types.BranchActive})
	guard := guardStub{allow: map[string]bool{"p1/keeper": true, "p2/keeper": true}}
	svc := NewRequestService(store, store, guard, DefaultRequestTTL, DefaultInviteTTL, "sys")

	restore := nowUTC
	t.Cleanup(func() { nowUTC = restore })
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := start
	nowUTC = func() time.Time { return current }
	return &requestFixture{store: store, svc: svc, advance: func(next time.Time) { current = next }, start: start}
}

func TestIssueRequestAndReissueRotatesToken(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	r1, err := f.svc.IssueRequest(ctx, IssueRequestRequest{BranchID: "b1", PersonID: "p1", InitiatorID: "owner"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if r1.Status != types.RequestPending || !r1.ExpiresAt.Equal(f.start.Add(30*24*time.Hour)) {
		t.Fatalf("request=%+v", r1)
	}

	f.advance(f.start.Add(time.Hour))
	r2, err := f.svc.IssueRequest(ctx, IssueRequestRequest{BranchID: "b1", PersonID: "p1", InitiatorID: "owner"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if r2.ID != r1.ID {
		t.Fatalf("expected one row, got %s and %s", r1.ID, r2.ID)
	}
	if r2.Token == r1.Token {
		t.Fatal("token not rotated")
	}
	if !r2.ExpiresAt.After(r1.ExpiresAt) {
		t.Fatalf("expiry not reset: %v <= %v", r2.ExpiresAt, r1.ExpiresAt)
	}

	// The old token no longer resolves.
	err = f.svc.AcceptRequest(ctx, ResolveRequestRequest{Token: r1.Token, InitiatorID: "keeper"})
	if err == nil || !httperr.IsNotFound(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestIssueRequestOnlyBranchOwner(t *testing.T) {
	f := newRequestFixture(t)
	_, err := f.svc.IssueRequest(context.Background(), IssueRequestRequest{BranchID: "b1", PersonID: "p1", InitiatorID: "stranger"})
	if err == nil || !httperr.IsForbidden(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestAcceptRequestBindsBranch(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	r, _ := f.svc.IssueRequest(ctx, IssueRequestRequest{BranchID: "b1", PersonID: "p1", InitiatorID: "owner"})

	// Only an actor who can act for the person may accept.
	err := f.svc.AcceptRequest(ctx, ResolveRequestRequest{Token: r.Token, InitiatorID: "stranger"})
	if err == nil || !httperr.IsForbidden(err) {
		t.Fatalf("err=%v", err)
	}
	if err := f.svc.AcceptRequest(ctx, ResolveRequestRequest{Token: r.Token, InitiatorID: "keeper"}); err != nil {
		t.Fatalf("err=%v", err)
	}

	b, _ := f.store.GetBranch(ctx, "b1")
	if b.PersonID != "p1" {
		t.Fatalf("branch=%+v", b)
	}

	// Accepting again conflicts; issuing for a bound branch conflicts.
	if err := f.svc.AcceptRequest(ctx, ResolveRequestRequest{Token: r.Token, InitiatorID: "keeper"}); err == nil || !httperr.IsConflict(err) {
		t.Fatalf("err=%v", err)
	}
	if _, err := f.svc.IssueRequest(ctx, IssueRequestRequest{BranchID: "b1", PersonID: "p2", InitiatorID: "owner"}); err == nil || !httperr.IsConflict(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestAcceptRequestRejectsAlreadyBoundPerson(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	r1, _ := f.svc.IssueRequest(ctx, IssueRequestRequest{BranchID: "b1", PersonID: "p1", InitiatorID: "owner"})
	r2, _ := f.svc.IssueRequest(ctx, IssueRequestRequest{BranchID: "b2", PersonID: "p1", InitiatorID: "owner"})

	if err := f.svc.AcceptRequest(ctx, ResolveRequestRequest{Token: r1.Token, InitiatorID: "keeper"}); err != nil {
		t.Fatalf("err=%v", err)
	}
	err := f.svc.AcceptRequest(ctx, ResolveRequestRequest{Token: r2.Token, InitiatorID: "keeper"})
	if err == nil || !httperr.IsConflict(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestRequestLazyExpiry(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	r, _ := f.svc.IssueRequest(ctx, IssueRequestRequest{BranchID: "b1", PersonID: "p1", InitiatorID: "owner"})

	f.advance(f.start.Add(31 * 24 * time.Hour))
	err := f.svc.AcceptRequest(ctx, ResolveRequestRequest{Token: r.Token, InitiatorID: "keeper"})
	if err == nil || !httperr.IsExpired(err) {
		t.Fatalf("err=%v", err)
	}

	// The transition was persisted, and the branch stayed unbound.
	stored, err := f.store.GetRequestByToken(ctx, r.Token)
	if err != nil || stored.Status != types.RequestExpired {
		t.Fatalf("request=%+v err=%v", stored, err)
	}
	b, _ := f.store.GetBranch(ctx, "b1")
	if b.PersonID != "" {
		t.Fatalf("branch=%+v", b)
	}

	// Reissue revives the expired row.
	r2, err := f.svc.IssueRequest(ctx, IssueRequestRequest{BranchID: "b1", PersonID: "p1", InitiatorID: "owner"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if r2.ID != r.ID || r2.Status != types.RequestPending {
		t.Fatalf("request=%+v", r2)
	}
}

func TestDeclineRequestIsFinal(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	r, _ := f.svc.IssueRequest(ctx, IssueRequestRequest{BranchID: "b1", PersonID: "p1", InitiatorID: "owner"})

	if err := f.svc.DeclineRequest(ctx, ResolveRequestRequest{Token: r.Token, InitiatorID: "keeper"}); err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := f.svc.IssueRequest(ctx, IssueRequestRequest{BranchID: "b1", PersonID: "p1", InitiatorID: "owner"}); err == nil || !httperr.IsConflict(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestInviteLifecycle(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	i1, err := f.svc.IssueInvite(ctx, IssueInviteRequest{BranchID: "b1", Email: "Friend@Example.COM", InitiatorID: "owner"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if i1.Email != "friend@example.com" || !i1.ExpiresAt.Equal(f.start.Add(7*24*time.Hour)) {
		t.Fatalf("invite=%+v", i1)
	}

	// Reissue for the same address rotates in place.
	i2, err := f.svc.IssueInvite(ctx, IssueInviteRequest{BranchID: "b1", Email: "friend@example.com", InitiatorID: "owner"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if i2.ID != i1.ID || i2.Token == i1.Token {
		t.Fatalf("invites=%+v %+v", i1, i2)
	}

	if err := f.svc.AcceptInvite(ctx, ResolveInviteRequest{Token: i2.Token, InitiatorID: "friend-user"}); err != nil {
		t.Fatalf("err=%v", err)
	}
	m, err := f.store.GetMember(ctx, "b1", "friend-user")
	if err != nil || m.Status != types.MemberApproved {
		t.Fatalf("member=%+v err=%v", m, err)
	}
}

func TestInviteApprovalGateLandsPending(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	prefs := types.DefaultPreferences("b1")
	prefs.RequireApproval = true
	if err := f.store.UpsertPreferences(ctx, prefs, testAuditRecord()); err != nil {
		t.Fatalf("err=%v", err)
	}

	i, _ := f.svc.IssueInvite(ctx, IssueInviteRequest{BranchID: "b1", Email: "x@y.z", InitiatorID: "owner"})
	if err := f.svc.AcceptInvite(ctx, ResolveInviteRequest{Token: i.Token, InitiatorID: "newcomer"}); err != nil {
		t.Fatalf("err=%v", err)
	}
	m, err := f.store.GetMember(ctx, "b1", "newcomer")
	if err != nil || m.Status != types.MemberPending {
		t.Fatalf("member=%+v err=%v", m, err)
	}
}

func TestInviteLazyExpiry(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	i, _ := f.svc.IssueInvite(ctx, IssueInviteRequest{BranchID: "b1", Email: "x@y.z", InitiatorID: "owner"})

	f.advance(f.start.Add(8 * 24 * time.Hour))
	err := f.svc.AcceptInvite(ctx, ResolveInviteRequest{Token: i.Token, InitiatorID: "late"})
	if err == nil || !httperr.IsExpired(err) {
		t.Fatalf("err=%v", err)
	}
	stored, err := f.store.GetInviteByToken(ctx, i.Token)
	if err != nil || stored.Status != types.RequestExpired {
		t.Fatalf("invite=%+v err=%v", stored, err)
	}
}
