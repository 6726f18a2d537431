package services

import (
	"context"
	"errors"
	"testing"

	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/httperr"
)

type groveStoreStub struct {
	getGroveFn          func(ctx context.Context, groveID string) (types.Grove, error)
	getOpenGroveFn      func(ctx context.Context) (types.Grove, error)
	getTreeFn           func(ctx context.Context, treeID string) (types.Tree, error)
	getPersonRefFn      func(ctx context.Context, personID string) (ports.PersonRef, error)
	getOriginalFn       func(ctx context.Context, personID string) (types.Membership, error)
	listMembershipsFn   func(ctx context.Context, personID string) ([]types.Membership, error)
	setGroveStatusFn    func(ctx context.Context, groveID string, status types.GroveStatus, rec audittypes.Record) error
	transplantFn        func(ctx context.Context, treeID string, destGroveID string, adjustCounters bool, rec audittypes.Record) error
	adoptFn             func(ctx context.Context, personID string, treeID string, destGroveID string, rec audittypes.Record) error
	insertMembershipsFn func(ctx context.Context, memberships []types.Membership, rec audittypes.Record) error
}

func (s groveStoreStub) GetGrove(ctx context.Context, groveID string) (types.Grove, error) {
	if s.getGroveFn == nil {
		return types.Grove{}, errors.New("GetGrove not mocked")
	}
	return s.getGroveFn(ctx, groveID)
}

func (s groveStoreStub) GetOpenGrove(ctx context.Context) (types.Grove, error) {
	if s.getOpenGroveFn == nil {
		return types.Grove{}, errors.New("GetOpenGrove not mocked")
	}
	return s.getOpenGroveFn(ctx)
}

func (s groveStoreStub) GetTree(ctx context.Context, treeID string) (types.Tree, error) {
	if s.getTreeFn == nil {
		return types.Tree{}, errors.New("GetTree not mocked")
	}
	return s.getTreeFn(ctx, treeID)
}

func (s groveStoreStub) GetPersonRef(ctx context.Context, personID string) (ports.PersonRef, error) {
	if s.getPersonRefFn == nil {
		return ports.PersonRef{}, errors.New("GetPersonRef not mocked")
	}
	return s.getPersonRefFn(ctx, personID)
}

func (s groveStoreStub) GetOriginalMembership(ctx context.Context, personID string) (types.Membership, error) {
	if s.getOriginalFn == nil {
		return types.Membership{}, errors.New("GetOriginalMembership not mocked")
	}
	return s.getOriginalFn(ctx, personID)
}

func (s groveStoreStub) ListMembershipsForPerson(ctx context.Context, personID string) ([]types.Membership, error) {
	if s.listMembershipsFn == nil {
		return nil, errors.New("ListMembershipsForPerson not mocked")
	}
	return s.listMembershipsFn(ctx, personID)
}

func (s groveStoreStub) SetGroveStatus(ctx context.Context, groveID string, status types.GroveStatus, rec audittypes.Record) error {
	if s.setGroveStatusFn == nil {
		return errors.New("SetGroveStatus not mocked")
	}
	return s.setGroveStatusFn(ctx, groveID, status, rec)
}

func (s groveStoreStub) Transplant(ctx context.Context, treeID string, destGroveID string, adjustCounters bool, rec audittypes.Record) error {
	if s.transplantFn == nil {
		return errors.New("Transplant not mocked")
	}
	return s.transplantFn(ctx, treeID, destGroveID, adjustCounters, rec)
}

func (s groveStoreStub) Adopt(ctx context.Context, personID string, treeID string, destGroveID string, rec audittypes.Record) error {
	if s.adoptFn == nil {
		return errors.New("Adopt not mocked")
	}
	return s.adoptFn(ctx, personID, treeID, destGroveID, rec)
}

func (s groveStoreStub) InsertLinkedMemberships(ctx context.Context, memberships []types.Membership, rec audittypes.Record) error {
	if s.insertMembershipsFn == nil {
		return errors.New("InsertLinkedMemberships not mocked")
	}
	return s.insertMembershipsFn(ctx, memberships, rec)
}

func TestTransplantRejectsMissingFields(t *testing.T) {
	svc := NewGroveWriteService(groveStoreStub{})
	err := svc.Transplant(context.Background(), TransplantRequest{TreeID: " ", DestinationGroveID: "g2", InitiatorID: "u1"})
	if err == nil || !httperr.IsValidation(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestTransplantRejectsSameGrove(t *testing.T) {
	svc := NewGroveWriteService(groveStoreStub{
		getTreeFn: func(_ context.Context, _ string) (types.Tree, error) {
			return types.Tree{ID: "t1", GroveID: "g1"}, nil
		},
	})
	err := svc.Transplant(context.Background(), TransplantRequest{TreeID: "t1", DestinationGroveID: "g1", InitiatorID: "u1"})
	if err == nil || !httperr.IsConflict(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestTransplantRequiresOwnershipOfBothGroves(t *testing.T) {
	svc := NewGroveWriteService(groveStoreStub{
		getTreeFn: func(_ context.Context, _ string) (types.Tree, error) {
			return types.Tree{ID: "t1", GroveID: "g1"}, nil
		},
		getGroveFn: func(_ context.Context, id string) (types.Grove, error) {
			owner := "u1"
			if id == "g2" {
				owner = "u2"
			}
			return types.Grove{ID: id, OwnerID: owner, TreeLimit: 5}, nil
		},
	})
	err := svc.Transplant(context.Background(), TransplantRequest{TreeID: "t1", DestinationGroveID: "g2", InitiatorID: "u1"})
	if err == nil || !httperr.IsForbidden(err) || httperr.ForbiddenReason(err) != "not_owner" {
		t.Fatalf("err=%v", err)
	}
}

func TestTransplantLivingTreeChecksCapacity(t *testing.T) {
	svc := NewGroveWriteService(groveStoreStub{
		getTreeFn: func(_ context.Context, _ string) (types.Tree, error) {
			return types.Tree{ID: "t1", GroveID: "g1", IsLegacy: false}, nil
		},
		getGroveFn: func(_ context.Context, id string) (types.Grove, error) {
			g := types.Grove{ID: id, OwnerID: "u1", TreeLimit: 1, TreeCount: 0}
			if id == "g2" {
				g.TreeCount = 1
			}
			return g, nil
		},
	})
	err := svc.Transplant(context.Background(), TransplantRequest{TreeID: "t1", DestinationGroveID: "g2", InitiatorID: "u1"})
	if err == nil || !httperr.IsCapacityExceeded(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestTransplantLegacyTreeSkipsCounters(t *testing.T) {
	var gotAdjust *bool
	svc := NewGroveWriteService(groveStoreStub{
		getTreeFn: func(_ context.Context, _ string) (types.Tree, error) {
			return types.Tree{ID: "t1", GroveID: "g1", IsLegacy: true}, nil
		},
		getGroveFn: func(_ context.Context, id string) (types.Grove, error) {
			// Destination is full; a legacy tree must still move.
			return types.Grove{ID: id, OwnerID: "u1", TreeLimit: 1, TreeCount: 1}, nil
		},
		transplantFn: func(_ context.Context, _ string, _ string, adjust bool, rec audittypes.Record) error {
			gotAdjust = &adjust
			if rec.Action != "TRANSPLANT" {
				t.Fatalf("action=%q", rec.Action)
			}
			return nil
		},
	})
	if err := svc.Transplant(context.Background(), TransplantRequest{TreeID: "t1", DestinationGroveID: "g2", InitiatorID: "u1"}); err != nil {
		t.Fatalf("err=%v", err)
	}
	if gotAdjust == nil || *gotAdjust {
		t.Fatalf("adjust=%v", gotAdjust)
	}
}

func TestAdoptRejectsLivingPerson(t *testing.T) {
	svc := NewGroveWriteService(groveStoreStub{
		getPersonRefFn: func(_ context.Context, _ string) (ports.PersonRef, error) {
			return ports.PersonRef{ID: "p1", OwnerID: "u1", Legacy: false}, nil
		},
	})
	err := svc.Adopt(context.Background(), AdoptRequest{PersonID: "p1", DestinationGroveID: "g2", InitiatorID: "u1"})
	if err == nil || !httperr.IsConflict(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestAdoptRejectsNonOwner(t *testing.T) {
	svc := NewGroveWriteService(groveStoreStub{
		getPersonRefFn: func(_ context.Context, _ string) (ports.PersonRef, error) {
			return ports.PersonRef{ID: "p1", OwnerID: "u2", Legacy: true}, nil
		},
	})
	err := svc.Adopt(context.Background(), AdoptRequest{PersonID: "p1", DestinationGroveID: "g2", InitiatorID: "u1"})
	if err == nil || !httperr.IsForbidden(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestAdoptRejectsSecondAdoption(t *testing.T) {
	svc := NewGroveWriteService(groveStoreStub{
		getPersonRefFn: func(_ context.Context, _ string) (ports.PersonRef, error) {
			return ports.PersonRef{ID: "p1", OwnerID: "u1", Legacy: true, TreeID: "t1"}, nil
		},
		getGroveFn: func(_ context.Context, id string) (types.Grove, error) {
			return types.Grove{ID: id, OwnerID: "u1", TreeLimit: 5}, nil
		},
		getOriginalFn: func(_ context.Context, _ string) (types.Membership, error) {
			return types.Membership{ID: "m1", GroveID: "g-private", PersonID: "p1", IsOriginal: true}, nil
		},
		getOpenGroveFn: func(_ context.Context) (types.Grove, error) {
			return types.Grove{ID: "g-open", IsOpenGrove: true}, nil
		},
	})
	err := svc.Adopt(context.Background(), AdoptRequest{PersonID: "p1", DestinationGroveID: "g2", InitiatorID: "u1"})
	if err == nil || !httperr.IsConflict(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestAdoptCapacity(t *testing.T) {
	svc := NewGroveWriteService(groveStoreStub{
		getPersonRefFn: func(_ context.Context, _ string) (ports.PersonRef, error) {
			return ports.PersonRef{ID: "p1", OwnerID: "u1", Legacy: true, TreeID: "t1"}, nil
		},
		getGroveFn: func(_ context.Context, id string) (types.Grove, error) {
			return types.Grove{ID: id, OwnerID: "u1", TreeLimit: 1, TreeCount: 1}, nil
		},
		getOriginalFn: func(_ context.Context, _ string) (types.Membership, error) {
			return types.Membership{ID: "m1", GroveID: "g-open", PersonID: "p1", IsOriginal: true}, nil
		},
		getOpenGroveFn: func(_ context.Context) (types.Grove, error) {
			return types.Grove{ID: "g-open", IsOpenGrove: true}, nil
		},
	})
	err := svc.Adopt(context.Background(), AdoptRequest{PersonID: "p1", DestinationGroveID: "g2", InitiatorID: "u1"})
	if err == nil || !httperr.IsCapacityExceeded(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestFreezeThawCancelTransitions(t *testing.T) {
	status := types.GroveActive
	svc := NewGroveWriteService(groveStoreStub{
		getGroveFn: func(_ context.Context, id string) (types.Grove, error) {
			return types.Grove{ID: id, OwnerID: "u1", Status: status}, nil
		},
		setGroveStatusFn: func(_ context.Context, _ string, to types.GroveStatus, _ audittypes.Record) error {
			status = to
			return nil
		},
	})

	req := SubscriptionEventRequest{GroveID: "g1", InitiatorID: "sys"}
	if err := svc.Freeze(context.Background(), req); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := svc.Freeze(context.Background(), req); err == nil || !httperr.IsConflict(err) {
		t.Fatalf("repeat freeze err=%v", err)
	}
	if err := svc.Thaw(context.Background(), req); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := svc.Cancel(context.Background(), req); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := svc.Thaw(context.Background(), req); err == nil || !httperr.IsConflict(err) {
		t.Fatalf("thaw after cancel err=%v", err)
	}
}

func TestFreezeRejectsOpenGrove(t *testing.T) {
	svc := NewGroveWriteService(groveStoreStub{
		getGroveFn: func(_ context.Context, id string) (types.Grove, error) {
			return types.Grove{ID: id, IsOpenGrove: true, Status: types.GroveActive}, nil
		},
	})
	err := svc.Freeze(context.Background(), SubscriptionEventRequest{GroveID: "g-open", InitiatorID: "sys"})
	if err == nil || !httperr.IsConflict(err) {
		t.Fatalf("err=%v", err)
	}
}
