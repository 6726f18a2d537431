package services

import (
	"context"
	"errors"
	"strings"
	"time"

	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/httperr"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/uuidv7"
)

const (
	errGroveInvalidArgument  = "GROVE_INVALID_ARGUMENT"
	errGroveNotFound         = "GROVE_NOT_FOUND"
	errTreeNotFound          = "TREE_NOT_FOUND"
	errPersonNotFound        = "PERSON_NOT_FOUND"
	errGroveNotOwned         = "GROVE_NOT_OWNED"
	errPersonNotOwned        = "PERSON_NOT_OWNED"
	errGroveCapacityExceeded = "GROVE_CAPACITY_EXCEEDED"
	errSameGrove             = "TRANSPLANT_SAME_GROVE"
	errPersonNotLegacy       = "PERSON_NOT_LEGACY"
	errAlreadyAdopted        = "PERSON_ALREADY_ADOPTED"
	errGroveCanceled         = "GROVE_SUBSCRIPTION_CANCELED"
	errGroveStatusUnchanged  = "GROVE_STATUS_UNCHANGED"
	errOpenGroveImmutable    = "OPEN_GROVE_IMMUTABLE"
)

const (
	actionTransplant = "TRANSPLANT"
	actionAdopt      = "ADOPT"
	actionFreeze     = "GROVE_FREEZE"
	actionThaw       = "GROVE_THAW"
	actionCancel     = "GROVE_CANCEL"
)

var (
	newUUID = uuidv7.NewString
	nowUTC  = func() time.Time { return time.Now().UTC() }
)

type GroveWriteService interface {
	Transplant(ctx context.Context, req TransplantRequest) error
	Adopt(ctx context.Context, req AdoptRequest) error
	Freeze(ctx context.Context, req SubscriptionEventRequest) error
	Thaw(ctx context.Context, req SubscriptionEventRequest) error
	Cancel(ctx context.Context, req SubscriptionEventRequest) error
}

type TransplantRequest struct {
	TreeID             string
	DestinationGroveID string
	InitiatorID        string
	InitiatorAdmin     bool
}

type AdoptRequest struct {
	PersonID           string
	DestinationGroveID string
	InitiatorID        string
	InitiatorAdmin     bool
}

// SubscriptionEventRequest carries a billing-driven status toggle. The
// initiator is the configured system actor, not an end user.
type SubscriptionEventRequest struct {
	GroveID     string
	InitiatorID string
}

type groveWriteService struct {
	store ports.GroveStore
}

func NewGroveWriteService(store ports.GroveStore) GroveWriteService {
	return &groveWriteService{store: store}
}

func (s *groveWriteService) Transplant(ctx context.Context, req TransplantRequest) error {
	treeID := strings.TrimSpace(req.TreeID)
	destID := strings.TrimSpace(req.DestinationGroveID)
	if treeID == "" || destID == "" || strings.TrimSpace(req.InitiatorID) == "" {
		return httperr.NewValidation(errGroveInvalidArgument)
	}

	tree, err := s.store.GetTree(ctx, treeID)
	if err != nil {
		return mapStoreErr(err)
	}
	if tree.GroveID == destID {
		return httperr.NewConflict(errSameGrove)
	}
	src, err := s.store.GetGrove(ctx, tree.GroveID)
	if err != nil {
		return mapStoreErr(err)
	}
	dest, err := s.store.GetGrove(ctx, destID)
	if err != nil {
		return mapStoreErr(err)
	}
	if !req.InitiatorAdmin {
		if src.OwnerID != req.InitiatorID || dest.OwnerID != req.InitiatorID {
			return httperr.NewForbidden(errGroveNotOwned, "not_owner")
		}
	}

	// Legacy trees move without slot accounting.
	adjust := !tree.IsLegacy
	if adjust && !dest.HasCapacity() {
		return httperr.NewCapacityExceeded(errGroveCapacityExceeded)
	}

	id, err := newUUID()
	if err != nil {
		return err
	}
	rec := audittypes.Record{
		ID:         id,
		ActorID:    req.InitiatorID,
		Action:     actionTransplant,
		TargetType: audittypes.TargetTree,
		TargetID:   treeID,
		Metadata:   map[string]string{"from_grove": tree.GroveID, "to_grove": destID},
		CreatedAt:  nowUTC(),
	}
	return mapStoreErr(s.store.Transplant(ctx, treeID, destID, adjust, rec))
}

func (s *groveWriteService) Adopt(ctx context.Context, req AdoptRequest) error {
	personID := strings.TrimSpace(req.PersonID)
	destID := strings.TrimSpace(req.DestinationGroveID)
	if personID == "" || destID == "" || strings.TrimSpace(req.InitiatorID) == "" {
		return httperr.NewValidation(errGroveInvalidArgument)
	}

	person, err := s.store.GetPersonRef(ctx, personID)
	if err != nil {
		return mapStoreErr(err)
	}
	if !person.Legacy {
		return httperr.NewConflict(errPersonNotLegacy)
	}
	if !req.InitiatorAdmin && person.OwnerID != req.InitiatorID {
		return httperr.NewForbidden(errPersonNotOwned, "not_owner")
	}
	dest, err := s.store.GetGrove(ctx, destID)
	if err != nil {
		return mapStoreErr(err)
	}
	if dest.IsOpenGrove {
		return httperr.NewValidation(errGroveInvalidArgument)
	}
	if !req.InitiatorAdmin && dest.OwnerID != req.InitiatorID {
		return httperr.NewForbidden(errGroveNotOwned, "not_owner")
	}
	original, err := s.store.GetOriginalMembership(ctx, personID)
	if err != nil {
		return mapStoreErr(err)
	}
	open, err := s.store.GetOpenGrove(ctx)
	if err != nil {
		return mapStoreErr(err)
	}
	if original.GroveID != open.ID {
		return httperr.NewConflict(errAlreadyAdopted)
	}
	if !dest.HasCapacity() {
		return httperr.NewCapacityExceeded(errGroveCapacityExceeded)
	}

	id, err := newUUID()
	if err != nil {
		return err
	}
	rec := audittypes.Record{
		ID:         id,
		ActorID:    req.InitiatorID,
		Action:     actionAdopt,
		TargetType: audittypes.TargetPerson,
		TargetID:   personID,
		Metadata:   map[string]string{"to_grove": destID, "tree": person.TreeID},
		CreatedAt:  nowUTC(),
	}
	return mapStoreErr(s.store.Adopt(ctx, personID, person.TreeID, destID, rec))
}

func (s *groveWriteService) Freeze(ctx context.Context, req SubscriptionEventRequest) error {
	return s.setStatus(ctx, req, types.GroveFrozen, actionFreeze)
}

func (s *groveWriteService) Thaw(ctx context.Context, req SubscriptionEventRequest) error {
	return s.setStatus(ctx, req, types.GroveActive, actionThaw)
}

func (s *groveWriteService) Cancel(ctx context.Context, req SubscriptionEventRequest) error {
	return s.setStatus(ctx, req, types.GroveCanceled, actionCancel)
}

func (s *groveWriteService) setStatus(ctx context.Context, req SubscriptionEventRequest, to types.GroveStatus, action string) error {
	groveID := strings.TrimSpace(req.GroveID)
	if groveID == "" || strings.TrimSpace(req.InitiatorID) == "" {
		return httperr.NewValidation(errGroveInvalidArgument)
	}
	grove, err := s.store.GetGrove(ctx, groveID)
	if err != nil {
		return mapStoreErr(err)
	}
	if grove.IsOpenGrove {
		return httperr.NewConflict(errOpenGroveImmutable)
	}
	if grove.Status == types.GroveCanceled && to != types.GroveCanceled {
		return httperr.NewConflict(errGroveCanceled)
	}
	if grove.Status == to {
		return httperr.NewConflict(errGroveStatusUnchanged)
	}

	id, err := newUUID()
	if err != nil {
		return err
	}
	rec := audittypes.Record{
		ID:         id,
		ActorID:    req.InitiatorID,
		Action:     action,
		TargetType: audittypes.TargetGrove,
		TargetID:   groveID,
		Metadata:   map[string]string{"from": string(grove.Status), "to": string(to)},
		CreatedAt:  nowUTC(),
	}
	return mapStoreErr(s.store.SetGroveStatus(ctx, groveID, to, rec))
}

func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ports.ErrGroveNotFound):
		return httperr.NewNotFound(errGroveNotFound)
	case errors.Is(err, ports.ErrTreeNotFound):
		return httperr.NewNotFound(errTreeNotFound)
	case errors.Is(err, ports.ErrPersonNotFound):
		return httperr.NewNotFound(errPersonNotFound)
	case errors.Is(err, ports.ErrMembershipNotFound):
		return httperr.NewNotFound(errPersonNotFound)
	case errors.Is(err, ports.ErrCapacityExceeded):
		return httperr.NewCapacityExceeded(errGroveCapacityExceeded)
	default:
		return err
	}
}
