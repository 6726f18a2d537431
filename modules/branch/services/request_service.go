package services

import (
	"context"
	"errors"
	"strings"
	"time"

	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/httperr"
)

const (
	// DefaultRequestTTL bounds a shareable connection-request link.
	DefaultRequestTTL = 30 * 24 * time.Hour
	// DefaultInviteTTL bounds a named invite.
	DefaultInviteTTL = 7 * 24 * time.Hour
)

// PersonGuard answers whether an actor may act for a person. Accepting or
// declining a connection request is an act on the person's behalf.
type PersonGuard interface {
	CanMutate(ctx context.Context, personID string, actorID string, admin bool) error
}

type RequestService interface {
	IssueRequest(ctx context.Context, req IssueRequestRequest) (types.ConnectionRequest, error)
	AcceptRequest(ctx context.Context, req ResolveRequestRequest) error
	DeclineRequest(ctx context.Context, req ResolveRequestRequest) error

	IssueInvite(ctx context.Context, req IssueInviteRequest) (types.Invite, error)
	AcceptInvite(ctx context.Context, req ResolveInviteRequest) error
	DeclineInvite(ctx context.Context, req ResolveInviteRequest) error
}

type IssueRequestRequest struct {
	BranchID       string
	PersonID       string
	InitiatorID    string
	InitiatorAdmin bool
}

type ResolveRequestRequest struct {
	Token          string
	InitiatorID    string
	InitiatorAdmin bool
}

type IssueInviteRequest struct {
	BranchID       string
	Email          string
	InitiatorID    string
	InitiatorAdmin bool
}

type ResolveInviteRequest struct {
	Token          string
	InitiatorID    string
	InitiatorAdmin bool
}

type requestService struct {
	store         ports.RequestStore
	branches      ports.Store
	guard         PersonGuard
	requestTTL    time.Duration
	inviteTTL     time.Duration
	systemActorID string
}

func NewRequestService(store ports.RequestStore, branches ports.Store, guard PersonGuard, requestTTL, inviteTTL time.Duration, systemActorID string) RequestService {
	if requestTTL <= 0 {
		requestTTL = DefaultRequestTTL
	}
	if inviteTTL <= 0 {
		inviteTTL = DefaultInviteTTL
	}
	return &requestService{
		store:         store,
		branches:      branches,
		guard:         guard,
		requestTTL:    requestTTL,
		inviteTTL:     inviteTTL,
		systemActorID: systemActorID,
	}
}

// IssueRequest creates the branch-to-person connection request, or rotates
// the token and resets the expiry when a non-resolved row already exists.
func (s *requestService) IssueRequest(ctx context.Context, req IssueRequestRequest) (types.ConnectionRequest, error) {
	if strings.TrimSpace(req.BranchID) == "" || strings.TrimSpace(req.PersonID) == "" || strings.TrimSpace(req.InitiatorID) == "" {
		return types.ConnectionRequest{}, httperr.NewValidation(errBranchInvalidArgument)
	}
	b, err := s.branches.GetBranch(ctx, req.BranchID)
	if err != nil {
		return types.ConnectionRequest{}, mapBranchStoreErr(err)
	}
	if !req.InitiatorAdmin && b.OwnerID != req.InitiatorID {
		return types.ConnectionRequest{}, httperr.NewForbidden(errBranchNotOwned, "not_branch_owner")
	}
	if b.Bound() {
		return types.ConnectionRequest{}, httperr.NewConflict(errBranchAlreadyBound)
	}

	token, err := newUUID()
	if err != nil {
		return types.ConnectionRequest{}, err
	}
	now := nowUTC()
	expiresAt := now.Add(s.requestTTL)

	existing, err := s.store.FindRequest(ctx, b.ID, req.PersonID)
	switch {
	case err == nil:
		if existing.Status == types.RequestAccepted || existing.Status == types.RequestDeclined {
			return types.ConnectionRequest{}, httperr.NewConflict(errRequestResolved)
		}
		rec, err := newAuditRecord(req.InitiatorID, actionRequestIssue, audittypes.TargetRequest, existing.ID, map[string]string{"reissued": "true"})
		if err != nil {
			return types.ConnectionRequest{}, err
		}
		if err := s.store.ReissueRequest(ctx, existing.ID, token, expiresAt, rec); err != nil {
			return types.ConnectionRequest{}, mapBranchStoreErr(err)
		}
		existing.Token = token
		existing.Status = types.RequestPending
		existing.ExpiresAt = expiresAt
		return existing, nil
	case errors.Is(err, ports.ErrRequestNotFound):
		requestID, err := newUUID()
		if err != nil {
			return types.ConnectionRequest{}, err
		}
		r := types.ConnectionRequest{
			ID:        requestID,
			BranchID:  b.ID,
			PersonID:  req.PersonID,
			Token:     token,
			Status:    types.RequestPending,
			ExpiresAt: expiresAt,
			CreatedAt: now,
		}
		rec, err := newAuditRecord(req.InitiatorID, actionRequestIssue, audittypes.TargetRequest, requestID, map[string]string{"person": req.PersonID})
		if err != nil {
			return types.ConnectionRequest{}, err
		}
		if err := s.store.InsertRequest(ctx, r, rec); err != nil {
			return types.ConnectionRequest{}, mapBranchStoreErr(err)
		}
		return r, nil
	default:
		return types.ConnectionRequest{}, err
	}
}

// loadLiveRequest applies the lazy expiry transition: a pending row past
// its deadline is persisted as expired before the caller's action is
// rejected.
func (s *requestService) loadLiveRequest(ctx context.Context, token string) (types.ConnectionRequest, error) {
	r, err := s.store.GetRequestByToken(ctx, token)
	if err != nil {
		return types.ConnectionRequest{}, mapBranchStoreErr(err)
	}
	if r.ExpiredAt(nowUTC()) {
		rec, err := newAuditRecord(s.systemActorID, actionRequestExpire, audittypes.TargetRequest, r.ID, nil)
		if err != nil {
			return types.ConnectionRequest{}, err
		}
		if err := s.store.MarkRequestExpired(ctx, r.ID, rec); err != nil && !errors.Is(err, ports.ErrRequestResolved) {
			return types.ConnectionRequest{}, mapBranchStoreErr(err)
		}
		return types.ConnectionRequest{}, httperr.NewExpired(errRequestExpired)
	}
	switch r.Status {
	case types.RequestPending:
		return r, nil
	case types.RequestExpired:
		return types.ConnectionRequest{}, httperr.NewExpired(errRequestExpired)
	default:
		return types.ConnectionRequest{}, httperr.NewConflict(errRequestResolved)
	}
}

func (s *requestService) AcceptRequest(ctx context.Context, req ResolveRequestRequest) error {
	r, err := s.loadLiveRequest(ctx, req.Token)
	if err != nil {
		return err
	}
	if err := s.guard.CanMutate(ctx, r.PersonID, req.InitiatorID, req.InitiatorAdmin); err != nil {
		return err
	}
	rec, err := newAuditRecord(req.InitiatorID, actionRequestAccept, audittypes.TargetRequest, r.ID, map[string]string{"branch": r.BranchID, "person": r.PersonID})
	if err != nil {
		return err
	}
	return mapBranchStoreErr(s.store.AcceptRequest(ctx, r.ID, rec))
}

func (s *requestService) DeclineRequest(ctx context.Context, req ResolveRequestRequest) error {
	r, err := s.loadLiveRequest(ctx, req.Token)
	if err != nil {
		return err
	}
	if err := s.guard.CanMutate(ctx, r.PersonID, req.InitiatorID, req.InitiatorAdmin); err != nil {
		return err
	}
	rec, err := newAuditRecord(req.InitiatorID, actionRequestDecline, audittypes.TargetRequest, r.ID, nil)
	if err != nil {
		return err
	}
	return mapBranchStoreErr(s.store.DeclineRequest(ctx, r.ID, rec))
}

func (s *requestService) IssueInvite(ctx context.Context, req IssueInviteRequest) (types.Invite, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if strings.TrimSpace(req.BranchID) == "" || !strings.Contains(email, "@") || strings.TrimSpace(req.InitiatorID) == "" {
		return types.Invite{}, httperr.NewValidation(errBranchInvalidArgument)
	}
	b, err := s.branches.GetBranch(ctx, req.BranchID)
	if err != nil {
		return types.Invite{}, mapBranchStoreErr(err)
	}
	if !req.InitiatorAdmin && b.OwnerID != req.InitiatorID {
		return types.Invite{}, httperr.NewForbidden(errBranchNotOwned, "not_branch_owner")
	}

	token, err := newUUID()
	if err != nil {
		return types.Invite{}, err
	}
	now := nowUTC()
	expiresAt := now.Add(s.inviteTTL)

	existing, err := s.store.FindInvite(ctx, b.ID, email)
	switch {
	case err == nil:
		if existing.Status == types.RequestAccepted || existing.Status == types.RequestDeclined {
			return types.Invite{}, httperr.NewConflict(errRequestResolved)
		}
		rec, err := newAuditRecord(req.InitiatorID, actionInviteIssue, audittypes.TargetInvite, existing.ID, map[string]string{"reissued": "true"})
		if err != nil {
			return types.Invite{}, err
		}
		if err := s.store.ReissueInvite(ctx, existing.ID, token, expiresAt, rec); err != nil {
			return types.Invite{}, mapBranchStoreErr(err)
		}
		existing.Token = token
		existing.Status = types.RequestPending
		existing.ExpiresAt = expiresAt
		return existing, nil
	case errors.Is(err, ports.ErrInviteNotFound):
		inviteID, err := newUUID()
		if err != nil {
			return types.Invite{}, err
		}
		i := types.Invite{
			ID:        inviteID,
			BranchID:  b.ID,
			Email:     email,
			Token:     token,
			Status:    types.RequestPending,
			ExpiresAt: expiresAt,
			CreatedAt: now,
		}
		rec, err := newAuditRecord(req.InitiatorID, actionInviteIssue, audittypes.TargetInvite, inviteID, nil)
		if err != nil {
			return types.Invite{}, err
		}
		if err := s.store.InsertInvite(ctx, i, rec); err != nil {
			return types.Invite{}, mapBranchStoreErr(err)
		}
		return i, nil
	default:
		return types.Invite{}, err
	}
}

func (s *requestService) loadLiveInvite(ctx context.Context, token string) (types.Invite, error) {
	i, err := s.store.GetInviteByToken(ctx, token)
	if err != nil {
		return types.Invite{}, mapBranchStoreErr(err)
	}
	if i.ExpiredAt(nowUTC()) {
		rec, err := newAuditRecord(s.systemActorID, actionInviteExpire, audittypes.TargetInvite, i.ID, nil)
		if err != nil {
			return types.Invite{}, err
		}
		if err := s.store.MarkInviteExpired(ctx, i.ID, rec); err != nil && !errors.Is(err, ports.ErrRequestResolved) {
			return types.Invite{}, mapBranchStoreErr(err)
		}
		return types.Invite{}, httperr.NewExpired(errRequestExpired)
	}
	switch i.Status {
	case types.RequestPending:
		return i, nil
	case types.RequestExpired:
		return types.Invite{}, httperr.NewExpired(errRequestExpired)
	default:
		return types.Invite{}, httperr.NewConflict(errRequestResolved)
	}
}

// AcceptInvite turns the invite into a branch membership for the accepting
// user. Approval-gated branches land the member as pending.
func (s *requestService) AcceptInvite(ctx context.Context, req ResolveInviteRequest) error {
	i, err := s.loadLiveInvite(ctx, req.Token)
	if err != nil {
		return err
	}

	status := types.MemberApproved
	prefs, err := s.branches.GetPreferences(ctx, i.BranchID)
	if err != nil && !errors.Is(err, ports.ErrPrefsNotFound) {
		return err
	}
	if err == nil && prefs.RequireApproval {
		status = types.MemberPending
	}

	memberID, err := newUUID()
	if err != nil {
		return err
	}
	m := types.BranchMember{
		ID:       memberID,
		BranchID: i.BranchID,
		UserID:   req.InitiatorID,
		Status:   status,
	}
	rec, err := newAuditRecord(req.InitiatorID, actionInviteAccept, audittypes.TargetInvite, i.ID, map[string]string{"branch": i.BranchID})
	if err != nil {
		return err
	}
	return mapBranchStoreErr(s.store.AcceptInvite(ctx, i.ID, m, rec))
}

func (s *requestService) DeclineInvite(ctx context.Context, req ResolveInviteRequest) error {
	i, err := s.loadLiveInvite(ctx, req.Token)
	if err != nil {
		return err
	}
	rec, err := newAuditRecord(req.InitiatorID, actionInviteDecline, audittypes.TargetInvite, i.ID, nil)
	if err != nil {
		return err
	}
	return mapBranchStoreErr(s.store.DeclineInvite(ctx, i.ID, rec))
}
