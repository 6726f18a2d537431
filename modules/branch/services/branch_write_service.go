package services

import (
	"context"
	"errors"
	"strings"
	"time"

	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/types"
	grovetypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/httperr"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/uuidv7"
)

const (
	errBranchInvalidArgument = "BRANCH_INVALID_ARGUMENT"
	errBranchNotFound        = "BRANCH_NOT_FOUND"
	errBranchArchived        = "BRANCH_ARCHIVED"
	errBranchNotOwned        = "BRANCH_NOT_OWNED"
	errTreeNotFound          = "TREE_NOT_FOUND"
	errTreeFrozen            = "TREE_FROZEN"
	errEntryNotFound         = "ENTRY_NOT_FOUND"
	errEntryNotAuthor        = "ENTRY_NOT_AUTHOR"
	errEntryStateInvalid     = "ENTRY_STATE_INVALID"
	errEntryUndoExpired      = "ENTRY_UNDO_EXPIRED"
	errMemoryLimitReached    = "MEMORY_LIMIT_REACHED"
	errNotMember             = "BRANCH_NOT_MEMBER"
	errLinkExists            = "LINK_EXISTS"
	errLinkNotFound          = "LINK_NOT_FOUND"
	errLinkOriginImmutable   = "LINK_ORIGIN_IMMUTABLE"
	errShareNotEligible      = "SHARE_NOT_ELIGIBLE"
	errRequestNotFound       = "REQUEST_NOT_FOUND"
	errRequestResolved       = "REQUEST_RESOLVED"
	errRequestExpired        = "REQUEST_EXPIRED"
	errBranchAlreadyBound    = "BRANCH_ALREADY_BOUND"
	errPersonAlreadyBound    = "PERSON_ALREADY_BOUND"
	errInviteNotFound        = "INVITE_NOT_FOUND"
	errMemberExists          = "MEMBER_EXISTS"
)

const (
	actionBranchCreate   = "BRANCH_CREATE"
	actionBranchArchive  = "BRANCH_ARCHIVE"
	actionPrefsUpsert    = "BRANCH_PREFS_UPSERT"
	actionEntryCreate    = "ENTRY_CREATE"
	actionEntryWithdraw  = "ENTRY_WITHDRAW"
	actionEntryHide      = "ENTRY_HIDE"
	actionEntryRestore   = "ENTRY_RESTORE"
	actionEntryUndo      = "ENTRY_UNDO"
	actionEntryGlow      = "ENTRY_GLOW"
	actionLinkShare      = "LINK_SHARE"
	actionLinkRemove     = "LINK_REMOVE"
	actionRequestIssue   = "REQUEST_ISSUE"
	actionRequestExpire  = "REQUEST_EXPIRE"
	actionRequestAccept  = "REQUEST_ACCEPT"
	actionRequestDecline = "REQUEST_DECLINE"
	actionInviteIssue    = "INVITE_ISSUE"
	actionInviteExpire   = "INVITE_EXPIRE"
	actionInviteAccept   = "INVITE_ACCEPT"
	actionInviteDecline  = "INVITE_DECLINE"
)

var (
	newUUID = uuidv7.NewString
	nowUTC  = func() time.Time { return time.Now().UTC() }
)

// TreeResolver is the slice of the grove store branch operations need to
// apply the effective-freeze rule.
type TreeResolver interface {
	GetTree(ctx context.Context, treeID string) (grovetypes.Tree, error)
	GetGrove(ctx context.Context, groveID string) (grovetypes.Grove, error)
}

type BranchWriteService interface {
	Create(ctx context.Context, req CreateBranchRequest) (types.Branch, error)
	Archive(ctx context.Context, req ArchiveBranchRequest) error
	UpsertPreferences(ctx context.Context, req PreferencesRequest) error
}

type CreateBranchRequest struct {
	TreeID         string
	Title          string
	Description    string
	InitiatorID    string
	InitiatorAdmin bool
}

type ArchiveBranchRequest struct {
	BranchID       string
	InitiatorID    string
	InitiatorAdmin bool
}

type PreferencesRequest struct {
	BranchID          string
	Taggable          bool
	RequireApproval   bool
	ShowInCrossShares bool
	InitiatorID       string
	InitiatorAdmin    bool
}

type branchWriteService struct {
	store ports.Store
	trees TreeResolver
}

func NewBranchWriteService(store ports.Store, trees TreeResolver) BranchWriteService {
	return &branchWriteService{store: store, trees: trees}
}

func (s *branchWriteService) Create(ctx context.Context, req CreateBranchRequest) (types.Branch, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || strings.TrimSpace(req.TreeID) == "" || strings.TrimSpace(req.InitiatorID) == "" {
		return types.Branch{}, httperr.NewValidation(errBranchInvalidArgument)
	}
	if err := checkTreeWritable(ctx, s.trees, req.TreeID); err != nil {
		return types.Branch{}, err
	}

	branchID, err := newUUID()
	if err != nil {
		return types.Branch{}, err
	}
	b := types.Branch{
		ID:          branchID,
		TreeID:      req.TreeID,
		OwnerID:     req.InitiatorID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      types.BranchActive,
		CreatedAt:   nowUTC(),
	}
	rec, err := newAuditRecord(req.InitiatorID, actionBranchCreate, audittypes.TargetBranch, branchID, map[string]string{"tree": req.TreeID})
	if err != nil {
		return types.Branch{}, err
	}
	if err := s.store.CreateBranch(ctx, b, rec); err != nil {
		return types.Branch{}, mapBranchStoreErr(err)
	}
	return b, nil
}

func (s *branchWriteService) Archive(ctx context.Context, req ArchiveBranchRequest) error {
	b, err := s.store.GetBranch(ctx, req.BranchID)
	if err != nil {
		return mapBranchStoreErr(err)
	}
	if !req.InitiatorAdmin && b.OwnerID != req.InitiatorID {
		return httperr.NewForbidden(errBranchNotOwned, "not_branch_owner")
	}
	if b.Archived() {
		return httperr.NewConflict(errBranchArchived)
	}

	rec, err := newAuditRecord(req.InitiatorID, actionBranchArchive, audittypes.TargetBranch, b.ID, nil)
	if err != nil {
		return err
	}
	if err := s.store.ArchiveBranch(ctx, b.ID, nowUTC(), req.InitiatorID, rec); err != nil {
		return mapBranchStoreErr(err)
	}
	return nil
}

func (s *branchWriteService) UpsertPreferences(ctx context.Context, req PreferencesRequest) error {
	b, err := s.store.GetBranch(ctx, req.BranchID)
	if err != nil {
		return mapBranchStoreErr(err)
	}
	if !req.InitiatorAdmin && b.OwnerID != req.InitiatorID {
		return httperr.NewForbidden(errBranchNotOwned, "not_branch_owner")
	}

	rec, err := newAuditRecord(req.InitiatorID, actionPrefsUpsert, audittypes.TargetBranch, b.ID, nil)
	if err != nil {
		return err
	}
	prefs := types.BranchPreferences{
		BranchID:          b.ID,
		Taggable:          req.Taggable,
		RequireApproval:   req.RequireApproval,
		ShowInCrossShares: req.ShowInCrossShares,
	}
	if err := s.store.UpsertPreferences(ctx, prefs, rec); err != nil {
		return mapBranchStoreErr(err)
	}
	return nil
}

// checkTreeWritable rejects content mutation beneath a frozen tree. Reads
// stay open; only writers call this.
func checkTreeWritable(ctx context.Context, trees TreeResolver, treeID string) error {
	tree, err := trees.GetTree(ctx, treeID)
	if err != nil {
		return httperr.NewNotFound(errTreeNotFound)
	}
	grove, err := trees.GetGrove(ctx, tree.GroveID)
	if err != nil {
		return httperr.NewNotFound(errTreeNotFound)
	}
	if grovetypes.EffectivelyFrozen(tree, grove) {
		return httperr.NewConflict(errTreeFrozen)
	}
	return nil
}

func newAuditRecord(actorID string, action string, targetType string, targetID string, metadata map[string]string) (audittypes.Record, error) {
	id, err := newUUID()
	if err != nil {
		return audittypes.Record{}, err
	}
	return audittypes.Record{
		ID:         id,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
		CreatedAt:  nowUTC(),
	}, nil
}

func mapBranchStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ports.ErrBranchNotFound):
		return httperr.NewNotFound(errBranchNotFound)
	case errors.Is(err, ports.ErrEntryNotFound):
		return httperr.NewNotFound(errEntryNotFound)
	case errors.Is(err, ports.ErrLinkNotFound):
		return httperr.NewNotFound(errLinkNotFound)
	case errors.Is(err, ports.ErrRequestNotFound):
		return httperr.NewNotFound(errRequestNotFound)
	case errors.Is(err, ports.ErrInviteNotFound):
		return httperr.NewNotFound(errInviteNotFound)
	case errors.Is(err, ports.ErrEntryStateChanged):
		return httperr.NewConflict(errEntryStateInvalid)
	case errors.Is(err, ports.ErrBranchStateChanged):
		return httperr.NewConflict(errBranchArchived)
	case errors.Is(err, ports.ErrLinkExists):
		return httperr.NewConflict(errLinkExists)
	case errors.Is(err, ports.ErrOriginLinkImmutable):
		return httperr.NewConflict(errLinkOriginImmutable)
	case errors.Is(err, ports.ErrRequestResolved):
		return httperr.NewConflict(errRequestResolved)
	case errors.Is(err, ports.ErrBranchAlreadyBound):
		return httperr.NewConflict(errBranchAlreadyBound)
	case errors.Is(err, ports.ErrPersonAlreadyBound):
		return httperr.NewConflict(errPersonAlreadyBound)
	case errors.Is(err, ports.ErrMemberExists):
		return httperr.NewConflict(errMemberExists)
	case errors.Is(err, ports.ErrMemoryLimitReached):
		return httperr.NewCapacityExceeded(errMemoryLimitReached)
	default:
		return err
	}
}
