package services

import (
	"context"
	"strings"

	audittypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/httperr"
)

type ShareService interface {
	Share(ctx context.Context, req ShareRequest) (types.MemoryBranchLink, error)
	RemoveSharedLink(ctx context.Context, req RemoveLinkRequest) error
}

type ShareRequest struct {
	EntryID        string
	TargetBranchID string
	InitiatorID    string
	InitiatorAdmin bool
}

type RemoveLinkRequest struct {
	EntryID        string
	BranchID       string
	InitiatorID    string
	InitiatorAdmin bool
}

type shareService struct {
	store ports.Store
	rule  string
}

// NewShareService builds the cross-branch sharing surface. rule is a CEL
// expression over the receiving branch's context; empty means the default.
func NewShareService(store ports.Store, rule string) ShareService {
	return &shareService{store: store, rule: rule}
}

func (s *shareService) Share(ctx context.Context, req ShareRequest) (types.MemoryBranchLink, error) {
	if strings.TrimSpace(req.EntryID) == "" || strings.TrimSpace(req.TargetBranchID) == "" || strings.TrimSpace(req.InitiatorID) == "" {
		return types.MemoryBranchLink{}, httperr.NewValidation(errBranchInvalidArgument)
	}

	e, err := s.store.GetEntry(ctx, req.EntryID)
	if err != nil {
		return types.MemoryBranchLink{}, mapBranchStoreErr(err)
	}
	if e.Status != types.EntryActive {
		return types.MemoryBranchLink{}, httperr.NewConflict(errEntryStateInvalid)
	}
	origin, err := s.store.GetBranch(ctx, e.BranchID)
	if err != nil {
		return types.MemoryBranchLink{}, mapBranchStoreErr(err)
	}
	if !req.InitiatorAdmin && e.AuthorID != req.InitiatorID && origin.OwnerID != req.InitiatorID {
		return types.MemoryBranchLink{}, httperr.NewForbidden(errEntryNotAuthor, "not_author")
	}

	target, err := s.store.GetBranch(ctx, req.TargetBranchID)
	if err != nil {
		return types.MemoryBranchLink{}, mapBranchStoreErr(err)
	}
	if target.Archived() {
		return types.MemoryBranchLink{}, httperr.NewConflict(errBranchArchived)
	}

	eligible, err := s.eligible(ctx, origin, target)
	if err != nil {
		return types.MemoryBranchLink{}, err
	}
	if !eligible {
		return types.MemoryBranchLink{}, httperr.NewConflict(errShareNotEligible)
	}

	linkID, err := newUUID()
	if err != nil {
		return types.MemoryBranchLink{}, err
	}
	l := types.MemoryBranchLink{
		ID:         linkID,
		EntryID:    e.ID,
		BranchID:   target.ID,
		Role:       types.LinkShared,
		Visibility: types.LinkVisible,
		CreatedAt:  nowUTC(),
	}
	rec, err := newAuditRecord(req.InitiatorID, actionLinkShare, audittypes.TargetLink, linkID, map[string]string{"entry": e.ID, "branch": target.ID})
	if err != nil {
		return types.MemoryBranchLink{}, err
	}
	if err := s.store.CreateLink(ctx, l, rec); err != nil {
		return types.MemoryBranchLink{}, mapBranchStoreErr(err)
	}
	return l, nil
}

// eligible runs the receiving branch's preferences through the share rule.
func (s *shareService) eligible(ctx context.Context, origin types.Branch, target types.Branch) (bool, error) {
	prefs, err := s.store.GetPreferences(ctx, target.ID)
	if err != nil {
		if err != ports.ErrPrefsNotFound {
			return false, err
		}
		prefs = types.DefaultPreferences(target.ID)
	}
	ctxMap := map[string]string{
		"taggable":             boolString(prefs.Taggable),
		"require_approval":     boolString(prefs.RequireApproval),
		"show_in_cross_shares": boolString(prefs.ShowInCrossShares),
		"target_status":        string(target.Status),
		"same_owner":           boolString(origin.OwnerID == target.OwnerID),
		"same_tree":            boolString(origin.TreeID == target.TreeID),
	}
	return evalShareRule(s.rule, ctxMap)
}

// RemoveSharedLink hides a shared link on the receiving branch. The change
// is local and silent; the origin link and every other branch's view of
// the entry are untouched.
func (s *shareService) RemoveSharedLink(ctx context.Context, req RemoveLinkRequest) error {
	l, err := s.store.GetLink(ctx, req.EntryID, req.BranchID)
	if err != nil {
		return mapBranchStoreErr(err)
	}
	b, err := s.store.GetBranch(ctx, l.BranchID)
	if err != nil {
		return mapBranchStoreErr(err)
	}
	if !req.InitiatorAdmin && b.OwnerID != req.InitiatorID {
		return httperr.NewForbidden(errBranchNotOwned, "not_branch_owner")
	}
	if l.Role == types.LinkOrigin {
		return httperr.NewConflict(errLinkOriginImmutable)
	}

	rec, err := newAuditRecord(req.InitiatorID, actionLinkRemove, audittypes.TargetLink, l.ID, nil)
	if err != nil {
		return err
	}
	return mapBranchStoreErr(s.store.SetLinkVisibility(ctx, l.EntryID, l.BranchID, types.LinkRemovedByUser, rec))
}
