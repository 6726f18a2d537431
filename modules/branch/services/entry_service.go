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

// DefaultUndoWindow bounds the author's hard-delete undo after posting.
const DefaultUndoWindow = 60 * time.Second

type EntryService interface {
	Create(ctx context.Context, req CreateEntryRequest) (types.Entry, error)
	Withdraw(ctx context.Context, req EntryActionRequest) error
	Hide(ctx context.Context, req EntryActionRequest) error
	Restore(ctx context.Context, req EntryActionRequest) error
	Undo(ctx context.Context, req EntryActionRequest) error
	Glow(ctx context.Context, req EntryActionRequest) error
}

type CreateEntryRequest struct {
	BranchID       string
	Text           string
	MediaURL       string
	AudioURL       string
	InitiatorID    string
	InitiatorAdmin bool
}

type EntryActionRequest struct {
	EntryID        string
	InitiatorID    string
	InitiatorAdmin bool
}

type entryService struct {
	store      ports.Store
	trees      TreeResolver
	undoWindow time.Duration
}

func NewEntryService(store ports.Store, trees TreeResolver, undoWindow time.Duration) EntryService {
	if undoWindow <= 0 {
		undoWindow = DefaultUndoWindow
	}
	return &entryService{store: store, trees: trees, undoWindow: undoWindow}
}

func (s *entryService) Create(ctx context.Context, req CreateEntryRequest) (types.Entry, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" || strings.TrimSpace(req.BranchID) == "" || strings.TrimSpace(req.InitiatorID) == "" {
		return types.Entry{}, httperr.NewValidation(errBranchInvalidArgument)
	}

	b, err := s.store.GetBranch(ctx, req.BranchID)
	if err != nil {
		return types.Entry{}, mapBranchStoreErr(err)
	}
	if b.Archived() {
		return types.Entry{}, httperr.NewConflict(errBranchArchived)
	}
	if err := checkTreeWritable(ctx, s.trees, b.TreeID); err != nil {
		return types.Entry{}, err
	}
	if err := s.checkCanPost(ctx, b, req.InitiatorID, req.InitiatorAdmin); err != nil {
		return types.Entry{}, err
	}

	entryID, err := newUUID()
	if err != nil {
		return types.Entry{}, err
	}
	linkID, err := newUUID()
	if err != nil {
		return types.Entry{}, err
	}
	now := nowUTC()
	e := types.Entry{
		ID:        entryID,
		BranchID:  b.ID,
		AuthorID:  req.InitiatorID,
		Text:      text,
		MediaURL:  strings.TrimSpace(req.MediaURL),
		AudioURL:  strings.TrimSpace(req.AudioURL),
		Status:    types.EntryActive,
		CreatedAt: now,
	}
	origin := types.MemoryBranchLink{
		ID:         linkID,
		EntryID:    entryID,
		BranchID:   b.ID,
		Role:       types.LinkOrigin,
		Visibility: types.LinkVisible,
		CreatedAt:  now,
	}
	rec, err := newAuditRecord(req.InitiatorID, actionEntryCreate, audittypes.TargetEntry, entryID, map[string]string{"branch": b.ID})
	if err != nil {
		return types.Entry{}, err
	}
	if err := s.store.CreateEntry(ctx, e, origin, b.PersonID, rec); err != nil {
		return types.Entry{}, mapBranchStoreErr(err)
	}
	return e, nil
}

func (s *entryService) checkCanPost(ctx context.Context, b types.Branch, actorID string, admin bool) error {
	if admin || b.OwnerID == actorID {
		return nil
	}
	m, err := s.store.GetMember(ctx, b.ID, actorID)
	if errors.Is(err, ports.ErrMemberNotFound) {
		return httperr.NewForbidden(errNotMember, "not_member")
	}
	if err != nil {
		return err
	}
	if m.Status != types.MemberApproved {
		return httperr.NewForbidden(errNotMember, "not_member")
	}
	return nil
}

// Withdraw is the author pulling their own active entry.
func (s *entryService) Withdraw(ctx context.Context, req EntryActionRequest) error {
	e, b, err := s.loadEntry(ctx, req.EntryID)
	if err != nil {
		return err
	}
	if !req.InitiatorAdmin && e.AuthorID != req.InitiatorID {
		return httperr.NewForbidden(errEntryNotAuthor, "not_author")
	}
	if e.Status != types.EntryActive {
		return httperr.NewConflict(errEntryStateInvalid)
	}

	now := nowUTC()
	e.Status = types.EntryWithdrawn
	e.WithdrawnAt = &now
	rec, err := newAuditRecord(req.InitiatorID, actionEntryWithdraw, audittypes.TargetEntry, e.ID, nil)
	if err != nil {
		return err
	}
	return mapBranchStoreErr(s.store.UpdateEntryState(ctx, e, types.EntryActive, b.PersonID, -1, rec))
}

// Hide is the branch owner removing someone else's entry from view.
func (s *entryService) Hide(ctx context.Context, req EntryActionRequest) error {
	e, b, err := s.loadEntry(ctx, req.EntryID)
	if err != nil {
		return err
	}
	if !req.InitiatorAdmin && b.OwnerID != req.InitiatorID {
		return httperr.NewForbidden(errBranchNotOwned, "not_branch_owner")
	}
	if e.Status != types.EntryActive {
		return httperr.NewConflict(errEntryStateInvalid)
	}

	now := nowUTC()
	e.Status = types.EntryHidden
	e.HiddenAt = &now
	e.HiddenBy = req.InitiatorID
	rec, err := newAuditRecord(req.InitiatorID, actionEntryHide, audittypes.TargetEntry, e.ID, nil)
	if err != nil {
		return err
	}
	return mapBranchStoreErr(s.store.UpdateEntryState(ctx, e, types.EntryActive, b.PersonID, -1, rec))
}

// Restore brings a withdrawn entry back for its author, or a hidden one
// for the branch owner. The bound person's memory counter is re-incremented
// in the same transaction.
func (s *entryService) Restore(ctx context.Context, req EntryActionRequest) error {
	e, b, err := s.loadEntry(ctx, req.EntryID)
	if err != nil {
		return err
	}

	from := e.Status
	switch from {
	case types.EntryWithdrawn:
		if !req.InitiatorAdmin && e.AuthorID != req.InitiatorID {
			return httperr.NewForbidden(errEntryNotAuthor, "not_author")
		}
	case types.EntryHidden:
		if !req.InitiatorAdmin && b.OwnerID != req.InitiatorID {
			return httperr.NewForbidden(errBranchNotOwned, "not_branch_owner")
		}
	default:
		return httperr.NewConflict(errEntryStateInvalid)
	}

	e.Status = types.EntryActive
	e.WithdrawnAt = nil
	e.HiddenAt = nil
	e.HiddenBy = ""
	rec, err := newAuditRecord(req.InitiatorID, actionEntryRestore, audittypes.TargetEntry, e.ID, map[string]string{"from": string(from)})
	if err != nil {
		return err
	}
	return mapBranchStoreErr(s.store.UpdateEntryState(ctx, e, from, b.PersonID, +1, rec))
}

// Undo hard-deletes the author's own entry inside the undo window. Past
// the window the entry is left untouched and the caller gets Expired.
func (s *entryService) Undo(ctx context.Context, req EntryActionRequest) error {
	e, b, err := s.loadEntry(ctx, req.EntryID)
	if err != nil {
		return err
	}
	if !req.InitiatorAdmin && e.AuthorID != req.InitiatorID {
		return httperr.NewForbidden(errEntryNotAuthor, "not_author")
	}
	if e.Status != types.EntryActive {
		return httperr.NewConflict(errEntryStateInvalid)
	}
	if nowUTC().After(e.UndoableUntil(s.undoWindow)) {
		return httperr.NewExpired(errEntryUndoExpired)
	}

	rec, err := newAuditRecord(req.InitiatorID, actionEntryUndo, audittypes.TargetEntry, e.ID, nil)
	if err != nil {
		return err
	}
	return mapBranchStoreErr(s.store.HardDeleteEntry(ctx, e.ID, types.EntryActive, b.PersonID, rec))
}

// Glow bumps the reaction counter on an active entry. Approved members and
// the branch owner only.
func (s *entryService) Glow(ctx context.Context, req EntryActionRequest) error {
	e, b, err := s.loadEntry(ctx, req.EntryID)
	if err != nil {
		return err
	}
	if err := s.checkCanPost(ctx, b, req.InitiatorID, req.InitiatorAdmin); err != nil {
		return err
	}
	if e.Status != types.EntryActive {
		return httperr.NewConflict(errEntryStateInvalid)
	}

	rec, err := newAuditRecord(req.InitiatorID, actionEntryGlow, audittypes.TargetEntry, e.ID, nil)
	if err != nil {
		return err
	}
	return mapBranchStoreErr(s.store.IncrementGlow(ctx, e.ID, rec))
}

func (s *entryService) loadEntry(ctx context.Context, entryID string) (types.Entry, types.Branch, error) {
	if strings.TrimSpace(entryID) == "" {
		return types.Entry{}, types.Branch{}, httperr.NewValidation(errBranchInvalidArgument)
	}
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return types.Entry{}, types.Branch{}, mapBranchStoreErr(err)
	}
	b, err := s.store.GetBranch(ctx, e.BranchID)
	if err != nil {
		return types.Entry{}, types.Branch{}, mapBranchStoreErr(err)
	}
	return e, b, nil
}
