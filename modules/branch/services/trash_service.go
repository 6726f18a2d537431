package services

import (
	"context"
	"time"

	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/ports"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/types"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/httperr"
)

// DefaultTrashRetention is how long withdrawn entries, hidden entries and
// archived branches survive before the external sweep may claim them.
const DefaultTrashRetention = 30 * 24 * time.Hour

type TrashItemKind string

const (
	TrashWithdrawnEntry TrashItemKind = "withdrawn_entry"
	TrashHiddenEntry    TrashItemKind = "hidden_entry"
	TrashArchivedBranch TrashItemKind = "archived_branch"
)

// TrashItem is one recoverable object with its time left. DaysRemaining is
// zero when the retention window has already closed.
type TrashItem struct {
	Kind          TrashItemKind
	ID            string
	BranchID      string
	Title         string
	RemovedAt     time.Time
	DaysRemaining int
}

type TrashService interface {
	List(ctx context.Context, req TrashListRequest) ([]TrashItem, error)
}

type TrashListRequest struct {
	InitiatorID string
}

type trashService struct {
	store     ports.Store
	retention time.Duration
}

func NewTrashService(store ports.Store, retention time.Duration) TrashService {
	if retention <= 0 {
		retention = DefaultTrashRetention
	}
	return &trashService{store: store, retention: retention}
}

// List gathers everything the actor can still recover: entries they
// withdrew, entries hidden on branches they own, and branches they
// archived.
func (s *trashService) List(ctx context.Context, req TrashListRequest) ([]TrashItem, error) {
	if req.InitiatorID == "" {
		return nil, httperr.NewValidation(errBranchInvalidArgument)
	}
	now := nowUTC()
	var out []TrashItem

	withdrawn, err := s.store.ListEntriesByAuthor(ctx, req.InitiatorID, types.EntryWithdrawn)
	if err != nil {
		return nil, err
	}
	for _, e := range withdrawn {
		if e.WithdrawnAt == nil {
			continue
		}
		out = append(out, TrashItem{
			Kind:          TrashWithdrawnEntry,
			ID:            e.ID,
			BranchID:      e.BranchID,
			Title:         e.Text,
			RemovedAt:     *e.WithdrawnAt,
			DaysRemaining: s.daysRemaining(*e.WithdrawnAt, now),
		})
	}

	hidden, err := s.store.ListHiddenEntriesForOwner(ctx, req.InitiatorID)
	if err != nil {
		return nil, err
	}
	for _, e := range hidden {
		if e.HiddenAt == nil {
			continue
		}
		out = append(out, TrashItem{
			Kind:          TrashHiddenEntry,
			ID:            e.ID,
			BranchID:      e.BranchID,
			Title:         e.Text,
			RemovedAt:     *e.HiddenAt,
			DaysRemaining: s.daysRemaining(*e.HiddenAt, now),
		})
	}

	branches, err := s.store.ListArchivedBranches(ctx, req.InitiatorID)
	if err != nil {
		return nil, err
	}
	for _, b := range branches {
		if b.ArchivedAt == nil {
			continue
		}
		out = append(out, TrashItem{
			Kind:          TrashArchivedBranch,
			ID:            b.ID,
			BranchID:      b.ID,
			Title:         b.Title,
			RemovedAt:     *b.ArchivedAt,
			DaysRemaining: s.daysRemaining(*b.ArchivedAt, now),
		})
	}
	return out, nil
}

func (s *trashService) daysRemaining(removedAt time.Time, now time.Time) int {
	deadline := removedAt.Add(s.retention)
	if !deadline.After(now) {
		return 0
	}
	days := int(deadline.Sub(now) / (24 * time.Hour))
	if deadline.Sub(now)%(24*time.Hour) > 0 {
		days++
	}
	return days
}
