package services

import (
	"context"
	"testing"
	"time"

	auditpersistence "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/infrastructure/persistence"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/types"
	branchmem "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/infrastructure/persistence"
)

func TestTrashListsRecoverables(t *testing.T) {
	restore := nowUTC
	t.Cleanup(func() { nowUTC = restore })
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	nowUTC = func() time.Time { return now }

	store := branchmem.NewMemoryStore(newPersonCounterStub(), auditpersistence.NewMemoryLog())
	tenDaysAgo := now.Add(-10 * 24 * time.Hour)
	longGone := now.Add(-40 * 24 * time.Hour)

	store.SeedBranch(types.Branch{ID: "b1", TreeID: "t1", OwnerID: "u1", Status: types.BranchActive})
	store.SeedBranch(types.Branch{ID: "b-arch", TreeID: "t1", OwnerID: "u1", Title: "Summers", Status: types.BranchArchived, ArchivedAt: &tenDaysAgo, ArchivedBy: "u1"})
	store.SeedEntry(types.Entry{ID: "e-w", BranchID: "b1", AuthorID: "u1", Text: "w", Status: types.EntryWithdrawn, WithdrawnAt: &tenDaysAgo})
	store.SeedEntry(types.Entry{ID: "e-h", BranchID: "b1", AuthorID: "other", Text: "h", Status: types.EntryHidden, HiddenAt: &longGone, HiddenBy: "u1"})
	store.SeedEntry(types.Entry{ID: "e-other", BranchID: "b1", AuthorID: "other", Text: "x", Status: types.EntryWithdrawn, WithdrawnAt: &tenDaysAgo})

	svc := NewTrashService(store, DefaultTrashRetention)
	items, err := svc.List(context.Background(), TrashListRequest{InitiatorID: "u1"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items=%+v", items)
	}

	byID := map[string]TrashItem{}
	for _, it := range items {
		byID[it.ID] = it
	}
	if it := byID["e-w"]; it.Kind != TrashWithdrawnEntry || it.DaysRemaining != 20 {
		t.Fatalf("item=%+v", it)
	}
	// Past the retention window: zero days, still listed until the sweep.
	if it := byID["e-h"]; it.Kind != TrashHiddenEntry || it.DaysRemaining != 0 {
		t.Fatalf("item=%+v", it)
	}
	if it := byID["b-arch"]; it.Kind != TrashArchivedBranch || it.DaysRemaining != 20 || it.Title != "Summers" {
		t.Fatalf("item=%+v", it)
	}
}
