package types

import "time"

type EntryStatus string

const (
	EntryActive    EntryStatus = "active"
	EntryWithdrawn EntryStatus = "withdrawn"
	EntryHidden    EntryStatus = "hidden"
)

// Entry is a single memory. Withdrawn and hidden are the two soft-removed
// states; they differ in who may enter and leave them, and both keep the
// row until the retention sweep claims it.
type Entry struct {
	ID          string
	BranchID    string
	AuthorID    string
	Text        string
	MediaURL    string
	AudioURL    string
	Status      EntryStatus
	WithdrawnAt *time.Time
	HiddenAt    *time.Time
	HiddenBy    string
	GlowCount   int
	CreatedAt   time.Time
}

// UndoableUntil is the hard-delete deadline for the author's undo.
func (e Entry) UndoableUntil(window time.Duration) time.Time {
	return e.CreatedAt.Add(window)
}

type LinkRole string

const (
	LinkOrigin LinkRole = "origin"
	LinkShared LinkRole = "shared"
)

type LinkVisibility string

const (
	LinkVisible       LinkVisibility = "active"
	LinkRemovedByUser LinkVisibility = "removed_by_user"
)

// MemoryBranchLink attaches an entry to a branch. Every entry has exactly
// one origin link, created with it; shared links come and go. Only shared
// links ever change visibility.
type MemoryBranchLink struct {
	ID         string
	EntryID    string
	BranchID   string
	Role       LinkRole
	Visibility LinkVisibility
	CreatedAt  time.Time
}
