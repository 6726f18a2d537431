package types

import "time"

type BranchStatus string

const (
	BranchActive   BranchStatus = "active"
	BranchArchived BranchStatus = "archived"
	BranchDeleted  BranchStatus = "deleted"
)

// Branch is a named collection of entries under a tree. PersonID is set
// when the branch is bound to a legacy subject; at most one branch binds a
// given person.
type Branch struct {
	ID          string
	TreeID      string
	OwnerID     string
	Title       string
	Description string
	Status      BranchStatus
	ArchivedAt  *time.Time
	ArchivedBy  string
	PersonID    string
	CreatedAt   time.Time
}

func (b Branch) Archived() bool { return b.Status == BranchArchived }
func (b Branch) Bound() bool    { return b.PersonID != "" }

type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberApproved MemberStatus = "approved"
)

type BranchMember struct {
	ID       string
	BranchID string
	UserID   string
	Status   MemberStatus
}

// BranchPreferences gate what other branches may do to this one. An absent
// row reads as the permissive defaults.
type BranchPreferences struct {
	BranchID          string
	Taggable          bool
	RequireApproval   bool
	ShowInCrossShares bool
}

func DefaultPreferences(branchID string) BranchPreferences {
	return BranchPreferences{
		BranchID:          branchID,
		Taggable:          true,
		RequireApproval:   false,
		ShowInCrossShares: true,
	}
}
