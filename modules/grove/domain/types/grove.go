package types

type GroveStatus string

const (
	GroveActive   GroveStatus = "active"
	GroveFrozen   GroveStatus = "frozen"
	GroveCanceled GroveStatus = "canceled"
)

type TreeStatus string

const (
	TreeActive TreeStatus = "active"
	TreeFrozen TreeStatus = "frozen"
)

type AdoptionType string

const (
	AdoptionAdopted AdoptionType = "adopted"
	AdoptionRooted  AdoptionType = "rooted"
)

type MembershipStatus string

const (
	MembershipActive MembershipStatus = "active"
)

// Grove is a tenant container owned by one actor. TreeCount tracks only
// original, living memberships against TreeLimit; rooted memberships are
// free. The single open grove hosts unclaimed legacy trees and is never
// capacity-checked or deleted.
type Grove struct {
	ID          string
	OwnerID     string
	Name        string
	TreeLimit   int
	TreeCount   int
	Status      GroveStatus
	IsOpenGrove bool
}

type Tree struct {
	ID                 string
	GroveID            string
	Name               string
	Status             TreeStatus
	IsLegacy           bool
	HasOwnSubscription bool
}

// Membership records that a person's tree is present in a grove. Exactly
// one membership per person carries IsOriginal.
type Membership struct {
	ID           string
	GroveID      string
	PersonID     string
	IsOriginal   bool
	AdoptionType AdoptionType
	Status       MembershipStatus
}

// EffectivelyFrozen reports whether content beneath the tree is blocked
// from mutation. A tree with its own subscription stays editable while its
// grove is frozen.
func EffectivelyFrozen(tree Tree, grove Grove) bool {
	if tree.Status == TreeFrozen {
		return true
	}
	return grove.Status == GroveFrozen && !tree.HasOwnSubscription
}

func (g Grove) HasCapacity() bool {
	if g.IsOpenGrove {
		return true
	}
	return g.TreeCount < g.TreeLimit
}
