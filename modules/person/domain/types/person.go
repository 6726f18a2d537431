package types

import (
	"errors"
	"time"
)

// Person is the subject of memory content. Dates use the wire form
// 2006-01-02; an empty DeathDate means the person is living. A legacy
// person may carry a finite MemoryLimit until adoption clears it.
type Person struct {
	ID           string
	TreeID       string
	Name         string
	BirthDate    string
	DeathDate    string
	Discovery    bool
	OwnerID      string
	ModeratorID  string
	TrusteeID    string
	TrusteeUntil *time.Time
	MemoryCount  int
	MemoryLimit  *int
}

func (p Person) IsLegacy() bool { return p.DeathDate != "" }

// TrusteeLapsed reports whether the trustee role has run past its term.
func (p Person) TrusteeLapsed(now time.Time) bool {
	return p.TrusteeID != "" && p.TrusteeUntil != nil && p.TrusteeUntil.Before(now)
}

var ErrSelfRoot = errors.New("cannot root a person with itself")

// RootPair is an undirected person pair stored smaller id first, so
// lookups never depend on argument order.
type RootPair struct {
	A string
	B string
}

func NewRootPair(x, y string) (RootPair, error) {
	if x == "" || y == "" || x == y {
		return RootPair{}, ErrSelfRoot
	}
	if x < y {
		return RootPair{A: x, B: y}, nil
	}
	return RootPair{A: y, B: x}, nil
}

func (p RootPair) Contains(personID string) bool {
	return p.A == personID || p.B == personID
}

func (p RootPair) Other(personID string) string {
	switch personID {
	case p.A:
		return p.B
	case p.B:
		return p.A
	default:
		return ""
	}
}

type RootStatus string

const (
	RootActive  RootStatus = "active"
	RootRemoved RootStatus = "removed"
)

type PersonRoot struct {
	ID        string
	Pair      RootPair
	Status    RootStatus
	CreatedAt time.Time
}
