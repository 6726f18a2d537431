package types

import "time"

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
	RequestExpired  RequestStatus = "expired"
)

// ConnectionRequest asks a person's keeper to bind the person to the
// branch. One live row per branch/person pair; re-issuing rotates the
// token and pushes the expiry out instead of adding a second row.
type ConnectionRequest struct {
	ID        string
	BranchID  string
	PersonID  string
	Token     string
	Status    RequestStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (r ConnectionRequest) ExpiredAt(now time.Time) bool {
	return r.Status == RequestPending && now.After(r.ExpiresAt)
}

// Invite asks a named address to join the branch as a member.
type Invite struct {
	ID        string
	BranchID  string
	Email     string
	Token     string
	Status    RequestStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (i Invite) ExpiredAt(now time.Time) bool {
	return i.Status == RequestPending && now.After(i.ExpiresAt)
}
