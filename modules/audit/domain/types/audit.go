package types

import "time"

// Record is one append-only row describing a mutating action. Nothing in
// the engine reads these back except the admin listing surface.
type Record struct {
	ID         string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]string
	CreatedAt  time.Time
}

const (
	TargetGrove   = "grove"
	TargetTree    = "tree"
	TargetPerson  = "person"
	TargetRoot    = "person_root"
	TargetBranch  = "branch"
	TargetEntry   = "entry"
	TargetLink    = "memory_branch_link"
	TargetRequest = "branch_connection_request"
	TargetInvite  = "invite"
)
