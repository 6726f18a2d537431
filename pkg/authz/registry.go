package authz

const (
	RoleAdmin   = "admin"
	RoleKeeper  = "keeper"
	RoleVisitor = "visitor"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
	ActionAdmin = "admin"
)

const DomainGlobal = "global"

const (
	ObjectBranches = "branch.branches"
	ObjectEntries  = "branch.entries"
	ObjectRequests = "branch.requests"
	ObjectInvites  = "branch.invites"
	ObjectTrash    = "branch.trash"
	ObjectPersons  = "person.persons"
	ObjectRoots    = "person.roots"
	ObjectGroves   = "grove.groves"
	ObjectTrees    = "grove.trees"
	ObjectAudit    = "audit.log"
)
