package server

import (
	"net/http"
	"time"

	branchtypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/types"
	branchservices "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/services"
)

type requestResponse struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	PersonID  string    `json:"person_id"`
	Token     string    `json:"token"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

type inviteResponse struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toRequestResponse(cr branchtypes.ConnectionRequest) requestResponse {
	return requestResponse{
		ID:        cr.ID,
		BranchID:  cr.BranchID,
		PersonID:  cr.PersonID,
		Token:     cr.Token,
		Status:    string(cr.Status),
		ExpiresAt: cr.ExpiresAt,
	}
}

func toInviteResponse(i branchtypes.Invite) inviteResponse {
	return inviteResponse{
		ID:        i.ID,
		BranchID:  i.BranchID,
		Email:     i.Email,
		Token:     i.Token,
		Status:    string(i.Status),
		ExpiresAt: i.ExpiresAt,
	}
}

func handleRequestIssueAPI(w http.ResponseWriter, r *http.Request, svc branchservices.RequestService) {
	actor, _ := currentActor(r.Context())
	var req struct {
		BranchID string `json:"branch_id"`
		PersonID string `json:"person_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	cr, err := svc.IssueRequest(r.Context(), branchservices.IssueRequestRequest{
		BranchID:       req.BranchID,
		PersonID:       req.PersonID,
		InitiatorID:    actor.ID,
		InitiatorAdmin: actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestResponse(cr))
}

func handleRequestResolveAPI(w http.ResponseWriter, r *http.Request, resolve func(branchservices.ResolveRequestRequest) error, status string) {
	actor, _ := currentActor(r.Context())
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := resolve(branchservices.ResolveRequestRequest{
		Token:          req.Token,
		InitiatorID:    actor.ID,
		InitiatorAdmin: actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func handleInviteIssueAPI(w http.ResponseWriter, r *http.Request, svc branchservices.RequestService) {
	actor, _ := currentActor(r.Context())
	var req struct {
		BranchID string `json:"branch_id"`
		Email    string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	i, err := svc.IssueInvite(r.Context(), branchservices.IssueInviteRequest{
		BranchID:       req.BranchID,
		Email:          req.Email,
		InitiatorID:    actor.ID,
		InitiatorAdmin: actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInviteResponse(i))
}

func handleInviteResolveAPI(w http.ResponseWriter, r *http.Request, resolve func(branchservices.ResolveInviteRequest) error, status string) {
	actor, _ := currentActor(r.Context())
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := resolve(branchservices.ResolveInviteRequest{
		Token:          req.Token,
		InitiatorID:    actor.ID,
		InitiatorAdmin: actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
