package server

import (
	"net/http"
	"time"

	branchtypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/types"
	branchservices "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/services"
)

type branchResponse struct {
	ID          string     `json:"id"`
	TreeID      string     `json:"tree_id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	PersonID    string     `json:"person_id,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toBranchResponse(b branchtypes.Branch) branchResponse {
	return branchResponse{
		ID:          b.ID,
		TreeID:      b.TreeID,
		OwnerID:     b.OwnerID,
		Title:       b.Title,
		Description: b.Description,
		Status:      string(b.Status),
		PersonID:    b.PersonID,
		ArchivedAt:  b.ArchivedAt,
		CreatedAt:   b.CreatedAt,
	}
}

func handleBranchCreateAPI(w http.ResponseWriter, r *http.Request, svc branchservices.BranchWriteService) {
	actor, _ := currentActor(r.Context())
	var req struct {
		TreeID      string `json:"tree_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := svc.Create(r.Context(), branchservices.CreateBranchRequest{
		TreeID:         req.TreeID,
		Title:          req.Title,
		Description:    req.Description,
		InitiatorID:    actor.ID,
		InitiatorAdmin: actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBranchResponse(b))
}

func handleBranchArchiveAPI(w http.ResponseWriter, r *http.Request, svc branchservices.BranchWriteService) {
	actor, _ := currentActor(r.Context())
	var req struct {
		BranchID string `json:"branch_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := svc.Archive(r.Context(), branchservices.ArchiveBranchRequest{
		BranchID:       req.BranchID,
		InitiatorID:    actor.ID,
		InitiatorAdmin: actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func handleBranchPreferencesAPI(w http.ResponseWriter, r *http.Request, svc branchservices.BranchWriteService) {
	actor, _ := currentActor(r.Context())
	var req struct {
		BranchID          string `json:"branch_id"`
		Taggable          bool   `json:"taggable"`
		RequireApproval   bool   `json:"require_approval"`
		ShowInCrossShares bool   `json:"show_in_cross_shares"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := svc.UpsertPreferences(r.Context(), branchservices.PreferencesRequest{
		BranchID:          req.BranchID,
		Taggable:          req.Taggable,
		RequireApproval:   req.RequireApproval,
		ShowInCrossShares: req.ShowInCrossShares,
		InitiatorID:       actor.ID,
		InitiatorAdmin:    actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
