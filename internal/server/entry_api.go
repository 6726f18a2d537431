package server

import (
	"net/http"
	"time"

	branchtypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/types"
	branchservices "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/services"
)

type entryResponse struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	MediaURL  string    `json:"media_url,omitempty"`
	AudioURL  string    `json:"audio_url,omitempty"`
	Status    string    `json:"status"`
	GlowCount int       `json:"glow_count"`
	CreatedAt time.Time `json:"created_at"`
}

func toEntryResponse(e branchtypes.Entry) entryResponse {
	return entryResponse{
		ID:        e.ID,
		BranchID:  e.BranchID,
		AuthorID:  e.AuthorID,
		Text:      e.Text,
		MediaURL:  e.MediaURL,
		AudioURL:  e.AudioURL,
		Status:    string(e.Status),
		GlowCount: e.GlowCount,
		CreatedAt: e.CreatedAt,
	}
}

func handleEntryCreateAPI(w http.ResponseWriter, r *http.Request, svc branchservices.EntryService) {
	actor, _ := currentActor(r.Context())
	var req struct {
		BranchID string `json:"branch_id"`
		Text     string `json:"text"`
		MediaURL string `json:"media_url"`
		AudioURL string `json:"audio_url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := svc.Create(r.Context(), branchservices.CreateEntryRequest{
		BranchID:       req.BranchID,
		Text:           req.Text,
		MediaURL:       req.MediaURL,
		AudioURL:       req.AudioURL,
		InitiatorID:    actor.ID,
		InitiatorAdmin: actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryResponse(e))
}

// handleEntryActionAPI serves the four state transitions and glow; the
// mutation is selected by the route.
func handleEntryActionAPI(w http.ResponseWriter, r *http.Request, action func(r branchservices.EntryActionRequest) error) {
	actor, _ := currentActor(r.Context())
	var req struct {
		EntryID string `json:"entry_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := action(branchservices.EntryActionRequest{
		EntryID:        req.EntryID,
		InitiatorID:    actor.ID,
		InitiatorAdmin: actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleEntryShareAPI(w http.ResponseWriter, r *http.Request, svc branchservices.ShareService) {
	actor, _ := currentActor(r.Context())
	var req struct {
		EntryID        string `json:"entry_id"`
		TargetBranchID string `json:"target_branch_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	l, err := svc.Share(r.Context(), branchservices.ShareRequest{
		EntryID:        req.EntryID,
		TargetBranchID: req.TargetBranchID,
		InitiatorID:    actor.ID,
		InitiatorAdmin: actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":         l.ID,
		"entry_id":   l.EntryID,
		"branch_id":  l.BranchID,
		"role":       string(l.Role),
		"visibility": string(l.Visibility),
	})
}

func handleLinkRemoveAPI(w http.ResponseWriter, r *http.Request, svc branchservices.ShareService) {
	actor, _ := currentActor(r.Context())
	var req struct {
		EntryID  string `json:"entry_id"`
		BranchID string `json:"branch_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := svc.RemoveSharedLink(r.Context(), branchservices.RemoveLinkRequest{
		EntryID:        req.EntryID,
		BranchID:       req.BranchID,
		InitiatorID:    actor.ID,
		InitiatorAdmin: actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
