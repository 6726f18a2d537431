package server

import (
	"net/http"
	"time"

	branchservices "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/services"
)

type trashItemResponse struct {
	Kind          string    `json:"kind"`
	ID            string    `json:"id"`
	BranchID      string    `json:"branch_id"`
	Title         string    `json:"title"`
	RemovedAt     time.Time `json:"removed_at"`
	DaysRemaining int       `json:"days_remaining"`
}

func handleTrashListAPI(w http.ResponseWriter, r *http.Request, svc branchservices.TrashService) {
	actor, _ := currentActor(r.Context())
	items, err := svc.List(r.Context(), branchservices.TrashListRequest{InitiatorID: actor.ID})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]trashItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, trashItemResponse{
			Kind:          string(it.Kind),
			ID:            it.ID,
			BranchID:      it.BranchID,
			Title:         it.Title,
			RemovedAt:     it.RemovedAt,
			DaysRemaining: it.DaysRemaining,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Items []trashItemResponse `json:"items"`
	}{Items: out})
}
