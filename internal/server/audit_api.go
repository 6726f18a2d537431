package server

import (
	"net/http"
	"time"

	"github.com/mrpoffice-collab/FireflyGrove-sub005/internal/routing"
	auditports "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/ports"
)

type auditRecordResponse struct {
	ID         string            `json:"id"`
	ActorID    string            `json:"actor_id"`
	Action     string            `json:"action"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// handleAuditListAPI is admin-only. The casbin layer already gates the
// route; the in-handler check keeps shadow mode honest.
func handleAuditListAPI(w http.ResponseWriter, r *http.Request, log auditports.Log) {
	actor, _ := currentActor(r.Context())
	if !actor.Admin {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusForbidden, "forbidden", "forbidden")
		return
	}

	q := r.URL.Query()
	targetType := q.Get("target_type")
	targetID := q.Get("target_id")
	if targetType == "" || targetID == "" {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "invalid_argument", "target_type and target_id required")
		return
	}

	recs, err := log.List(r.Context(), targetType, targetID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]auditRecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, auditRecordResponse{
			ID:         rec.ID,
			ActorID:    rec.ActorID,
			Action:     rec.Action,
			TargetType: rec.TargetType,
			TargetID:   rec.TargetID,
			Metadata:   rec.Metadata,
			CreatedAt:  rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Records []auditRecordResponse `json:"records"`
	}{Records: out})
}
