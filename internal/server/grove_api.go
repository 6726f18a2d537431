package server

import (
	"net/http"

	groveservices "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/services"
)

func handleTreeTransplantAPI(w http.ResponseWriter, r *http.Request, svc groveservices.GroveWriteService) {
	actor, _ := currentActor(r.Context())
	var req struct {
		TreeID             string `json:"tree_id"`
		DestinationGroveID string `json:"destination_grove_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := svc.Transplant(r.Context(), groveservices.TransplantRequest{
		TreeID:             req.TreeID,
		DestinationGroveID: req.DestinationGroveID,
		InitiatorID:        actor.ID,
		InitiatorAdmin:     actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "transplanted"})
}

func handlePersonAdoptAPI(w http.ResponseWriter, r *http.Request, svc groveservices.GroveWriteService) {
	actor, _ := currentActor(r.Context())
	var req struct {
		PersonID           string `json:"person_id"`
		DestinationGroveID string `json:"destination_grove_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := svc.Adopt(r.Context(), groveservices.AdoptRequest{
		PersonID:           req.PersonID,
		DestinationGroveID: req.DestinationGroveID,
		InitiatorID:        actor.ID,
		InitiatorAdmin:     actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "adopted"})
}

// handleGroveStatusAPI serves the billing-driven freeze, thaw and cancel
// hooks. The casbin layer restricts these to role:admin.
func handleGroveStatusAPI(w http.ResponseWriter, r *http.Request, transition func(groveservices.SubscriptionEventRequest) error, status string) {
	actor, _ := currentActor(r.Context())
	var req struct {
		GroveID string `json:"grove_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := transition(groveservices.SubscriptionEventRequest{
		GroveID:     req.GroveID,
		InitiatorID: actor.ID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
