package server

import (
	"net/http"

	persontypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/domain/types"
	personservices "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/services"
)

type personResponse struct {
	ID        string `json:"id"`
	TreeID    string `json:"tree_id"`
	Name      string `json:"name"`
	BirthDate string `json:"birth_date,omitempty"`
	DeathDate string `json:"death_date,omitempty"`
	Discovery bool   `json:"discovery"`
	OwnerID   string `json:"owner_id"`
	Legacy    bool   `json:"legacy"`
}

type duplicateResponse struct {
	PersonID    string  `json:"person_id"`
	Name        string  `json:"name"`
	OwnerID     string  `json:"owner_id"`
	MemoryCount int     `json:"memory_count"`
	Discovery   bool    `json:"discovery"`
	MatchKind   string  `json:"match_kind"`
	Similarity  float64 `json:"similarity"`
}

func toPersonResponse(p persontypes.Person) personResponse {
	return personResponse{
		ID:        p.ID,
		TreeID:    p.TreeID,
		Name:      p.Name,
		BirthDate: p.BirthDate,
		DeathDate: p.DeathDate,
		Discovery: p.Discovery,
		OwnerID:   p.OwnerID,
		Legacy:    p.IsLegacy(),
	}
}

func toDuplicateResponses(cands []personservices.DuplicateCandidate) []duplicateResponse {
	out := make([]duplicateResponse, 0, len(cands))
	for _, c := range cands {
		out = append(out, duplicateResponse{
			PersonID:    c.PersonID,
			Name:        c.Name,
			OwnerID:     c.OwnerID,
			MemoryCount: c.MemoryCount,
			Discovery:   c.Discovery,
			MatchKind:   string(c.MatchKind),
			Similarity:  c.Similarity,
		})
	}
	return out
}

// handlePersonCreateAPI creates the subject. For legacy subjects the
// duplicate check runs first and its candidates ride along in the
// response; they never block the create.
func handlePersonCreateAPI(w http.ResponseWriter, r *http.Request, svc personservices.PersonService) {
	actor, _ := currentActor(r.Context())
	var req struct {
		Name        string `json:"name"`
		BirthDate   string `json:"birth_date"`
		DeathDate   string `json:"death_date"`
		Discovery   bool   `json:"discovery"`
		GroveID     string `json:"grove_id"`
		MemoryLimit *int   `json:"memory_limit"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var duplicates []personservices.DuplicateCandidate
	if req.DeathDate != "" {
		cands, err := svc.CheckDuplicates(r.Context(), personservices.DuplicateCheckRequest{
			Name:      req.Name,
			DeathDate: req.DeathDate,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		duplicates = cands
	}

	p, err := svc.Create(r.Context(), personservices.CreatePersonRequest{
		Name:           req.Name,
		BirthDate:      req.BirthDate,
		DeathDate:      req.DeathDate,
		Discovery:      req.Discovery,
		GroveID:        req.GroveID,
		MemoryLimit:    req.MemoryLimit,
		InitiatorID:    actor.ID,
		InitiatorAdmin: actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Person     personResponse      `json:"person"`
		Duplicates []duplicateResponse `json:"duplicates,omitempty"`
	}{
		Person:     toPersonResponse(p),
		Duplicates: toDuplicateResponses(duplicates),
	})
}

func handlePersonDuplicatesAPI(w http.ResponseWriter, r *http.Request, svc personservices.PersonService) {
	q := r.URL.Query()
	cands, err := svc.CheckDuplicates(r.Context(), personservices.DuplicateCheckRequest{
		Name:      q.Get("name"),
		DeathDate: q.Get("death_date"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Duplicates []duplicateResponse `json:"duplicates"`
	}{Duplicates: toDuplicateResponses(cands)})
}

func handlePersonRootAPI(w http.ResponseWriter, r *http.Request, svc personservices.PersonService) {
	actor, _ := currentActor(r.Context())
	var req struct {
		SourcePersonID string `json:"source_person_id"`
		TargetPersonID string `json:"target_person_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := svc.Root(r.Context(), personservices.RootRequest{
		SourcePersonID: req.SourcePersonID,
		TargetPersonID: req.TargetPersonID,
		InitiatorID:    actor.ID,
		InitiatorAdmin: actor.Admin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rooted"})
}
