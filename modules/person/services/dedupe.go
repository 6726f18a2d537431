package services

import (
	"context"
	"strings"

	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/httperr"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/namematch"
)

type DuplicateCheckRequest struct {
	Name      string
	DeathDate string
}

// DuplicateCandidate carries enough context for a human to decide whether
// to reuse the existing record. The check is advisory; it never blocks
// creation.
type DuplicateCandidate struct {
	PersonID    string
	Name        string
	OwnerID     string
	MemoryCount int
	Discovery   bool
	MatchKind   namematch.Kind
	Similarity  float64
}

func (s *personService) CheckDuplicates(ctx context.Context, req DuplicateCheckRequest) ([]DuplicateCandidate, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, httperr.NewValidation(errPersonInvalidArgument)
	}
	if !validDate(req.DeathDate) {
		return nil, httperr.NewValidation(errDateInvalid)
	}

	existing, err := s.store.ListLegacyByDeathDate(ctx, req.DeathDate)
	if err != nil {
		return nil, s.mapErr(err)
	}

	var out []DuplicateCandidate
	for _, p := range existing {
		kind, sim, ok := namematch.Evaluate(name, p.Name)
		if !ok {
			continue
		}
		out = append(out, DuplicateCandidate{
			PersonID:    p.ID,
			Name:        p.Name,
			OwnerID:     p.OwnerID,
			MemoryCount: p.MemoryCount,
			Discovery:   p.Discovery,
			MatchKind:   kind,
			Similarity:  sim,
		})
	}
	return out, nil
}
