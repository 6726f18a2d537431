package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/mrpoffice-collab/FireflyGrove-sub005/internal/routing"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/authz"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := defaultAuthzModelPath()
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := defaultAuthzPolicyPath()
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func defaultAuthzModelPath() (string, error) {
	path := "config/access/model.conf"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz model not found")
}

func defaultAuthzPolicyPath() (string, error) {
	path := "config/access/policy.csv"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz policy not found")
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

// withAuthz is the route-level capability gate. Entity-level ownership
// checks stay in the services; this layer only decides whether the
// actor's role may touch the surface at all.
func withAuthz(classifier *routing.Classifier, a authorizer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassUI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		if path == "/health" || path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		roleSlug := authz.RoleVisitor
		if actor, ok := currentActor(r.Context()); ok {
			roleSlug = authz.RoleKeeper
			if actor.Admin {
				roleSlug = authz.RoleAdmin
			}
		}

		subject := authz.SubjectFromRoleSlug(roleSlug)
		allowed, enforced, err := a.Authorize(subject, authz.DomainGlobal, object, action)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	switch path {
	case "/api/branches", "/api/branches/archive", "/api/branches/preferences":
		if method == http.MethodPost {
			return authz.ObjectBranches, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/entries", "/api/entries/withdraw", "/api/entries/hide", "/api/entries/restore", "/api/entries/undo", "/api/entries/glow", "/api/entries/share", "/api/links/remove":
		if method == http.MethodPost {
			return authz.ObjectEntries, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/persons":
		if method == http.MethodPost {
			return authz.ObjectPersons, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/persons/duplicates":
		if method == http.MethodGet {
			return authz.ObjectPersons, authz.ActionRead, true
		}
		return "", "", false
	case "/api/persons/root":
		if method == http.MethodPost {
			return authz.ObjectRoots, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/persons/adopt":
		if method == http.MethodPost {
			return authz.ObjectGroves, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/trees/transplant":
		if method == http.MethodPost {
			return authz.ObjectTrees, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/groves/freeze", "/api/groves/thaw", "/api/groves/cancel":
		if method == http.MethodPost {
			return authz.ObjectGroves, authz.ActionAdmin, true
		}
		return "", "", false
	case "/api/requests", "/api/requests/accept", "/api/requests/decline":
		if method == http.MethodPost {
			return authz.ObjectRequests, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/invites", "/api/invites/accept", "/api/invites/decline":
		if method == http.MethodPost {
			return authz.ObjectInvites, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/trash":
		if method == http.MethodGet {
			return authz.ObjectTrash, authz.ActionRead, true
		}
		return "", "", false
	case "/api/audit":
		if method == http.MethodGet {
			return authz.ObjectAudit, authz.ActionAdmin, true
		}
		return "", "", false
	default:
		return "", "", false
	}
}
