package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/mrpoffice-collab/FireflyGrove-sub005/internal/routing"
)

// Actor is the caller as asserted by the upstream identity proxy. The
// engine trusts the headers the same way the proxy's session layer is
// trusted; there is no second credential check here.
type Actor struct {
	ID    string
	Admin bool
}

type actorContextKey struct{}

func withActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}

func currentActor(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorContextKey{}).(Actor)
	return a, ok
}

func actorFromHeaders(r *http.Request) (Actor, bool) {
	id := strings.TrimSpace(r.Header.Get("X-Actor-ID"))
	if id == "" {
		return Actor{}, false
	}
	return Actor{ID: id, Admin: r.Header.Get("X-Actor-Admin") == "1"}, true
}

func withActorFromHeaders(classifier *routing.Classifier, next http.Handler) http.Handler {
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

		a, ok := actorFromHeaders(r)
		if !ok {
			if rc == routing.RouteClassInternalAPI || rc == routing.RouteClassWebhook {
				routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), a)))
	})
}
