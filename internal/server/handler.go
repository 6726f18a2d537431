package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/internal/routing"
	auditports "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/domain/ports"
	auditpersistence "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/audit/infrastructure/persistence"
	branchports "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/domain/ports"
	branchpersistence "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/infrastructure/persistence"
	branchservices "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/branch/services"
	groveports "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/ports"
	grovetypes "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/domain/types"
	grovepersistence "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/infrastructure/persistence"
	groveservices "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/grove/services"
	personports "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/domain/ports"
	personpersistence "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/infrastructure/persistence"
	personservices "github.com/mrpoffice-collab/FireflyGrove-sub005/modules/person/services"
)

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

// HandlerOptions lets tests and embedders swap any backing store. Fields
// left nil fall back to the Postgres stores built from the environment.
type HandlerOptions struct {
	Config       *EngineConfig
	Audit        auditports.Log
	GroveStore   groveports.GroveStore
	PersonStore  personports.PersonStore
	BranchStore  branchports.Store
	RequestStore branchports.RequestStore
	TreeResolver branchservices.TreeResolver
}

// NewMemoryHandlerOptions wires the full engine over the in-memory stores
// and seeds the open grove. Backs DB-less runs and the handler tests.
func NewMemoryHandlerOptions(cfg EngineConfig) HandlerOptions {
	audit := auditpersistence.NewMemoryLog()
	persons := personpersistence.NewMemoryStore(audit)
	groves := grovepersistence.NewMemoryStore(persons, audit)
	persons.AttachGroves(groves)
	branches := branchpersistence.NewMemoryStore(persons, audit)

	groves.SeedGrove(grovetypes.Grove{
		ID:          cfg.OpenGroveID,
		OwnerID:     cfg.SystemActorID,
		Status:      grovetypes.GroveActive,
		IsOpenGrove: true,
	})

	return HandlerOptions{
		Config:       &cfg,
		Audit:        audit,
		GroveStore:   groves,
		PersonStore:  persons,
		BranchStore:  branches,
		RequestStore: branches,
		TreeResolver: groves,
	}
}

// personGuardAdapter narrows the person service to the guard shape the
// request service wants.
type personGuardAdapter struct {
	svc personservices.PersonService
}

func (g personGuardAdapter) CanMutate(ctx context.Context, personID string, actorID string, admin bool) error {
	return g.svc.CanMutate(ctx, personservices.CanMutateRequest{
		PersonID:       personID,
		InitiatorID:    actorID,
		InitiatorAdmin: admin,
	})
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	allowlistPath := os.Getenv("ALLOWLIST_PATH")
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}

	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	cfg := opts.Config
	if cfg == nil {
		c, err := loadEngineConfigFromEnv()
		if err != nil {
			return nil, err
		}
		cfg = &c
	}

	auditLog := opts.Audit
	groveStore := opts.GroveStore
	personStore := opts.PersonStore
	branchStore := opts.BranchStore
	requestStore := opts.RequestStore
	treeResolver := opts.TreeResolver

	if groveStore == nil || personStore == nil || branchStore == nil {
		dsn := dbDSNFromEnv()
		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return nil, err
		}
		if auditLog == nil {
			auditLog = auditpersistence.NewAuditPGStore(pool)
		}
		if groveStore == nil {
			groveStore = grovepersistence.NewGrovePGStore(pool)
		}
		if personStore == nil {
			personStore = personpersistence.NewPersonPGStore(pool)
		}
		if branchStore == nil || requestStore == nil {
			s := branchpersistence.NewBranchPGStore(pool)
			if branchStore == nil {
				branchStore = s
			}
			if requestStore == nil {
				requestStore = s
			}
		}
	}
	if auditLog == nil {
		return nil, errors.New("server: missing audit log")
	}
	if requestStore == nil {
		return nil, errors.New("server: missing request store")
	}
	if treeResolver == nil {
		treeResolver = groveStore
	}

	groveSvc := groveservices.NewGroveWriteService(groveStore)
	personSvc := personservices.NewPersonService(personStore, cfg.SystemActorID)
	branchSvc := branchservices.NewBranchWriteService(branchStore, treeResolver)
	entrySvc := branchservices.NewEntryService(branchStore, treeResolver, cfg.UndoWindow())
	shareSvc := branchservices.NewShareService(branchStore, cfg.ShareRule)
	requestSvc := branchservices.NewRequestService(requestStore, branchStore, personGuardAdapter{svc: personSvc}, cfg.RequestTTL(), cfg.InviteTTL(), cfg.SystemActorID)
	trashSvc := branchservices.NewTrashService(branchStore, cfg.TrashRetention())

	router := routing.NewRouter(classifier)

	authorizer, err := loadAuthorizer()
	if err != nil {
		return nil, err
	}

	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/branches", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleBranchCreateAPI(w, r, branchSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/branches/archive", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleBranchArchiveAPI(w, r, branchSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/branches/preferences", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleBranchPreferencesAPI(w, r, branchSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/entries", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleEntryCreateAPI(w, r, entrySvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/entries/withdraw", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleEntryActionAPI(w, r, func(req branchservices.EntryActionRequest) error { return entrySvc.Withdraw(r.Context(), req) })
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/entries/hide", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleEntryActionAPI(w, r, func(req branchservices.EntryActionRequest) error { return entrySvc.Hide(r.Context(), req) })
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/entries/restore", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleEntryActionAPI(w, r, func(req branchservices.EntryActionRequest) error { return entrySvc.Restore(r.Context(), req) })
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/entries/undo", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleEntryActionAPI(w, r, func(req branchservices.EntryActionRequest) error { return entrySvc.Undo(r.Context(), req) })
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/entries/glow", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleEntryActionAPI(w, r, func(req branchservices.EntryActionRequest) error { return entrySvc.Glow(r.Context(), req) })
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/entries/share", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleEntryShareAPI(w, r, shareSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/links/remove", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleLinkRemoveAPI(w, r, shareSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/persons", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePersonCreateAPI(w, r, personSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/api/persons/duplicates", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePersonDuplicatesAPI(w, r, personSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/persons/root", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePersonRootAPI(w, r, personSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/persons/adopt", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePersonAdoptAPI(w, r, groveSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/trees/transplant", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleTreeTransplantAPI(w, r, groveSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/groves/freeze", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleGroveStatusAPI(w, r, func(req groveservices.SubscriptionEventRequest) error { return groveSvc.Freeze(r.Context(), req) }, "frozen")
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/groves/thaw", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleGroveStatusAPI(w, r, func(req groveservices.SubscriptionEventRequest) error { return groveSvc.Thaw(r.Context(), req) }, "active")
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/groves/cancel", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleGroveStatusAPI(w, r, func(req groveservices.SubscriptionEventRequest) error { return groveSvc.Cancel(r.Context(), req) }, "canceled")
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/requests", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleRequestIssueAPI(w, r, requestSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/requests/accept", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleRequestResolveAPI(w, r, func(req branchservices.ResolveRequestRequest) error { return requestSvc.AcceptRequest(r.Context(), req) }, "accepted")
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/requests/decline", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleRequestResolveAPI(w, r, func(req branchservices.ResolveRequestRequest) error { return requestSvc.DeclineRequest(r.Context(), req) }, "declined")
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/invites", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleInviteIssueAPI(w, r, requestSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/invites/accept", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleInviteResolveAPI(w, r, func(req branchservices.ResolveInviteRequest) error { return requestSvc.AcceptInvite(r.Context(), req) }, "accepted")
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/invites/decline", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleInviteResolveAPI(w, r, func(req branchservices.ResolveInviteRequest) error { return requestSvc.DeclineInvite(r.Context(), req) }, "declined")
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/api/trash", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleTrashListAPI(w, r, trashSvc)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/api/audit", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAuditListAPI(w, r, auditLog)
	}))

	return withActorFromHeaders(classifier, withAuthz(classifier, authorizer, router)), nil
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("server: failed to build handler: " + err.Error()))
	}
	return h
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}
