package routing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteError_JSONForInternalAPI(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/entries", nil)
	WriteError(rec, req, RouteClassInternalAPI, http.StatusConflict, "already_archived", "already archived")

	if rec.Code != http.StatusConflict {
		t.Fatalf("code=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("err=%v", err)
	}
	if env.Code != "already_archived" || env.Meta.Path != "/api/entries" || env.Meta.Method != http.MethodPost {
		t.Fatalf("env=%+v", env)
	}
}

func TestWriteErrorReason_CarriesReason(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/entries/restore", nil)
	WriteErrorReason(rec, req, RouteClassInternalAPI, http.StatusForbidden, "forbidden", "forbidden", "not_branch_owner")

	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("err=%v", err)
	}
	if env.Reason != "not_branch_owner" {
		t.Fatalf("reason=%q", env.Reason)
	}
}

func TestWriteError_HTMLForUI(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/groves", nil)
	WriteError(rec, req, RouteClassUI, http.StatusNotFound, "not_found", "not found")

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content-type=%q", ct)
	}
	if !strings.Contains(rec.Body.String(), "not found") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestWriteError_AcceptJSONOnUIRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/groves", nil)
	req.Header.Set("Accept", "application/json")
	WriteError(rec, req, RouteClassUI, http.StatusNotFound, "not_found", "not found")

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
}

func TestTraceIDFromRequest(t *testing.T) {
	mk := func(tp string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/x", nil)
		if tp != "" {
			r.Header.Set("traceparent", tp)
		}
		return r
	}

	if got := traceIDFromRequest(mk("")); got != "" {
		t.Fatalf("got=%q", got)
	}
	if got := traceIDFromRequest(mk("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("got=%q", got)
	}
	if got := traceIDFromRequest(mk("00-short-00f067aa0ba902b7-01")); got != "" {
		t.Fatalf("got=%q", got)
	}
	if got := traceIDFromRequest(mk("00-00000000000000000000000000000000-00f067aa0ba902b7-01")); got != "" {
		t.Fatalf("got=%q", got)
	}
	if got := traceIDFromRequest(mk("00-ZZf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")); got != "" {
		t.Fatalf("got=%q", got)
	}
}
