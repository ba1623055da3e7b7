package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/Kwabena/Talaria/pkg/constants"
)

func callActor(t *testing.T, actorID, actorRole string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	handler := Actor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		actor := GetActor(r.Context())
		if actor.ID != actorID || actor.Role != actorRole {
			t.Errorf("actor in context = %+v, want (%s, %s)", actor, actorID, actorRole)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/escrows", nil)
	if actorID != "" {
		req.Header.Set("X-Actor-ID", actorID)
	}
	if actorRole != "" {
		req.Header.Set("X-Actor-Role", actorRole)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, reached
}

func TestActorAcceptsValidHeaders(t *testing.T) {
	rec, reached := callActor(t, uuid.NewString(), constants.RoleClient)
	if rec.Code != http.StatusOK || !reached {
		t.Fatalf("status = %d, handler reached = %v", rec.Code, reached)
	}
}

func TestActorRejectsMissingHeaders(t *testing.T) {
	rec, reached := callActor(t, "", "")
	if rec.Code != http.StatusUnauthorized || reached {
		t.Fatalf("status = %d, handler reached = %v", rec.Code, reached)
	}
}

func TestActorRejectsMalformedID(t *testing.T) {
	rec, reached := callActor(t, "not-a-uuid", constants.RoleAdmin)
	if rec.Code != http.StatusUnauthorized || reached {
		t.Fatalf("status = %d, handler reached = %v", rec.Code, reached)
	}
}

func TestActorRejectsUnknownRole(t *testing.T) {
	rec, reached := callActor(t, uuid.NewString(), "superuser")
	if rec.Code != http.StatusUnauthorized || reached {
		t.Fatalf("status = %d, handler reached = %v", rec.Code, reached)
	}
}

func TestGetActorWithoutMiddlewareIsZero(t *testing.T) {
	actor := GetActor(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if actor.ID != "" || actor.Role != "" {
		t.Fatalf("actor = %+v, want zero value", actor)
	}
}
