package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/descanso-app/descanso/internal/shared"
)

func TestRequireIdentityAcceptsBearerHeader(t *testing.T) {
	svc, repo, _ := newTestService(t)
	profile := seedProfile(t, repo, shared.RoleEmployee, true)
	_, token, err := svc.Login(context.Background(), profile.Email, "senha-forte")
	require.NoError(t, err)

	mw := Middleware{Service: svc}
	var seen shared.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shared.IdentityFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw.RequireIdentity(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, profile.ID, seen.ID)
}

func TestRequireIdentityAcceptsQueryToken(t *testing.T) {
	svc, repo, _ := newTestService(t)
	profile := seedProfile(t, repo, shared.RoleEmployee, true)
	_, token, err := svc.Login(context.Background(), profile.Email, "senha-forte")
	require.NoError(t, err)

	mw := Middleware{Service: svc}
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/stream?access_token="+token, nil)
	rec := httptest.NewRecorder()
	mw.RequireIdentity(next).ServeHTTP(rec, req)
	require.True(t, called)
}

func TestRequireIdentityRejectsMissingOrBadToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	mw := Middleware{Service: svc}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without identity")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	mw.RequireIdentity(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	mw.RequireIdentity(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireManagerChecksRoleAttributeOnly(t *testing.T) {
	mw := Middleware{}
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	// Display name must not grant access.
	impostor := shared.Identity{Name: "Gestor Supremo", Role: shared.RoleEmployee}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithIdentity(req.Context(), impostor))
	rec := httptest.NewRecorder()
	mw.RequireManager(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, called)

	manager := shared.Identity{Name: "", Role: shared.RoleManager}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithIdentity(req.Context(), manager))
	rec = httptest.NewRecorder()
	mw.RequireManager(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, called)
}
