package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emprecords/emprecords/internal/auth"
	"github.com/emprecords/emprecords/internal/platform/httpx"
)

func newTestRouter(owners RecordLookup) http.Handler {
	m := Middleware{Engine: NewEngine()}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r := chi.NewRouter()
	r.With(m.RequireAny(auth.RoleAdmin, auth.RoleHRManager)).Get("/employee/", ok)
	r.With(m.RequireFor(RequireRoles(auth.RoleAdmin, auth.RoleHRManager).OrSelf(), "emp_id")).Get("/employee/{emp_id}", ok)
	r.With(m.RequireFor(RequireRoles(auth.RoleAdmin).OrOwnerOf(owners), "record_id")).Get("/times/{record_id}", ok)
	r.With(m.Require(Authenticated())).Get("/whoami", ok)
	return r
}

func request(ac *auth.AuthenticatedContext, path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if ac != nil {
		req = req.WithContext(auth.WithAuthenticated(req.Context(), ac))
	}
	return req
}

func TestMiddlewareStatusMapping(t *testing.T) {
	router := newTestRouter(recordOwners{10: 3})
	user := caller(ptr(3), auth.RoleUser)
	hr := caller(nil, auth.RoleHRManager)

	cases := []struct {
		name string
		ac   *auth.AuthenticatedContext
		path string
		want int
	}{
		{"anonymous list", nil, "/employee/", http.StatusUnauthorized},
		{"anonymous whoami", nil, "/whoami", http.StatusUnauthorized},
		{"anonymous bad id", nil, "/employee/abc", http.StatusUnauthorized},
		{"user list", user, "/employee/", http.StatusForbidden},
		{"hr list", hr, "/employee/", http.StatusOK},
		{"user self", user, "/employee/3", http.StatusOK},
		{"user other", user, "/employee/1", http.StatusForbidden},
		{"hr other", hr, "/employee/1", http.StatusOK},
		{"bad id", user, "/employee/abc", http.StatusBadRequest},
		{"own record", user, "/times/10", http.StatusOK},
		{"missing record", user, "/times/11", http.StatusForbidden},
		{"authenticated", user, "/whoami", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, request(tc.ac, tc.path))
			assert.Equal(t, tc.want, rec.Code)
			if tc.want != http.StatusOK {
				assert.Equal(t, httpx.ContentTypeProblem, rec.Header().Get("Content-Type"))
				assert.Equal(t, httpx.CacheControlNoCache, rec.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestMiddlewareLookupFailureIs500(t *testing.T) {
	router := newTestRouter(RecordLookupFunc(func(context.Context, int64) (int64, error) {
		return 0, errors.New("connection refused")
	}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, request(caller(ptr(3), auth.RoleUser), "/times/10"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var pd httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pd))
	assert.Empty(t, pd.Detail)
}

func TestRolesHandler(t *testing.T) {
	r := chi.NewRouter()
	NewRolesHandler().MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"ADMIN"},{"name":"HR_MANAGER"},{"name":"USER"}]`, rec.Body.String())
}
