package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFromContext(r.Context())
		_, _ = w.Write([]byte(id))
	})
}

func TestJWT_SignVerify(t *testing.T) {
	j := JWT{Secret: []byte("s3cret"), TokenTTL: time.Minute, Issuer: "escrow"}
	tok, exp, err := j.Sign("alice", "user")
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	c, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.Subject)
	assert.Equal(t, "user", c.Role)

	other := JWT{Secret: []byte("other")}
	_, err = other.Verify(tok)
	assert.Error(t, err)
}

func TestMiddleware_Bearer(t *testing.T) {
	j := &JWT{Secret: []byte("s3cret"), TokenTTL: time.Minute}
	tok, _, err := j.Sign("bob", "")
	require.NoError(t, err)

	h := Middleware(j)(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// header de dev é ignorado quando há segredo
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "mallory")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "", rec.Body.String())
}

func TestMiddleware_DevHeader(t *testing.T) {
	h := Middleware(nil)(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, " carol ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "carol", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	j := &JWT{Secret: []byte("s3cret"), TokenTTL: time.Minute}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(RoleFromContext(r.Context())))
	})
	h := Middleware(j)(RequireRole(RoleService)(ok))

	sign := func(role string) string {
		tok, _, err := j.Sign("escrow-service", role)
		require.NoError(t, err)
		return "Bearer " + tok
	}
	tests := []struct {
		name   string
		authz  string
		status int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"plain user", sign(""), http.StatusForbidden},
		{"operator", sign(RoleOperator), http.StatusForbidden},
		{"service", sign(RoleService), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	// role de dev só vale sem segredo
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderUserID, "mallory")
	req.Header.Set(HeaderRole, RoleService)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	Middleware(nil)(RequireRole(RoleService)(ok)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RoleService, rec.Body.String())
}
