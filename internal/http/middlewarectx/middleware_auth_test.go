package middlewarectx

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/isp-billing/internal/lib/jwt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestJWTMiddleware(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)

	token, err := maker.GenerateToken("operator", "admin", "uid-1")
	require.NoError(t, err)

	cases := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "valid token", authHeader: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "missing header", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", authHeader: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", authHeader: "Bearer not-a-token", wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotUser, gotRole, gotUID string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = r.Context().Value(User).(string)
				gotRole, _ = r.Context().Value(Role).(string)
				gotUID, _ = r.Context().Value(UserUID).(string)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rec := httptest.NewRecorder()

			JWTMiddleware(maker, discardLogger())(next).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, "operator", gotUser)
				assert.Equal(t, "admin", gotRole)
				assert.Equal(t, "uid-1", gotUID)
			}
		})
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)

	adminToken, err := maker.GenerateToken("boss", "admin", "uid-1")
	require.NoError(t, err)
	userToken, err := maker.GenerateToken("clerk", "user", "uid-2")
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := JWTMiddleware(maker, discardLogger())(AdminOnlyMiddleware(discardLogger())(next))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/reconcile", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/billing/reconcile", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
