package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/camp-occupancy/internal/application"
)

func TestSessionMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		validatorErr   error
		authenticated  bool
		cookie         *http.Cookie
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "missing credentials",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   codeInvalidSession,
		},
		{
			name:           "unknown token from cookie",
			cookie:         &http.Cookie{Name: sessionCookieName, Value: "forged"},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   codeInvalidSession,
		},
		{
			name:           "expired session",
			authenticated:  true,
			validatorErr:   application.ErrSessionExpired,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   codeSessionExpired,
		},
		{
			name:           "role cannot be resolved",
			authenticated:  true,
			validatorErr:   fmt.Errorf("%w: unknown role %q", application.ErrAccessUndetermined, "auditor"),
			expectedStatus: http.StatusForbidden,
			expectedCode:   codeAccessUndetermined,
		},
		{
			name:           "validator failure",
			authenticated:  true,
			validatorErr:   errors.New("key store offline"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newRouterHarness(t)
			h.sessions.err = tc.validatorErr

			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			if tc.authenticated {
				req.Header.Set("Authorization", "Bearer "+validToken)
			}
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			rec := httptest.NewRecorder()
			h.handler.ServeHTTP(rec, req)

			require.Equal(t, tc.expectedStatus, rec.Code)
			body := decodeBody[errorResponse](t, rec)
			assert.Equal(t, tc.expectedCode, body.ErrorCode)
			assert.NotEmpty(t, body.Message)
		})
	}

	t.Run("attaches authenticated principal to request context", func(t *testing.T) {
		t.Parallel()
		captured := make(chan application.Principal, 1)
		handler := RequireSession(&stubSessions{principal: siteAdminX()}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			require.True(t, ok)
			captured <- p
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: validToken})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, siteAdminX(), <-captured)
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerLogger(r.Context(), nil, "TestHandler", "Serve").InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusAccepted)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/camps", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var inside, completed map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &inside))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &completed))
	assert.Equal(t, "TestHandler", inside["handler"])
	assert.Equal(t, "/camps", inside["path"])
	assert.Equal(t, inside["request_id"], completed["request_id"])
	assert.Equal(t, "request completed", completed["msg"])
	assert.Equal(t, float64(http.StatusAccepted), completed["status"])
}
