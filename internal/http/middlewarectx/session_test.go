package middlewarectx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/therapy-rooms/internal/http/response"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
	"github.com/magabrotheeeer/therapy-rooms/internal/session"
)

type staticStore session.State

func (s staticStore) Snapshot() session.State { return session.State(s) }

func TestRequireSession(t *testing.T) {
	tests := []struct {
		name           string
		state          session.State
		expectedStatus int
		expectedUser   string
	}{
		{
			name:           "authenticated",
			state:          session.State{Status: session.StatusAuthenticated, Initialized: true, User: &models.User{ID: "u1"}},
			expectedStatus: http.StatusNoContent,
			expectedUser:   "u1",
		},
		{
			name:           "signed out",
			state:          session.State{Status: session.StatusUnauthenticated, Initialized: true},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "still initializing",
			state:          session.State{Status: session.StatusInitializing},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			h := RequireSession(newNoopLogger(), staticStore(tt.state))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = UserIDFrom(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/v1/profile", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedUser, gotUser)
			if tt.expectedStatus == http.StatusUnauthorized {
				var resp response.Response
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "not authenticated", resp.Error)
			}
		})
	}
}
