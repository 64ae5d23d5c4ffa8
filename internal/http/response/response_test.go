package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/therapy-rooms/internal/lib/credentials"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
	"github.com/magabrotheeeer/therapy-rooms/internal/session"
)

func TestOKWithData(t *testing.T) {
	data := map[string]string{"key": "value"}
	resp := OKWithData(data)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, data, resp.Data)
}

func TestError(t *testing.T) {
	resp := Error("something went wrong")

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "something went wrong", resp.Error)
	assert.Nil(t, resp.Data)
}

func TestValidationError(t *testing.T) {
	type request struct {
		Email    string `json:"email" validate:"required"`
		Language string `json:"preferred_language" validate:"omitempty,oneof=en ar"`
	}

	err := NewValidator().Struct(request{Language: "fr"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "is a required field", resp.Fields["email"])
	assert.Equal(t, "must be one of [en ar]", resp.Fields["preferred_language"])
	assert.Contains(t, resp.Error, "field email is a required field")
}

func TestFromError(t *testing.T) {
	fe := credentials.FieldErrors{"password": credentials.MsgPasswordLength}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantCode   string
		wantFields map[string]string
	}{
		{
			name:       "field validation",
			err:        fmt.Errorf("session.SignUp: %w: %w", models.ErrValidation, fe),
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "password: " + credentials.MsgPasswordLength,
			wantFields: map[string]string{"password": credentials.MsgPasswordLength},
		},
		{
			name:       "plain validation",
			err:        fmt.Errorf("%w: malformed page token", models.ErrValidation),
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "validation failed",
		},
		{
			name:       "provider rejection",
			err:        fmt.Errorf("session.SignIn: %w", &models.ProviderError{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}),
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid login credentials",
			wantCode:   "invalid_credentials",
		},
		{
			name:       "not authenticated",
			err:        fmt.Errorf("session.UpdateProfile: %w", models.ErrNotAuthenticated),
			wantStatus: http.StatusUnauthorized,
			wantError:  "not authenticated",
		},
		{
			name:       "not found",
			err:        models.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantError:  "not found",
		},
		{
			name:       "transient",
			err:        &models.ProviderError{Message: "dial tcp: connection refused"},
			wantStatus: http.StatusBadGateway,
			wantError:  "dial tcp: connection refused",
		},
		{
			name:       "provider conflict",
			err:        &models.ProviderError{Status: 422, Code: "user_already_exists", Message: "User already registered"},
			wantStatus: http.StatusBadGateway,
			wantError:  "User already registered",
			wantCode:   "user_already_exists",
		},
		{
			name:       "internal",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := FromError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, StatusError, resp.Status)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantFields != nil {
				assert.Equal(t, tt.wantFields, resp.Fields)
			} else {
				assert.Nil(t, resp.Fields)
			}
		})
	}
}

func TestNewSessionView(t *testing.T) {
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st := session.State{
		Status:      session.StatusAuthenticated,
		Initialized: true,
		User:        &models.User{ID: "u1"},
		Session:     &models.Session{AccessToken: "secret", ExpiresAt: exp},
	}

	v := NewSessionView(st)
	assert.Equal(t, session.StatusAuthenticated, v.Status)
	assert.Equal(t, "u1", v.User.ID)
	require.NotNil(t, v.SessionExpiresAt)
	assert.Equal(t, exp, *v.SessionExpiresAt)

	assert.Nil(t, NewSessionView(session.State{}).SessionExpiresAt)
}
