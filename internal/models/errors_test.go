package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError_Is(t *testing.T) {
	tests := []struct {
		name  string
		err   *ProviderError
		match []error
		miss  []error
	}{
		{
			name:  "no rows",
			err:   &ProviderError{Status: http.StatusNotAcceptable, Code: NoRowsCode},
			match: []error{ErrNotFound},
			miss:  []error{ErrUnauthorized, ErrTransient},
		},
		{
			name:  "invalid credentials",
			err:   &ProviderError{Status: http.StatusBadRequest, Code: "invalid_credentials"},
			match: []error{ErrUnauthorized},
			miss:  []error{ErrNotFound, ErrTransient},
		},
		{
			name:  "forbidden",
			err:   &ProviderError{Status: http.StatusForbidden},
			match: []error{ErrUnauthorized},
		},
		{
			name:  "transport failure",
			err:   &ProviderError{Message: "connection refused"},
			match: []error{ErrTransient},
			miss:  []error{ErrUnauthorized, ErrNotFound},
		},
		{
			name:  "rate limited",
			err:   &ProviderError{Status: http.StatusTooManyRequests},
			match: []error{ErrTransient},
		},
		{
			name:  "server error",
			err:   &ProviderError{Status: http.StatusBadGateway},
			match: []error{ErrTransient},
		},
		{
			name: "conflict is none of them",
			err:  &ProviderError{Status: http.StatusConflict, Code: "23505"},
			miss: []error{ErrNotFound, ErrUnauthorized, ErrTransient},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("op: %w", tt.err)
			for _, target := range tt.match {
				assert.True(t, errors.Is(wrapped, target), "expected match with %v", target)
			}
			for _, target := range tt.miss {
				assert.False(t, errors.Is(wrapped, target), "unexpected match with %v", target)
			}
		})
	}
}

func TestProviderError_Error(t *testing.T) {
	assert.Equal(t, "JWT expired (PGRST301)", (&ProviderError{Message: "JWT expired", Code: "PGRST301"}).Error())
	assert.Equal(t, "boom", (&ProviderError{Message: "boom"}).Error())
}

func TestAsProviderError(t *testing.T) {
	assert.Nil(t, AsProviderError(nil))

	pe := &ProviderError{Status: http.StatusUnauthorized, Message: "nope"}
	assert.Same(t, pe, AsProviderError(fmt.Errorf("wrap: %w", pe)))

	plain := AsProviderError(errors.New("dial tcp: refused"))
	assert.Equal(t, 0, plain.Status)
	assert.Equal(t, "dial tcp: refused", plain.Message)
}
