// Package rest реализует хранилище профилей и комнат поверх табличного REST API
// хостингового бэкенда. Политики доступа к строкам применяются на стороне сервера.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

const (
	profilesTable = "user_profiles"
	roomsTable    = "rooms"

	singleObject = "application/vnd.pgrst.object+json"
)

// TokenFunc возвращает действующий access-токен текущей сессии, обновляя его
// при необходимости. Пустая строка означает запрос с публичным ключом.
type TokenFunc func(ctx context.Context) (string, error)

// Storage — клиент табличного API.
type Storage struct {
	baseURL string
	apiKey  string
	token   TokenFunc
	http    *http.Client
}

// New создаёт клиент. При token == nil запросы идут с публичным ключом.
func New(baseURL, apiKey string, timeout time.Duration, token TokenFunc) *Storage {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		baseURL: strings.TrimRight(baseURL, "/") + "/rest/v1",
		apiKey:  apiKey,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type request struct {
	method string
	table  string
	query  url.Values
	body   any
	accept string
	prefer string
}

func (s *Storage) do(ctx context.Context, r request, out any) error {
	var reqBody io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	u := s.baseURL + "/" + r.table
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, reqBody)
	if err != nil {
		return err
	}

	bearer := s.apiKey
	if s.token != nil {
		t, err := s.token(ctx)
		if err != nil {
			return fmt.Errorf("access token: %w", err)
		}
		if t != "" {
			bearer = t
		}
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	accept := r.accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return &models.ProviderError{Message: fmt.Sprintf("network request failed: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &models.ProviderError{Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError разбирает ошибку табличного API: {code, message, details, hint}.
func decodeError(status int, body []byte) *models.ProviderError {
	var er struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	perr := &models.ProviderError{Status: status}
	if err := json.Unmarshal(body, &er); err == nil {
		perr.Code = er.Code
		perr.Message = er.Message
	}
	if perr.Message == "" {
		perr.Message = http.StatusText(status)
	}
	return perr
}
