// Package gateway — тонкая обёртка над REST API хостингового провайдера аутентификации.
//
// Каждая операция возвращает Result с флагом успеха, данными и нормализованной
// ошибкой провайдера; ошибки транспорта, декодирования и ответы провайдера
// никогда не возвращаются вызывающему как error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/magabrotheeeer/therapy-rooms/internal/events"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/jwt"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// refreshSkew — запас до истечения токена, при котором он уже обновляется.
const refreshSkew = 30 * time.Second

// Result — единая форма ответа шлюза.
type Result[T any] struct {
	Success bool                  `json:"success"`
	Data    T                     `json:"data,omitempty"`
	Error   *models.ProviderError `json:"error,omitempty"`
}

func ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func fail[T any](err *models.ProviderError) Result[T] {
	return Result[T]{Error: err}
}

// Err возвращает ошибку результата как error (nil при успехе).
func (r Result[T]) Err() error {
	if r.Success || r.Error == nil {
		return nil
	}
	return r.Error
}

// Config — параметры подключения к провайдеру.
type Config struct {
	BaseURL    string        // URL проекта, например https://xyz.supabase.co
	APIKey     string        // публичный ключ
	Timeout    time.Duration // таймаут HTTP-клиента (по умолчанию 15s)
	RedirectTo string        // адрес возврата из письма сброса пароля
	HTTPClient *http.Client
}

// Client реализует шлюз и хранит текущую сессию в памяти.
type Client struct {
	baseURL    string
	apiKey     string
	redirectTo string
	http       *http.Client
	bus        *events.Bus
	log        *slog.Logger
	now        func() time.Time

	mu      sync.RWMutex
	session *models.Session

	// обновления одним refresh-токеном склеиваются: провайдер ротирует его
	refreshes singleflight.Group
}

// New создаёт шлюз. При bus == nil события не публикуются.
func New(cfg Config, bus *events.Bus, log *slog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		redirectTo: cfg.RedirectTo,
		http:       httpClient,
		bus:        bus,
		log:        log,
		now:        time.Now,
	}
}

// WithClock подменяет источник времени (используется в тестах).
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Restore устанавливает сессию, восстановленную из локального хранилища.
func (c *Client) Restore(s *models.Session) {
	c.setSession(s)
}

// Session возвращает копию текущей сессии или nil.
func (c *Client) Session() *models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	cp := *c.session
	return &cp
}

func (c *Client) setSession(s *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		c.session = nil
		return
	}
	cp := *s
	c.session = &cp
}

func (c *Client) publish(kind events.Kind, s *models.Session, userID string) {
	c.publishEvent(events.AuthEvent{Kind: kind, UserID: userID, Session: s})
}

func (c *Client) publishEvent(ev events.AuthEvent) {
	if c.bus == nil {
		return
	}
	ev.Source = events.SourceLocal
	ev.At = c.now()
	c.bus.Publish(ev)
}

// expire сбрасывает сессию, которую больше нельзя обновить.
func (c *Client) expire(userID string) {
	c.setSession(nil)
	c.publishEvent(events.AuthEvent{Kind: events.SignedOut, Reason: events.ReasonSessionExpired, UserID: userID})
}

// SignUp регистрирует пользователя. Если провайдер требует подтверждения почты,
// Session в результате равна nil.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) Result[models.AuthPayload] {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}
	var resp signUpResponse
	if perr := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", body, &resp); perr != nil {
		return fail[models.AuthPayload](perr)
	}

	var payload models.AuthPayload
	if resp.AccessToken != "" {
		s, user := c.toSession(resp.tokenResponse)
		payload = models.AuthPayload{User: user, Session: s}
		c.setSession(s)
		c.publish(events.SignedIn, s, user.ID)
	} else {
		payload = models.AuthPayload{User: resp.userResponse.toAuthUser()}
	}
	if payload.User.ID == "" {
		return fail[models.AuthPayload](&models.ProviderError{Status: http.StatusBadGateway, Message: "sign up response has no user"})
	}
	return ok(payload)
}

// SignIn выполняет вход по почте и паролю.
func (c *Client) SignIn(ctx context.Context, email, password string) Result[models.AuthPayload] {
	body := map[string]string{"email": email, "password": password}
	var resp tokenResponse
	if perr := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &resp); perr != nil {
		return fail[models.AuthPayload](perr)
	}
	if resp.AccessToken == "" {
		return fail[models.AuthPayload](&models.ProviderError{Status: http.StatusBadGateway, Message: "sign in response has no access token"})
	}
	s, user := c.toSession(resp)
	c.setSession(s)
	c.publish(events.SignedIn, s, user.ID)
	return ok(models.AuthPayload{User: user, Session: s})
}

// SignOut завершает сессию у провайдера. Локальная сессия очищается всегда.
func (c *Client) SignOut(ctx context.Context) Result[struct{}] {
	const op = "gateway.SignOut"
	s := c.Session()
	c.setSession(nil)
	if s == nil {
		return ok(struct{}{})
	}

	perr := c.do(ctx, http.MethodPost, "/auth/v1/logout", s.AccessToken, nil, nil)
	c.publish(events.SignedOut, nil, s.UserID)
	if perr != nil {
		if perr.Is(models.ErrUnauthorized) || perr.Is(models.ErrNotFound) {
			// сессия уже недействительна у провайдера
			return ok(struct{}{})
		}
		c.log.Warn("provider sign out failed", sl.Op(op), sl.Err(perr))
		return fail[struct{}](perr)
	}
	return ok(struct{}{})
}

// ResetPassword отправляет письмо для сброса пароля.
func (c *Client) ResetPassword(ctx context.Context, email string) Result[struct{}] {
	body := map[string]string{"email": email}
	path := "/auth/v1/recover"
	if c.redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(c.redirectTo)
	}
	if perr := c.do(ctx, http.MethodPost, path, "", body, nil); perr != nil {
		return fail[struct{}](perr)
	}
	return ok(struct{}{})
}

// UpdatePassword меняет пароль текущего пользователя.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) Result[models.AuthUser] {
	cur := c.CurrentSession(ctx)
	if !cur.Success {
		return fail[models.AuthUser](cur.Error)
	}
	s := cur.Data
	if s == nil {
		return fail[models.AuthUser](&models.ProviderError{
			Status:  http.StatusUnauthorized,
			Code:    "session_not_found",
			Message: "Auth session missing!",
		})
	}
	var resp userResponse
	body := map[string]string{"password": newPassword}
	if perr := c.do(ctx, http.MethodPut, "/auth/v1/user", s.AccessToken, body, &resp); perr != nil {
		return fail[models.AuthUser](perr)
	}
	user := resp.toAuthUser()
	c.publish(events.UserUpdated, s, user.ID)
	return ok(user)
}

// CurrentSession возвращает текущую сессию, обновляя её, если access-токен истёк.
// При отсутствии сессии результат успешный, Data == nil.
// Отказ провайдера в обновлении очищает сессию и публикует SIGNED_OUT.
func (c *Client) CurrentSession(ctx context.Context) Result[*models.Session] {
	const op = "gateway.CurrentSession"
	s := c.Session()
	if s == nil {
		return ok[*models.Session](nil)
	}
	if !s.Expired(c.now(), refreshSkew) {
		return ok(s)
	}
	if s.RefreshToken == "" {
		c.expire(s.UserID)
		return ok[*models.Session](nil)
	}

	v, err, _ := c.refreshes.Do(s.RefreshToken, func() (any, error) {
		return c.refresh(ctx, s)
	})
	if err != nil {
		var perr *models.ProviderError
		if !errors.As(err, &perr) {
			perr = &models.ProviderError{Message: err.Error()}
		}
		if perr.Is(models.ErrUnauthorized) {
			c.log.Info("refresh token rejected, signing out", sl.Op(op), sl.Err(perr))
		}
		return fail[*models.Session](perr)
	}
	return ok(v.(*models.Session))
}

// refresh обменивает refresh-токен на новую сессию. Отказ провайдера сбрасывает сессию.
func (c *Client) refresh(ctx context.Context, s *models.Session) (*models.Session, error) {
	if cur := c.Session(); cur != nil && cur.RefreshToken != s.RefreshToken && !cur.Expired(c.now(), refreshSkew) {
		return cur, nil
	}
	var resp tokenResponse
	body := map[string]string{"refresh_token": s.RefreshToken}
	if perr := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &resp); perr != nil {
		if perr.Is(models.ErrUnauthorized) {
			c.expire(s.UserID)
		}
		return nil, perr
	}
	refreshed, user := c.toSession(resp)
	c.setSession(refreshed)
	c.publish(events.TokenRefreshed, refreshed, user.ID)
	return refreshed, nil
}

// toSession собирает сессию из ответа провайдера, дополняя недостающие поля из claims токена.
func (c *Client) toSession(tr tokenResponse) (*models.Session, models.AuthUser) {
	user := tr.User.toAuthUser()
	s := &models.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		UserID:       user.ID,
		Email:        user.Email,
	}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	case tr.ExpiresIn > 0:
		s.ExpiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
	}

	if claims, err := jwt.ParseUnverified(tr.AccessToken); err == nil {
		if s.UserID == "" {
			s.UserID = claims.UserID()
			user.ID = s.UserID
		}
		if s.Email == "" {
			s.Email = claims.Email
			user.Email = s.Email
		}
		if s.ExpiresAt.IsZero() {
			s.ExpiresAt = claims.ExpiresAt()
		}
	}
	return s, user
}

// do выполняет запрос к провайдеру и декодирует ответ в out.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) *models.ProviderError {
	const op = "gateway.do"
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &models.ProviderError{Message: fmt.Sprintf("%s: encode request: %v", op, err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &models.ProviderError{Message: fmt.Sprintf("%s: %v", op, err)}
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("auth request failed", sl.Op(op), slog.String("path", path), sl.Err(err))
		return &models.ProviderError{Message: fmt.Sprintf("network request failed: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &models.ProviderError{Status: resp.StatusCode, Message: fmt.Sprintf("%s: read response: %v", op, err)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, respBody)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &models.ProviderError{Status: http.StatusBadGateway, Message: fmt.Sprintf("%s: decode response: %v", op, err)}
		}
	}
	return nil
}
