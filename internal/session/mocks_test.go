package session

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/therapy-rooms/internal/gateway"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SignUp(ctx context.Context, email, password, fullName string) gateway.Result[models.AuthPayload] {
	args := m.Called(ctx, email, password, fullName)
	return args.Get(0).(gateway.Result[models.AuthPayload])
}

func (m *MockGateway) SignIn(ctx context.Context, email, password string) gateway.Result[models.AuthPayload] {
	args := m.Called(ctx, email, password)
	return args.Get(0).(gateway.Result[models.AuthPayload])
}

func (m *MockGateway) SignOut(ctx context.Context) gateway.Result[struct{}] {
	args := m.Called(ctx)
	return args.Get(0).(gateway.Result[struct{}])
}

func (m *MockGateway) ResetPassword(ctx context.Context, email string) gateway.Result[struct{}] {
	args := m.Called(ctx, email)
	return args.Get(0).(gateway.Result[struct{}])
}

func (m *MockGateway) UpdatePassword(ctx context.Context, newPassword string) gateway.Result[models.AuthUser] {
	args := m.Called(ctx, newPassword)
	return args.Get(0).(gateway.Result[models.AuthUser])
}

func (m *MockGateway) CurrentSession(ctx context.Context) gateway.Result[*models.Session] {
	args := m.Called(ctx)
	return args.Get(0).(gateway.Result[*models.Session])
}

func (m *MockGateway) Restore(s *models.Session) {
	m.Called(s)
}

type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockProfiles) UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.User, error) {
	args := m.Called(ctx, userID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockProfiles) CreateProfile(ctx context.Context, p models.NewProfile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// memPersister хранит проекцию в памяти.
type memPersister struct {
	mu      sync.Mutex
	saved   *Persisted
	saves   int
	clears  int
	loadErr error
}

func (p *memPersister) Load() (*Persisted, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	if p.saved == nil {
		return nil, nil
	}
	cp := *p.saved
	return &cp, nil
}

func (p *memPersister) Save(state Persisted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = &state
	p.saves++
	return nil
}

func (p *memPersister) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = nil
	p.clears++
	return nil
}

func (p *memPersister) snapshot() (*Persisted, int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved, p.saves, p.clears
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func okResult[T any](v T) gateway.Result[T] {
	return gateway.Result[T]{Success: true, Data: v}
}

func failResult[T any](err *models.ProviderError) gateway.Result[T] {
	return gateway.Result[T]{Error: err}
}
