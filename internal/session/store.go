package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/magabrotheeeer/therapy-rooms/internal/gateway"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/credentials"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/retry"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
	"github.com/magabrotheeeer/therapy-rooms/internal/subscription"
)

// Gateway — операции провайдера аутентификации, нужные хранилищу.
type Gateway interface {
	SignUp(ctx context.Context, email, password, fullName string) gateway.Result[models.AuthPayload]
	SignIn(ctx context.Context, email, password string) gateway.Result[models.AuthPayload]
	SignOut(ctx context.Context) gateway.Result[struct{}]
	ResetPassword(ctx context.Context, email string) gateway.Result[struct{}]
	UpdatePassword(ctx context.Context, newPassword string) gateway.Result[models.AuthUser]
	CurrentSession(ctx context.Context) gateway.Result[*models.Session]
	Restore(s *models.Session)
}

// Profiles — репозиторий профилей пользователей.
type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.User, error)
	CreateProfile(ctx context.Context, p models.NewProfile) error
}

// Option настраивает Store.
type Option func(*Store)

// WithClock задаёт источник времени для расчёта подписки и пробного периода.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRetry задаёт политики повторов для чтения и записи профиля.
func WithRetry(read, write retry.Policy) Option {
	return func(s *Store) {
		s.readPolicy = read
		s.writePolicy = write
	}
}

// WithLanguage задаёт язык профиля, создаваемого после регистрации.
func WithLanguage(lang models.Language) Option {
	return func(s *Store) { s.language = lang }
}

// Store — хранилище сессии.
type Store struct {
	gw       Gateway
	profiles Profiles
	persist  Persister
	log      *slog.Logger

	now         func() time.Time
	readPolicy  retry.Policy
	writePolicy retry.Policy
	language    models.Language

	state  atomic.Pointer[State]
	mu     sync.Mutex // сериализует фиксацию состояния
	initMu sync.Mutex

	subsMu sync.Mutex
	nextID int
	subs   map[int]func(State)
}

// New создаёт хранилище в состоянии uninitialized.
func New(gw Gateway, profiles Profiles, persist Persister, log *slog.Logger, opts ...Option) *Store {
	if persist == nil {
		persist = NopPersister{}
	}
	s := &Store{
		gw:          gw,
		profiles:    profiles,
		persist:     persist,
		log:         log,
		now:         time.Now,
		readPolicy:  retry.Read,
		writePolicy: retry.Write,
		language:    models.LanguageEN,
		subs:        make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(&State{Status: StatusUninitialized, Subscription: subscription.Default()})
	return s
}

// Snapshot возвращает текущее состояние. Подписка пересчитывается
// из полей профиля на момент вызова.
func (s *Store) Snapshot() State {
	st := s.state.Load().clone()
	st.Subscription = subscription.ForUser(st.User, s.now())
	return st
}

// Subscribe регистрирует наблюдателя, который вызывается после каждой фиксации.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

type persistMode int

const (
	persistSave persistMode = iota
	persistClear
	persistSkip
)

// commit атомарно заменяет состояние результатом fn, сохраняет проекцию
// и уведомляет наблюдателей.
func (s *Store) commit(mode persistMode, fn func(cur State) State) State {
	const op = "session.commit"

	s.mu.Lock()
	next := fn(*s.state.Load())
	next.Subscription = subscription.ForUser(next.User, s.now())
	s.state.Store(&next)

	var err error
	switch mode {
	case persistSave:
		err = s.persist.Save(Persisted{
			User:         next.User,
			Session:      next.Session,
			Subscription: next.Subscription,
			Initialized:  next.Initialized,
		})
	case persistClear:
		err = s.persist.Clear()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("failed to persist session state", sl.Op(op), sl.Err(err))
	}

	s.subsMu.Lock()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()

	snapshot := next.clone()
	for _, fn := range subs {
		fn(snapshot)
	}
	return next
}

func authenticated(user *models.User, sess *models.Session) func(State) State {
	return func(State) State {
		return State{Status: StatusAuthenticated, Initialized: true, User: user, Session: sess}
	}
}

func unauthenticated(State) State {
	return State{Status: StatusUnauthenticated, Initialized: true}
}

// Initialize восстанавливает сессию при запуске. Повторный вызов ничего не делает.
// Любая ошибка переводит хранилище в unauthenticated и только логируется.
func (s *Store) Initialize(ctx context.Context) {
	const op = "session.Initialize"
	log := s.log.With(sl.Op(op))

	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.state.Load().Initialized {
		return
	}

	s.commit(persistSkip, func(cur State) State {
		cur.Status = StatusInitializing
		return cur
	})

	persisted, err := s.persist.Load()
	if err != nil {
		log.Warn("failed to load persisted session", sl.Err(err))
	}
	if persisted != nil && persisted.Session != nil {
		s.gw.Restore(persisted.Session)
	}

	res := s.gw.CurrentSession(ctx)
	if !res.Success {
		log.Warn("failed to fetch current session", sl.Err(res.Err()))
		s.degrade(res.Err())
		return
	}
	if res.Data == nil {
		s.commit(persistSave, unauthenticated)
		return
	}

	user, err := s.loadOrCreateProfile(ctx, models.AuthUser{ID: res.Data.UserID, Email: res.Data.Email})
	if err != nil {
		log.Warn("failed to load profile", sl.Err(err))
		s.degrade(err)
		return
	}
	s.commit(persistSave, authenticated(user, res.Data))
	log.Info("session restored", slog.String("user_id", user.ID))
}

// degrade переводит хранилище в unauthenticated после сбоя инициализации.
// При временной ошибке сохранённые токены не трогаются, чтобы следующий запуск
// мог восстановить сессию.
func (s *Store) degrade(err error) {
	mode := persistSave
	if errors.Is(err, models.ErrTransient) {
		mode = persistSkip
	}
	s.commit(mode, unauthenticated)
}

// SignIn выполняет вход. При ошибке состояние не меняется.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	const op = "session.SignIn"
	if fe := credentials.ValidateSignIn(email, password); fe != nil {
		return fmt.Errorf("%s: %w: %w", op, models.ErrValidation, fe)
	}

	res := s.gw.SignIn(ctx, email, password)
	if !res.Success {
		return fmt.Errorf("%s: %w", op, res.Err())
	}

	user, err := s.loadOrCreateProfile(ctx, res.Data.User)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.commit(persistSave, authenticated(user, res.Data.Session))
	s.log.Info("signed in", sl.Op(op), slog.String("user_id", user.ID))
	return nil
}

// SignUp регистрирует пользователя и создаёт его профиль с пробным периодом.
// Если провайдер требует подтверждения почты, возвращается ErrEmailConfirmationPending.
func (s *Store) SignUp(ctx context.Context, email, password, fullName string) error {
	const op = "session.SignUp"
	if fe := credentials.ValidateSignUp(email, password, fullName); fe != nil {
		return fmt.Errorf("%s: %w: %w", op, models.ErrValidation, fe)
	}

	res := s.gw.SignUp(ctx, email, password, fullName)
	if !res.Success {
		return fmt.Errorf("%s: %w", op, res.Err())
	}
	if res.Data.Session == nil {
		s.log.Info("sign up requires email confirmation", sl.Op(op), slog.String("user_id", res.Data.User.ID))
		return fmt.Errorf("%s: %w", op, models.ErrEmailConfirmationPending)
	}

	authUser := res.Data.User
	if authUser.FullName == "" {
		authUser.FullName = fullName
	}
	if authUser.Email == "" {
		authUser.Email = email
	}
	if err := s.createProfile(ctx, authUser); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.getProfile(ctx, authUser.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.commit(persistSave, authenticated(user, res.Data.Session))
	s.log.Info("signed up", sl.Op(op), slog.String("user_id", user.ID))
	return nil
}

// SignOut завершает сессию. Ошибки провайдера только логируются;
// локальное состояние и сохранённая проекция очищаются всегда.
func (s *Store) SignOut(ctx context.Context) {
	const op = "session.SignOut"
	if res := s.gw.SignOut(ctx); !res.Success {
		s.log.Warn("provider sign out failed", sl.Op(op), sl.Err(res.Err()))
	}
	s.commit(persistClear, unauthenticated)
}

// UpdateProfile записывает патч и заменяет профиль строкой, которую вернул сервер.
func (s *Store) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.User, error) {
	const op = "session.UpdateProfile"
	cur := s.state.Load()
	if !cur.Authenticated() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotAuthenticated)
	}
	if err := validatePatch(patch); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	userID := cur.User.ID
	var user *models.User
	err := retry.Do(ctx, s.writePolicy, func(ctx context.Context) error {
		var err error
		user, err = s.profiles.UpdateProfile(ctx, userID, patch)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var stale bool
	s.commit(persistSave, func(cur State) State {
		if !cur.Authenticated() || cur.User.ID != userID {
			stale = true
			return cur
		}
		cur.User = user
		return cur
	})
	if stale {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotAuthenticated)
	}
	cp := *user
	return &cp, nil
}

// CompleteOnboarding отмечает онбординг пройденным.
func (s *Store) CompleteOnboarding(ctx context.Context) (*models.User, error) {
	done := true
	return s.UpdateProfile(ctx, models.ProfilePatch{OnboardingCompleted: &done})
}

// Refresh перечитывает сессию и профиль.
func (s *Store) Refresh(ctx context.Context) error {
	const op = "session.Refresh"
	if !s.state.Load().Authenticated() {
		return fmt.Errorf("%s: %w", op, models.ErrNotAuthenticated)
	}

	res := s.gw.CurrentSession(ctx)
	if !res.Success {
		if errors.Is(res.Err(), models.ErrUnauthorized) {
			s.commit(persistClear, unauthenticated)
		}
		return fmt.Errorf("%s: %w", op, res.Err())
	}
	if res.Data == nil {
		s.commit(persistClear, unauthenticated)
		return fmt.Errorf("%s: %w", op, models.ErrNotAuthenticated)
	}

	user, err := s.getProfile(ctx, res.Data.UserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.commit(persistSave, authenticated(user, res.Data))
	return nil
}

// ResetPassword отправляет письмо для сброса пароля.
func (s *Store) ResetPassword(ctx context.Context, email string) error {
	const op = "session.ResetPassword"
	if !credentials.ValidateEmail(email) {
		fe := credentials.FieldErrors{"email": credentials.MsgEmailInvalid}
		return fmt.Errorf("%s: %w: %w", op, models.ErrValidation, fe)
	}
	if res := s.gw.ResetPassword(ctx, email); !res.Success {
		return fmt.Errorf("%s: %w", op, res.Err())
	}
	return nil
}

// UpdatePassword меняет пароль текущего пользователя.
func (s *Store) UpdatePassword(ctx context.Context, newPassword string) error {
	const op = "session.UpdatePassword"
	if !s.state.Load().Authenticated() {
		return fmt.Errorf("%s: %w", op, models.ErrNotAuthenticated)
	}
	if res := credentials.ValidatePassword(newPassword); !res.IsValid {
		fe := credentials.FieldErrors{"password": res.FirstError()}
		return fmt.Errorf("%s: %w: %w", op, models.ErrValidation, fe)
	}
	if res := s.gw.UpdatePassword(ctx, newPassword); !res.Success {
		return fmt.Errorf("%s: %w", op, res.Err())
	}
	return nil
}

func validatePatch(p models.ProfilePatch) error {
	if p.Empty() {
		return fmt.Errorf("%w: empty profile update", models.ErrValidation)
	}
	fe := credentials.FieldErrors{}
	if p.FullName != nil {
		if msg := credentials.ValidateFullName(*p.FullName); msg != "" {
			fe["full_name"] = msg
		}
	}
	if p.PreferredLanguage != nil && !p.PreferredLanguage.Valid() {
		fe["preferred_language"] = "Unsupported language"
	}
	if len(fe) > 0 {
		return fmt.Errorf("%w: %w", models.ErrValidation, fe)
	}
	return nil
}

func (s *Store) getProfile(ctx context.Context, userID string) (*models.User, error) {
	var user *models.User
	err := retry.Do(ctx, s.readPolicy, func(ctx context.Context) error {
		var err error
		user, err = s.profiles.GetProfile(ctx, userID)
		return err
	})
	return user, err
}

// createProfile вставляет профиль с пробным периодом, если его ещё нет.
func (s *Store) createProfile(ctx context.Context, u models.AuthUser) error {
	start := s.now().UTC()
	p := models.NewProfile{
		ID:                u.ID,
		Email:             u.Email,
		FullName:          u.FullName,
		PreferredLanguage: s.language,
		TrialStartedAt:    start,
		TrialEndsAt:       subscription.TrialEndsAt(start),
	}
	return retry.Do(ctx, s.writePolicy, func(ctx context.Context) error {
		return s.profiles.CreateProfile(ctx, p)
	})
}

// loadOrCreateProfile читает профиль, а если строки нет (регистрация
// с подтверждением почты), создаёт её и читает снова.
func (s *Store) loadOrCreateProfile(ctx context.Context, u models.AuthUser) (*models.User, error) {
	user, err := s.getProfile(ctx, u.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if err := s.createProfile(ctx, u); err != nil {
		return nil, err
	}
	return s.getProfile(ctx, u.ID)
}
