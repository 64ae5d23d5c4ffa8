// Package account отдаёт оболочке интерфейса текущее состояние сессии
// и принимает изменения профиля.
package account

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/therapy-rooms/internal/http/middlewarectx"
	"github.com/magabrotheeeer/therapy-rooms/internal/http/response"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
	"github.com/magabrotheeeer/therapy-rooms/internal/session"
)

// Service описывает операции хранилища сессии, нужные обработчикам.
type Service interface {
	Snapshot() session.State
	Refresh(ctx context.Context) error
	UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.User, error)
	CompleteOnboarding(ctx context.Context) (*models.User, error)
}

// ProfileRequest — частичное обновление профиля. Отсутствующие поля не меняются.
type ProfileRequest struct {
	FullName            *string `json:"full_name,omitempty"`
	PreferredLanguage   *string `json:"preferred_language,omitempty" validate:"omitempty,oneof=en ar"`
	OnboardingCompleted *bool   `json:"onboarding_completed,omitempty"`
}

// Patch переводит запрос в доменный патч.
func (r ProfileRequest) Patch() models.ProfilePatch {
	p := models.ProfilePatch{FullName: r.FullName, OnboardingCompleted: r.OnboardingCompleted}
	if r.PreferredLanguage != nil {
		lang := models.Language(*r.PreferredLanguage)
		p.PreferredLanguage = &lang
	}
	return p
}

// Handler обрабатывает запросы состояния сессии и профиля.
type Handler struct {
	log      *slog.Logger
	svc      Service
	validate *validator.Validate
}

// New создает обработчики.
func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc, validate: response.NewValidator()}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_id", middlewarectx.UserIDFrom(r.Context())),
	)
}

// Session godoc
// @Summary Текущее состояние сессии
// @Tags Session
// @Produce json
// @Success 200 {object} response.Response
// @Router /session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.OKWithData(response.NewSessionView(h.svc.Snapshot())))
}

// Refresh godoc
// @Summary Обновить профиль и подписку с сервера
// @Tags Session
// @Produce json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Router /session/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.Refresh"
	log := h.logger(r, op)

	if err := h.svc.Refresh(r.Context()); err != nil {
		log.Error("refresh failed", sl.Err(err))
		response.Write(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(response.NewSessionView(h.svc.Snapshot())))
}

// UpdateProfile godoc
// @Summary Обновить профиль
// @Tags Profile
// @Accept json
// @Produce json
// @Param request body ProfileRequest true "Изменяемые поля"
// @Success 200 {object} response.Response "Обновлённый профиль"
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /profile [patch]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.UpdateProfile"
	log := h.logger(r, op)

	var req ProfileRequest
	if !response.Decode(w, r, log, h.validate, &req) {
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), req.Patch())
	if err != nil {
		log.Error("profile update failed", sl.Err(err))
		response.Write(w, r, err)
		return
	}
	log.Info("profile updated")
	render.JSON(w, r, response.OKWithData(user))
}

// CompleteOnboarding godoc
// @Summary Завершить онбординг
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Response "Обновлённый профиль"
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Router /onboarding/complete [post]
func (h *Handler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.CompleteOnboarding"
	log := h.logger(r, op)

	user, err := h.svc.CompleteOnboarding(r.Context())
	if err != nil {
		log.Error("onboarding completion failed", sl.Err(err))
		response.Write(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(user))
}
