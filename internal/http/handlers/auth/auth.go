// Package auth реализует HTTP-обработчики аутентификации локального моста:
// регистрацию, вход, выход, сброс и смену пароля. Обработчики проверяют форму
// запроса и делегируют операцию хранилищу сессии.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/therapy-rooms/internal/http/response"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
	"github.com/magabrotheeeer/therapy-rooms/internal/session"
)

// Service описывает операции хранилища сессии, нужные обработчикам.
type Service interface {
	SignUp(ctx context.Context, email, password, fullName string) error
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context)
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, newPassword string) error
	Snapshot() session.State
}

// SignUpRequest — данные формы регистрации.
type SignUpRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"required"`
}

// SignInRequest — данные формы входа.
type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ResetRequest — запрос письма для сброса пароля.
type ResetRequest struct {
	Email string `json:"email" validate:"required"`
}

// PasswordRequest — новый пароль текущего пользователя.
type PasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// Handler обрабатывает HTTP-запросы аутентификации.
type Handler struct {
	log      *slog.Logger
	svc      Service
	validate *validator.Validate
}

// New создает обработчики аутентификации.
func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{
		log:      log,
		svc:      svc,
		validate: response.NewValidator(),
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// SignUp godoc
// @Summary Регистрация
// @Description Создаёт учётную запись и профиль с пробным периодом. Если провайдер требует подтверждения почты, возвращает 202.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body SignUpRequest true "Данные регистрации"
// @Success 200 {object} response.Response "Сессия"
// @Success 202 {object} response.Response "Требуется подтверждение почты"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Ошибка провайдера"
// @Router /auth/signup [post]
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.SignUp"
	log := h.logger(r, op)

	var req SignUpRequest
	if !response.Decode(w, r, log, h.validate, &req) {
		return
	}

	err := h.svc.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if errors.Is(err, models.ErrEmailConfirmationPending) {
		log.Info("sign up awaits email confirmation")
		w.WriteHeader(http.StatusAccepted)
		render.JSON(w, r, response.OKWithData(map[string]any{
			"email_confirmation_pending": true,
		}))
		return
	}
	if err != nil {
		log.Error("sign up failed", sl.Err(err))
		response.Write(w, r, err)
		return
	}

	log.Info("sign up success")
	render.JSON(w, r, response.OKWithData(response.NewSessionView(h.svc.Snapshot())))
}

// SignIn godoc
// @Summary Вход
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body SignInRequest true "Учётные данные"
// @Success 200 {object} response.Response "Сессия"
// @Failure 401 {object} response.ErrorResponse "Неверные учётные данные"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/signin [post]
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.SignIn"
	log := h.logger(r, op)

	var req SignInRequest
	if !response.Decode(w, r, log, h.validate, &req) {
		return
	}

	if err := h.svc.SignIn(r.Context(), req.Email, req.Password); err != nil {
		log.Error("sign in failed", sl.Err(err))
		response.Write(w, r, err)
		return
	}

	log.Info("sign in success")
	render.JSON(w, r, response.OKWithData(response.NewSessionView(h.svc.Snapshot())))
}

// SignOut godoc
// @Summary Выход
// @Description Всегда очищает локальную сессию.
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /auth/signout [post]
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.SignOut"
	h.svc.SignOut(r.Context())
	h.logger(r, op).Info("signed out")
	render.JSON(w, r, response.OKWithData(response.NewSessionView(h.svc.Snapshot())))
}

// ResetPassword godoc
// @Summary Сброс пароля
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ResetRequest true "Почта"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/reset [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.ResetPassword"
	log := h.logger(r, op)

	var req ResetRequest
	if !response.Decode(w, r, log, h.validate, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Email); err != nil {
		log.Error("password reset failed", sl.Err(err))
		response.Write(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{"sent": true}))
}

// UpdatePassword godoc
// @Summary Смена пароля
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body PasswordRequest true "Новый пароль"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/password [put]
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.UpdatePassword"
	log := h.logger(r, op)

	var req PasswordRequest
	if !response.Decode(w, r, log, h.validate, &req) {
		return
	}
	if err := h.svc.UpdatePassword(r.Context(), req.Password); err != nil {
		log.Error("password update failed", sl.Err(err))
		response.Write(w, r, err)
		return
	}
	log.Info("password updated")
	render.JSON(w, r, response.OKWithData(map[string]any{"updated": true}))
}
