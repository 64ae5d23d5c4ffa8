// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON-ответов локального моста: успешных ответов, ошибок
// и сообщений валидации в едином формате.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/therapy-rooms/internal/lib/credentials"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// Response описывает стандартную структуру JSON-ответа.
// Status — "OK" или "Error"; Error и Fields заполняются при неуспехе, Data — при успехе.
type Response struct {
	Status string            `json:"status"`
	Error  string            `json:"error,omitempty"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Data   any               `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response на основе ошибок валидатора.
// Каждое нарушение превращается в человекочитаемый текст по имени поля из json-тега.
func ValidationError(errs validator.ValidationErrors) Response {
	fields := make(map[string]string, len(errs))
	msgs := make([]string, 0, len(errs))

	for _, err := range errs {
		var msg string
		switch err.ActualTag() {
		case "required":
			msg = "is a required field"
		case "email":
			msg = "must be a valid email address"
		case "oneof":
			msg = fmt.Sprintf("must be one of [%s]", err.Param())
		case "max":
			msg = fmt.Sprintf("must be at most %s characters", err.Param())
		case "min":
			msg = fmt.Sprintf("must be at least %s", err.Param())
		default:
			msg = "is not valid"
		}
		fields[err.Field()] = msg
		msgs = append(msgs, fmt.Sprintf("field %s %s", err.Field(), msg))
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(msgs, ", "),
		Fields: fields,
	}
}

// FromError сопоставляет ошибку ядра с HTTP-статусом и телом ответа:
// валидация — 422, отказ провайдера и отсутствие сессии — 401, отсутствие записи — 404,
// временные и прочие ошибки провайдера — 502, всё остальное — 500.
func FromError(err error) (int, Response) {
	var fe credentials.FieldErrors
	pe := providerError(err)

	switch {
	case errors.Is(err, models.ErrValidation):
		resp := Error(models.ErrValidation.Error())
		if errors.As(err, &fe) {
			resp.Error = fe.Error()
			resp.Fields = fe
		}
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, models.ErrNotAuthenticated):
		return http.StatusUnauthorized, Error(models.ErrNotAuthenticated.Error())
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, withProvider(Error(models.ErrUnauthorized.Error()), pe)
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, withProvider(Error(models.ErrNotFound.Error()), pe)
	case pe != nil:
		return http.StatusBadGateway, withProvider(Error(models.ErrTransient.Error()), pe)
	}
	return http.StatusInternalServerError, Error("internal error")
}

// Write отправляет ответ об ошибке со статусом из FromError.
func Write(w http.ResponseWriter, r *http.Request, err error) int {
	status, resp := FromError(err)
	w.WriteHeader(status)
	render.JSON(w, r, resp)
	return status
}

func providerError(err error) *models.ProviderError {
	var pe *models.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

func withProvider(resp Response, pe *models.ProviderError) Response {
	if pe == nil {
		return resp
	}
	if pe.Message != "" {
		resp.Error = pe.Message
	}
	resp.Code = pe.Code
	return resp
}
