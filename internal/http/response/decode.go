package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
)

// Decode читает JSON-тело в dst и проверяет его валидатором. При ошибке ответ
// уже записан: 400 для некорректного JSON, 422 для нарушений валидации.
func Decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, v *validator.Validate, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, Error("invalid request body"))
		return false
	}

	if err := v.Struct(dst); err != nil {
		log.Error("validation failed", sl.Err(err))
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, ValidationError(verrs))
			return false
		}
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, Error("invalid request body"))
		return false
	}
	return true
}
