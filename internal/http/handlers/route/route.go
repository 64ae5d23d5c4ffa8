// Package route сообщает оболочке интерфейса решение навигационного охранника
// для сегмента, на котором она сейчас находится.
package route

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/therapy-rooms/internal/guard"
	"github.com/magabrotheeeer/therapy-rooms/internal/http/response"
)

// Guard принимает текущий сегмент и возвращает решение.
type Guard interface {
	SetSegment(segment string) guard.Decision
}

// Result — решение охранника. Route пуст, если переход не нужен.
type Result struct {
	Segment  string         `json:"segment"`
	Decision guard.Decision `json:"decision"`
	Route    string         `json:"route,omitempty"`
}

// Handler обрабатывает запросы навигации.
type Handler struct {
	log   *slog.Logger
	guard Guard
}

// New создает обработчик.
func New(log *slog.Logger, g Guard) *Handler {
	return &Handler{log: log, guard: g}
}

// ServeHTTP godoc
// @Summary Решение охранника навигации
// @Tags Route
// @Produce json
// @Param segment query string false "Текущий сегмент, например (auth) или (tabs)/rooms"
// @Success 200 {object} response.Response
// @Router /route [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segment := guard.Normalize(r.URL.Query().Get("segment"))
	d := h.guard.SetSegment(segment)
	render.JSON(w, r, response.OKWithData(Result{Segment: segment, Decision: d, Route: d.Route()}))
}
