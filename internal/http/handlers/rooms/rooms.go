// Package rooms отдаёт каталог терапевтических комнат.
package rooms

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/therapy-rooms/internal/http/response"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/credentials"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// Catalog описывает операции каталога.
type Catalog interface {
	ListRooms(ctx context.Context, filter models.RoomFilter) ([]models.Room, error)
	ListRoomsPage(ctx context.Context, filter models.RoomFilter, pageSize int, pageToken string) (models.RoomPage, error)
	GetRoom(ctx context.Context, slug string) (*models.Room, error)
}

// Handler обрабатывает запросы каталога.
type Handler struct {
	log      *slog.Logger
	catalog  Catalog
	pageSize int
}

// New создает обработчики каталога. pageSize используется, когда клиент
// запросил страницу без page_size.
func New(log *slog.Logger, catalog Catalog, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Handler{log: log, catalog: catalog, pageSize: pageSize}
}

// List godoc
// @Summary Список комнат
// @Description Возвращает активные комнаты, новые первыми. Без page_size и page_token отдаёт весь каталог.
// @Tags Rooms
// @Produce json
// @Param type query string false "game, conversation или analysis"
// @Param is_premium query bool false "Только премиум или только бесплатные"
// @Param q query string false "Поиск по названию и описанию"
// @Param page_size query int false "Размер страницы"
// @Param page_token query string false "Токен следующей страницы"
// @Success 200 {object} response.Response "Страница комнат"
// @Failure 422 {object} response.ErrorResponse "Некорректные параметры"
// @Failure 502 {object} response.ErrorResponse "Ошибка хранилища"
// @Router /rooms [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.rooms.List"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := r.URL.Query()
	filter, pageSize, err := parseQuery(q.Get("type"), q.Get("is_premium"), q.Get("q"), q.Get("page_size"))
	if err != nil {
		log.Info("invalid catalog query", sl.Err(err))
		response.Write(w, r, err)
		return
	}
	token := q.Get("page_token")

	var page models.RoomPage
	if pageSize == 0 && token == "" {
		page.Items, err = h.catalog.ListRooms(r.Context(), filter)
	} else {
		if pageSize == 0 {
			pageSize = h.pageSize
		}
		page, err = h.catalog.ListRoomsPage(r.Context(), filter, pageSize, token)
	}
	if err != nil {
		log.Error("failed to list rooms", sl.Err(err))
		response.Write(w, r, err)
		return
	}

	log.Debug("rooms listed", slog.Int("count", len(page.Items)))
	render.JSON(w, r, response.OKWithData(page))
}

// Get godoc
// @Summary Комната по slug
// @Tags Rooms
// @Produce json
// @Param slug path string true "Slug комнаты"
// @Success 200 {object} response.Response "Комната"
// @Failure 404 {object} response.ErrorResponse "Комната не найдена или неактивна"
// @Router /rooms/{slug} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.rooms.Get"
	slug := chi.URLParam(r, "slug")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("slug", slug),
	)

	room, err := h.catalog.GetRoom(r.Context(), slug)
	if err != nil {
		log.Error("failed to get room", sl.Err(err))
		response.Write(w, r, err)
		return
	}
	if room == nil {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("room not found"))
		return
	}
	render.JSON(w, r, response.OKWithData(room))
}

const defaultPageSize = 20

func parseQuery(typ, premium, search, size string) (models.RoomFilter, int, error) {
	filter := models.RoomFilter{SearchQuery: search}
	fe := credentials.FieldErrors{}

	if typ != "" {
		t := models.RoomType(typ)
		if t.Valid() {
			filter.Type = &t
		} else {
			fe["type"] = "must be one of [game conversation analysis]"
		}
	}
	if premium != "" {
		b, err := strconv.ParseBool(premium)
		if err == nil {
			filter.IsPremium = &b
		} else {
			fe["is_premium"] = "must be a boolean"
		}
	}
	var pageSize int
	if size != "" {
		n, err := strconv.Atoi(size)
		if err == nil && n > 0 {
			pageSize = n
		} else {
			fe["page_size"] = "must be a positive integer"
		}
	}

	if len(fe) > 0 {
		return filter, 0, fmt.Errorf("%w: %w", models.ErrValidation, fe)
	}
	return filter, pageSize, nil
}
