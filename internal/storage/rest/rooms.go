package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

var searchColumns = []string{"name_en", "name_ar", "description_en", "description_ar"}

// ListRooms возвращает активные комнаты, новые первыми.
// limit == 0 означает «без ограничения». Строки разбираются по одной: комната
// с неверной конфигурацией возвращается без Config, остальные не страдают.
func (s *Storage) ListRooms(ctx context.Context, filter models.RoomFilter, limit, offset int) ([]models.Room, error) {
	const op = "storage.rest.ListRooms"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var rows []json.RawMessage
	err := s.do(ctx, request{method: http.MethodGet, table: roomsTable, query: roomsQuery(filter, limit, offset)}, &rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rooms := make([]models.Room, 0, len(rows))
	for _, row := range rows {
		var room models.Room
		if err := json.Unmarshal(row, &room); err != nil && !errors.Is(err, models.ErrInvalidRoom) {
			return nil, fmt.Errorf("%s: decode room: %w", op, err)
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// GetRoomBySlug возвращает активную комнату по slug.
func (s *Storage) GetRoomBySlug(ctx context.Context, slug string) (*models.Room, error) {
	const op = "storage.rest.GetRoomBySlug"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	q := url.Values{}
	q.Set("select", "*")
	q.Set("slug", "eq."+slug)
	q.Set("is_active", "eq.true")

	var room models.Room
	err := s.do(ctx, request{method: http.MethodGet, table: roomsTable, query: q, accept: singleObject}, &room)
	if err != nil && !errors.Is(err, models.ErrInvalidRoom) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &room, nil
}

func roomsQuery(filter models.RoomFilter, limit, offset int) url.Values {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("is_active", "eq.true")
	if filter.Type != nil {
		q.Set("type", "eq."+string(*filter.Type))
	}
	if filter.IsPremium != nil {
		q.Set("is_premium", "eq."+strconv.FormatBool(*filter.IsPremium))
	}
	if term := searchTerm(filter.SearchQuery); term != "" {
		parts := make([]string, 0, len(searchColumns))
		for _, col := range searchColumns {
			parts = append(parts, fmt.Sprintf("%s.ilike.*%s*", col, term))
		}
		q.Set("or", "("+strings.Join(parts, ",")+")")
	}
	q.Set("order", "created_at.desc,id.asc")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}

// searchTerm убирает символы, имеющие особый смысл в выражении or=(...):
// запятые и скобки разделяют условия, звёздочка — шаблон.
func searchTerm(q string) string {
	return strings.ToLower(strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*', '"', '\\':
			return ' '
		}
		return r
	}, q)))
}
