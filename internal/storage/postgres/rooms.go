package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

const roomColumns = `id, slug, name_en, name_ar, description_en, description_ar,
	type, is_premium, is_active, config, created_at`

// ListRooms возвращает активные комнаты, новые первыми, limit == 0 снимает ограничение.
// Комната с неверной конфигурацией возвращается без Config.
func (s *Storage) ListRooms(ctx context.Context, filter models.RoomFilter, limit, offset int) ([]models.Room, error) {
	const op = "storage.postgres.ListRooms"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	conds := []string{"is_active = true"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Type != nil {
		conds = append(conds, "type = "+arg(string(*filter.Type)))
	}
	if filter.IsPremium != nil {
		conds = append(conds, "is_premium = "+arg(*filter.IsPremium))
	}
	if q := strings.TrimSpace(filter.SearchQuery); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		conds = append(conds, fmt.Sprintf(
			"(name_en ILIKE %[1]s OR name_ar ILIKE %[1]s OR description_en ILIKE %[1]s OR description_ar ILIKE %[1]s)", p))
	}

	query := `SELECT ` + roomColumns + ` FROM rooms WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += " LIMIT " + arg(limit)
	}
	if offset > 0 {
		query += " OFFSET " + arg(offset)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	result := []models.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil && !errors.Is(err, models.ErrInvalidRoom) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetRoomBySlug возвращает активную комнату или ошибку models.ErrNotFound.
func (s *Storage) GetRoomBySlug(ctx context.Context, slug string) (*models.Room, error) {
	const op = "storage.postgres.GetRoomBySlug"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + roomColumns + ` FROM rooms WHERE slug = $1 AND is_active = true`
	room, err := scanRoom(s.DB.QueryRowContext(ctx, query, slug))
	if err != nil && !errors.Is(err, models.ErrInvalidRoom) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return room, nil
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var (
		r   models.Room
		typ string
		raw []byte
	)
	err := row.Scan(&r.ID, &r.Slug, &r.NameEN, &r.NameAR, &r.DescriptionEN, &r.DescriptionAR,
		&typ, &r.IsPremium, &r.IsActive, &raw, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Type = models.RoomType(typ)
	r.CreatedAt = r.CreatedAt.UTC()
	if r.Config, err = models.DecodeRoomConfig(r.Type, raw); err != nil {
		r.Config = models.RoomConfig{}
		return &r, fmt.Errorf("room %s: %w: %w", r.Slug, models.ErrInvalidRoom, err)
	}
	return &r, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
