package models

import (
	"fmt"
	"strings"
)

// RoomFilter — параметры фильтрации каталога комнат.
// Неактивные комнаты исключаются всегда, независимо от фильтра.
type RoomFilter struct {
	Type        *RoomType `json:"type,omitempty"`
	IsPremium   *bool     `json:"is_premium,omitempty"`
	SearchQuery string    `json:"search_query,omitempty"`
}

// Key возвращает стабильное строковое представление фильтра для ключей кеша.
func (f RoomFilter) Key() string {
	typ := "*"
	if f.Type != nil {
		typ = string(*f.Type)
	}
	premium := "*"
	if f.IsPremium != nil {
		premium = fmt.Sprintf("%t", *f.IsPremium)
	}
	return fmt.Sprintf("type=%s|premium=%s|q=%s", typ, premium, strings.ToLower(strings.TrimSpace(f.SearchQuery)))
}

// Matches проверяет комнату на соответствие фильтру и инварианту is_active.
func (f RoomFilter) Matches(r Room) bool {
	if !r.IsActive {
		return false
	}
	if f.Type != nil && r.Type != *f.Type {
		return false
	}
	if f.IsPremium != nil && r.IsPremium != *f.IsPremium {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.SearchQuery))
	if q == "" {
		return true
	}
	for _, field := range []string{r.NameEN, r.NameAR, r.DescriptionEN, r.DescriptionAR} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// RoomPage — страница каталога. NextPageToken пуст на последней странице.
type RoomPage struct {
	Items         []Room `json:"items"`
	NextPageToken string `json:"next_page_token,omitempty"`
}
