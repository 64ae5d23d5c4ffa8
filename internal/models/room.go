package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RoomType — вид терапевтической комнаты.
type RoomType string

const (
	RoomGame         RoomType = "game"
	RoomConversation RoomType = "conversation"
	RoomAnalysis     RoomType = "analysis"
)

// Valid сообщает, известен ли тип комнаты.
func (t RoomType) Valid() bool {
	switch t {
	case RoomGame, RoomConversation, RoomAnalysis:
		return true
	}
	return false
}

// Room — строка таблицы rooms. Slug уникален глобально.
type Room struct {
	ID            string     `json:"id"`
	Slug          string     `json:"slug"`
	NameEN        string     `json:"name_en"`
	NameAR        string     `json:"name_ar"`
	DescriptionEN string     `json:"description_en"`
	DescriptionAR string     `json:"description_ar"`
	Type          RoomType   `json:"type"`
	IsPremium     bool       `json:"is_premium"`
	IsActive      bool       `json:"is_active"`
	Config        RoomConfig `json:"config"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Question — вопрос игровой комнаты.
type Question struct {
	ID     string `json:"id"`
	TextEN string `json:"text_en"`
	TextAR string `json:"text_ar"`
}

// AnswerOption — вариант ответа в комнате самооценки.
type AnswerOption struct {
	Value   int    `json:"value"`
	LabelEN string `json:"label_en"`
	LabelAR string `json:"label_ar"`
}

// AnalysisQuestion — вопрос комнаты самооценки с вариантами ответа.
type AnalysisQuestion struct {
	Question
	Options []AnswerOption `json:"options"`
}

// GameConfig — настройки игровой комнаты.
type GameConfig struct {
	Questions []Question `json:"questions"`
}

// ConversationConfig — ограничения комнаты-беседы.
type ConversationConfig struct {
	MaxTurns           int `json:"max_turns"`
	MaxDurationMinutes int `json:"max_duration_minutes"`
}

// AnalysisConfig — вопросы комнаты самооценки.
type AnalysisConfig struct {
	Questions []AnalysisQuestion `json:"questions"`
}

// RoomConfig — размеченное объединение по типу комнаты.
// Заполнен ровно один из вариантов Game, Conversation, Analysis.
type RoomConfig struct {
	SystemPrompt string
	Game         *GameConfig
	Conversation *ConversationConfig
	Analysis     *AnalysisConfig
}

// Kind возвращает тип заполненного варианта или пустую строку.
func (c RoomConfig) Kind() RoomType {
	switch {
	case c.Game != nil && c.Conversation == nil && c.Analysis == nil:
		return RoomGame
	case c.Conversation != nil && c.Game == nil && c.Analysis == nil:
		return RoomConversation
	case c.Analysis != nil && c.Game == nil && c.Conversation == nil:
		return RoomAnalysis
	}
	return ""
}

type roomConfigJSON struct {
	SystemPrompt       string          `json:"system_prompt"`
	Questions          json.RawMessage `json:"questions,omitempty"`
	MaxTurns           *int            `json:"max_turns,omitempty"`
	MaxDurationMinutes *int            `json:"max_duration_minutes,omitempty"`
}

// MarshalJSON сериализует конфигурацию в плоский объект, как он хранится в таблице.
func (c RoomConfig) MarshalJSON() ([]byte, error) {
	out := roomConfigJSON{SystemPrompt: c.SystemPrompt}
	var err error
	switch c.Kind() {
	case RoomGame:
		out.Questions, err = json.Marshal(c.Game.Questions)
	case RoomAnalysis:
		out.Questions, err = json.Marshal(c.Analysis.Questions)
	case RoomConversation:
		out.MaxTurns = &c.Conversation.MaxTurns
		out.MaxDurationMinutes = &c.Conversation.MaxDurationMinutes
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// DecodeRoomConfig разбирает хранимый JSON-блок конфигурации для комнаты типа t.
func DecodeRoomConfig(t RoomType, raw []byte) (RoomConfig, error) {
	const op = "models.DecodeRoomConfig"
	var in roomConfigJSON
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &in); err != nil {
			return RoomConfig{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	cfg := RoomConfig{SystemPrompt: in.SystemPrompt}
	switch t {
	case RoomGame:
		if in.MaxTurns != nil || in.MaxDurationMinutes != nil {
			return RoomConfig{}, fmt.Errorf("%s: game room carries conversation limits", op)
		}
		cfg.Game = &GameConfig{Questions: []Question{}}
		if hasValue(in.Questions) {
			if err := json.Unmarshal(in.Questions, &cfg.Game.Questions); err != nil {
				return RoomConfig{}, fmt.Errorf("%s: %w", op, err)
			}
		}
	case RoomAnalysis:
		if in.MaxTurns != nil || in.MaxDurationMinutes != nil {
			return RoomConfig{}, fmt.Errorf("%s: analysis room carries conversation limits", op)
		}
		cfg.Analysis = &AnalysisConfig{Questions: []AnalysisQuestion{}}
		if hasValue(in.Questions) {
			if err := json.Unmarshal(in.Questions, &cfg.Analysis.Questions); err != nil {
				return RoomConfig{}, fmt.Errorf("%s: %w", op, err)
			}
		}
	case RoomConversation:
		if hasValue(in.Questions) {
			return RoomConfig{}, fmt.Errorf("%s: conversation room carries a question list", op)
		}
		cfg.Conversation = &ConversationConfig{}
		if in.MaxTurns != nil {
			cfg.Conversation.MaxTurns = *in.MaxTurns
		}
		if in.MaxDurationMinutes != nil {
			cfg.Conversation.MaxDurationMinutes = *in.MaxDurationMinutes
		}
	default:
		return RoomConfig{}, fmt.Errorf("%s: unknown room type %q", op, t)
	}
	return cfg, nil
}

// UnmarshalJSON выбирает вариант конфигурации по полю type.
// Если конфигурация не подходит к типу, остальные поля строки заполняются,
// Config остаётся пустым, а ошибка оборачивает ErrInvalidRoom.
func (r *Room) UnmarshalJSON(data []byte) error {
	type plain Room
	var aux struct {
		plain
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Room(aux.plain)
	cfg, err := DecodeRoomConfig(aux.Type, aux.Config)
	if err != nil {
		r.Config = RoomConfig{}
		return fmt.Errorf("room %s: %w: %w", aux.Slug, ErrInvalidRoom, err)
	}
	r.Config = cfg
	return nil
}

// HasValidConfig сообщает, что вариант конфигурации совпадает с типом комнаты.
func (r Room) HasValidConfig() bool {
	return r.Type.Valid() && r.Config.Kind() == r.Type
}

func hasValue(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
