package session

import (
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

// StorageKey — фиксированный ключ, под которым хранится проекция состояния.
const StorageKey = "auth-storage"

// Persisted — сохраняемая часть состояния.
type Persisted struct {
	User         *models.User             `json:"user"`
	Session      *models.Session          `json:"session"`
	Subscription models.SubscriptionState `json:"subscription"`
	Initialized  bool                     `json:"initialized"`
}

// Persister сохраняет и восстанавливает проекцию состояния.
type Persister interface {
	// Load возвращает nil без ошибки, если сохранённого состояния нет.
	Load() (*Persisted, error)
	Save(p Persisted) error
	Clear() error
}

// KV — хранилище байтовых значений по ключу (например, securestore.FileStore).
type KV interface {
	Get(name string) ([]byte, bool, error)
	Set(name string, value []byte) error
	Delete(name string) error
}

// KVPersister хранит проекцию как JSON под ключом StorageKey.
type KVPersister struct {
	kv KV
}

// NewKVPersister создаёт Persister поверх kv.
func NewKVPersister(kv KV) *KVPersister {
	return &KVPersister{kv: kv}
}

func (p *KVPersister) Load() (*Persisted, error) {
	const op = "session.KVPersister.Load"
	data, ok, err := p.kv.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, nil
	}
	var out Persisted
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

func (p *KVPersister) Save(state Persisted) error {
	const op = "session.KVPersister.Save"
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.kv.Set(StorageKey, data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *KVPersister) Clear() error {
	if err := p.kv.Delete(StorageKey); err != nil {
		return fmt.Errorf("session.KVPersister.Clear: %w", err)
	}
	return nil
}

// NopPersister ничего не сохраняет.
type NopPersister struct{}

func (NopPersister) Load() (*Persisted, error) { return nil, nil }
func (NopPersister) Save(Persisted) error { return nil }
func (NopPersister) Clear() error { return nil }
