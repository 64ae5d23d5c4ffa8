// Package securestore — локальное key-value хранилище состояния клиента.
// Значения шифруются XChaCha20-Poly1305 ключом, который создаётся отдельно
// для каждого ключа хранилища и хранится в KeyStore.
package securestore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// ErrCorrupted — содержимое не удалось расшифровать.
var ErrCorrupted = errors.New("securestore: corrupted value")

// KeyStore хранит симметричные ключи шифрования. На устройстве это защищённый
// анклав платформы, в ядре — файлы с ограниченными правами.
type KeyStore interface {
	// Key возвращает ключ для name, создавая случайный при первом обращении.
	Key(name string) ([]byte, error)
	Delete(name string) error
}

// FileKeyStore хранит по одному 32-байтному ключу на файл.
type FileKeyStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileKeyStore создаёт каталог ключей с правами 0700.
func NewFileKeyStore(dir string) (*FileKeyStore, error) {
	const op = "securestore.NewFileKeyStore"
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &FileKeyStore{dir: dir}, nil
}

func (k *FileKeyStore) path(name string) string {
	return filepath.Join(k.dir, hex.EncodeToString([]byte(name))+".key")
}

func (k *FileKeyStore) Key(name string) ([]byte, error) {
	const op = "securestore.FileKeyStore.Key"
	k.mu.Lock()
	defer k.mu.Unlock()

	key, err := os.ReadFile(k.path(name))
	switch {
	case err == nil:
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("%s: key %q has invalid length %d", op, name, len(key))
		}
		return key, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := writeFileAtomic(k.path(name), key); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return key, nil
}

func (k *FileKeyStore) Delete(name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := os.Remove(k.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("securestore.FileKeyStore.Delete: %w", err)
	}
	return nil
}

// FileStore — хранилище значений в файлах каталога dir.
// Если keys равен nil, значения пишутся открытым текстом.
type FileStore struct {
	dir  string
	keys KeyStore
	mu   sync.Mutex
}

// NewFileStore создаёт каталог хранилища с правами 0700.
func NewFileStore(dir string, keys KeyStore) (*FileStore, error) {
	const op = "securestore.NewFileStore"
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &FileStore{dir: dir, keys: keys}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, hex.EncodeToString([]byte(name))+".dat")
}

// Get читает значение. Для отсутствующего ключа возвращает (nil, false, nil).
func (s *FileStore) Get(name string) ([]byte, bool, error) {
	const op = "securestore.FileStore.Get"
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if s.keys == nil {
		return data, true, nil
	}

	plain, err := s.open(name, data)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return plain, true, nil
}

// Set записывает значение атомарно (через временный файл и rename).
func (s *FileStore) Set(name string, value []byte) error {
	const op = "securestore.FileStore.Set"
	s.mu.Lock()
	defer s.mu.Unlock()

	data := value
	if s.keys != nil {
		sealed, err := s.seal(name, value)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		data = sealed
	}
	if err := writeFileAtomic(s.path(name), data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete удаляет значение и его ключ шифрования.
func (s *FileStore) Delete(name string) error {
	const op = "securestore.FileStore.Delete"
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.keys != nil {
		if err := s.keys.Delete(name); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// seal возвращает nonce || ciphertext; имя ключа служит дополнительными данными,
// чтобы значение нельзя было подложить под другой ключ.
func (s *FileStore) seal(name string, plain []byte) ([]byte, error) {
	key, err := s.keys.Key(name)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, []byte(name)), nil
}

func (s *FileStore) open(name string, sealed []byte) ([]byte, error) {
	key, err := s.keys.Key(name)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCorrupted
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return nil, ErrCorrupted
	}
	return plain, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
