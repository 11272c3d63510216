package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
)

// Credentials is the opaque secret mapping for one platform (tokens, keys,
// shop identifiers). Clients receive a copy at construction and never
// mutate or persist it.
type Credentials map[string]string

// ErrNotFound is returned when no credentials are stored for a platform.
var ErrNotFound = errors.New("credentials not found")

// Store is the credential service the ETL core depends on.
type Store interface {
	Load(platform string) (Credentials, error)
	Save(platform string, creds Credentials) error
	Delete(platform string) error
	Platforms() ([]string, error)
}

const (
	kdfIterations = 100000
	kdfKeyLen     = 32
)

// The salt is fixed so the same secret always derives the same key across
// restarts.
var kdfSalt = []byte("pulseboard_credentials_salt")

// FileStore keeps all platform credentials in a single AES-GCM encrypted
// JSON document on disk.
type FileStore struct {
	mu     sync.Mutex
	path   string
	key    []byte
	logger *logrus.Entry
}

// NewFileStore derives the encryption key from secret via PBKDF2-SHA256 and
// creates the parent directory of path if needed.
func NewFileStore(path, secret string, logger *logrus.Logger) (*FileStore, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create credentials dir: %w", err)
		}
	}
	key := pbkdf2.Key([]byte(secret), kdfSalt, kdfIterations, kdfKeyLen, sha256.New)
	return &FileStore{
		path:   path,
		key:    key,
		logger: logger.WithField("component", "credentials"),
	}, nil
}

func (s *FileStore) Load(platform string) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	creds, ok := all[platform]
	if !ok {
		return nil, ErrNotFound
	}
	// Hand out a copy so callers cannot mutate the stored mapping.
	out := make(Credentials, len(creds))
	for k, v := range creds {
		out[k] = v
	}
	return out, nil
}

func (s *FileStore) Save(platform string, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	all[platform] = creds
	if err := s.writeAll(all); err != nil {
		return err
	}
	s.logger.WithField("platform", platform).Info("Credentials saved")
	return nil
}

func (s *FileStore) Delete(platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	if _, ok := all[platform]; !ok {
		return ErrNotFound
	}
	delete(all, platform)
	if err := s.writeAll(all); err != nil {
		return err
	}
	s.logger.WithField("platform", platform).Info("Credentials deleted")
	return nil
}

func (s *FileStore) Platforms() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) readAll() (map[string]Credentials, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Credentials{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	if len(data) == 0 {
		return map[string]Credentials{}, nil
	}

	plaintext, err := s.decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials: %w", err)
	}
	var all map[string]Credentials
	if err := json.Unmarshal(plaintext, &all); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return all, nil
}

func (s *FileStore) writeAll(all map[string]Credentials) error {
	plaintext, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	ciphertext, err := s.encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}
	if err := os.WriteFile(s.path, ciphertext, 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	return nil
}

func (s *FileStore) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *FileStore) decrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
