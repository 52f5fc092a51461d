package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/socialpost/postctl/internal/apierrors"
	"github.com/socialpost/postctl/internal/config"
	"github.com/socialpost/postctl/internal/models"
)

const anonymousUser string = "anonymous"

// Namespace returns the prefix under which the drafts of a user are stored, user 0 is anonymous.
func Namespace(userID int) string {
	if userID == 0 {
		return "user_" + anonymousUser
	}
	return "user_" + strconv.Itoa(userID)
}

// FullKey is the name a draft value is known by, for example user_7_content.
func FullKey(userID int, key string) string {
	return Namespace(userID) + "_" + key
}

// Entry describes a stored draft value without decoding it.
type Entry struct {
	Key       string    `json:"key" yaml:"key"`
	FullKey   string    `json:"fullKey" yaml:"fullKey"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Store is a per user key value store for drafts. Values are JSON encoded and optionally encrypted.
type Store struct {
	backend   Backend
	encryptor Encryptor
	ids       models.IDGenerator
	now       func() time.Time
}

type StoreOption func(*Store) error

func WithBackend(backend Backend) StoreOption {
	return func(s *Store) error {
		s.backend = backend
		return nil
	}
}

func WithEncryption(secretKey string) StoreOption {
	return func(s *Store) error {
		encryptor, err := NewGCMEncryptor(secretKey)
		if err != nil {
			return err
		}
		s.encryptor = encryptor
		return nil
	}
}

func WithIDGenerator(ids models.IDGenerator) StoreOption {
	return func(s *Store) error {
		s.ids = ids
		return nil
	}
}

// WithConfig opens the backend selected in the configuration.
func WithConfig(ctx context.Context, draftsConfig config.DraftsConfig) StoreOption {
	return func(s *Store) error {
		var err error
		switch draftsConfig.Type {
		case config.DBTypeSQLite:
			s.backend, err = NewSQLiteBackend(ctx, draftsConfig.SQLitePath)
		case config.DBTypeRedis, config.DBTypeRedisMock:
			s.backend, err = NewRedisBackend(WithRedisConfig(draftsConfig))
		default:
			err = fmt.Errorf("unrecognized persistence type %v", draftsConfig.Type)
		}
		if err != nil {
			return err
		}
		if draftsConfig.Encryption.Enabled {
			return WithEncryption(string(draftsConfig.Encryption.SecretKey))(s)
		}
		return nil
	}
}

func NewStore(options ...StoreOption) (*Store, error) {
	s := &Store{
		ids: models.NewULIDGenerator(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range options {
		err := opt(s)
		if err != nil {
			return nil, err
		}
	}
	if s.backend == nil {
		return nil, fmt.Errorf("a backend is required to create a drafts store")
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) encode(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	if s.encryptor == nil {
		return string(raw), nil
	}
	return s.encryptor.Encrypt(string(raw))
}

func (s *Store) decode(record Record) (json.RawMessage, error) {
	value := record.Value
	if s.encryptor != nil {
		var err error
		value, err = s.encryptor.Decrypt(value)
		if err != nil {
			return nil, fmt.Errorf("cannot decrypt %s_%s: %w", record.Namespace, record.Key, err)
		}
	}
	return json.RawMessage(value), nil
}

// Set stores value under key for the user, replacing any previous value.
func (s *Store) Set(ctx context.Context, userID int, key string, value any) error {
	encoded, err := s.encode(value)
	if err != nil {
		return err
	}
	slog.Debug("DRAFTS", "message", "saving draft value", "key", FullKey(userID, key))
	return s.backend.Set(ctx, Record{
		Namespace: Namespace(userID),
		Key:       key,
		Value:     encoded,
		UpdatedAt: s.now(),
	})
}

// Get decodes the value stored under key into out. It returns apierrors.ErrDraftNotFound for unknown keys.
func (s *Store) Get(ctx context.Context, userID int, key string, out any) error {
	raw, err := s.GetRaw(ctx, userID, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *Store) GetRaw(ctx context.Context, userID int, key string) (json.RawMessage, error) {
	record, err := s.backend.Get(ctx, Namespace(userID), key)
	if err != nil {
		return nil, err
	}
	return s.decode(record)
}

func (s *Store) Delete(ctx context.Context, userID int, key string) error {
	return s.backend.Delete(ctx, Namespace(userID), key)
}

// Clear removes every draft value of the user.
func (s *Store) Clear(ctx context.Context, userID int) error {
	slog.Debug("DRAFTS", "message", "clearing drafts", "namespace", Namespace(userID))
	return s.backend.Clear(ctx, Namespace(userID))
}

func (s *Store) List(ctx context.Context, userID int) ([]Entry, error) {
	records, err := s.backend.List(ctx, Namespace(userID))
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, Entry{
			Key:       record.Key,
			FullKey:   FullKey(userID, record.Key),
			UpdatedAt: record.UpdatedAt,
		})
	}
	return entries, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apierrors.ErrDraftNotFound)
}
