package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/redis/go-redis/v9"

	"greybackend/config"
)

// ErrNotFound is returned by a Store when no credential has been written.
var ErrNotFound = errors.New("credential not found")

// Store persists the credential record. Load must return ErrNotFound, not a
// zero Credential, when nothing is stored.
type Store interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, c *Credential) error
	// Describe names the backing location for operator-facing messages.
	Describe() string
}

// FileStore keeps the credential as indented JSON on local disk. Writers
// serialize on an advisory lock next to the file and replace it atomically,
// so readers never see a torn write and take no lock.
type FileStore struct {
	path         string
	lockInterval time.Duration
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, lockInterval: 25 * time.Millisecond}
}

func (s *FileStore) Describe() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &decodeError{err: err}
	}
	return &c, nil
}

func (s *FileStore) Save(ctx context.Context, c *Credential) error {
	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLockContext(ctx, s.lockInterval)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", s.path)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// RedisStore keeps the credential under a single key, for deployments where
// several API replicas share one Gmail account.
type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Describe() string { return "redis key " + s.key }

func (s *RedisStore) Load(ctx context.Context) (*Credential, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &decodeError{err: err}
	}
	return &c, nil
}

func (s *RedisStore) Save(ctx context.Context, c *Credential) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// decodeError marks a stored record that exists but is not valid JSON.
type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode credential: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// OpenStore selects the store named by cfg.CredentialStore. rdb is only
// used for the redis store and may be nil otherwise.
func OpenStore(cfg config.MailConfig, rdb *redis.Client) (Store, error) {
	switch cfg.CredentialStore {
	case "", "file":
		return NewFileStore(cfg.TokenPath), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis credential store requires a redis client")
		}
		return NewRedisStore(rdb, cfg.RedisKey), nil
	default:
		return nil, fmt.Errorf("unknown credential store %q", cfg.CredentialStore)
	}
}
