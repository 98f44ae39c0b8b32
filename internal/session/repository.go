package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrNoSession is returned when no persisted session exists for an identity
var ErrNoSession = errors.New("no persisted session")

// Repository persists opaque session cookie sets keyed by taxpayer RUC.
// Redis is preferred when available; a per-identity file is the durable
// fallback and is always written on Save. Session files are equivalent to a
// password and are created with owner-only permissions.
type Repository struct {
	client *redis.Client
	ttl    time.Duration
	dir    string
	logger *logrus.Logger
}

// NewRepository creates a session repository. client may be nil, in which
// case only the file store is used.
func NewRepository(client *redis.Client, ttl time.Duration, dir string, logger *logrus.Logger) *Repository {
	return &Repository{
		client: client,
		ttl:    ttl,
		dir:    dir,
		logger: logger,
	}
}

func sessionKey(ruc string) string {
	return "sri:session:" + ruc
}

func (r *Repository) filePath(ruc string) string {
	return filepath.Join(r.dir, "cookies_"+ruc+".json")
}

// Load retrieves the persisted session for a RUC
func (r *Repository) Load(ctx context.Context, ruc string) ([]byte, error) {
	if r.client != nil {
		data, err := r.client.Get(ctx, sessionKey(ruc)).Bytes()
		if err == nil {
			r.logger.WithField("ruc", ruc).Debug("Session loaded (Redis)")
			return data, nil
		}
		if err != redis.Nil {
			r.logger.WithError(err).Warn("Redis session get error, falling back to file store")
		}
	}

	data, err := os.ReadFile(r.filePath(ruc))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	r.logger.WithField("ruc", ruc).Debug("Session loaded (file)")
	return data, nil
}

// Save persists the session for a RUC
func (r *Repository) Save(ctx context.Context, ruc string, data []byte) error {
	if r.client != nil {
		if err := r.client.Set(ctx, sessionKey(ruc), data, r.ttl).Err(); err != nil {
			r.logger.WithError(err).Warn("Redis session set error")
		}
	}

	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	if err := os.WriteFile(r.filePath(ruc), data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	r.logger.WithField("ruc", ruc).Debug("Session saved")
	return nil
}

// Delete invalidates the persisted session for a RUC
func (r *Repository) Delete(ctx context.Context, ruc string) error {
	if r.client != nil {
		if err := r.client.Del(ctx, sessionKey(ruc)).Err(); err != nil {
			r.logger.WithError(err).Warn("Redis session delete error")
		}
	}
	if err := os.Remove(r.filePath(ruc)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
