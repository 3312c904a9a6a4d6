package state

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrStateNotFound  = errors.New("session state not found")
	ErrInvalidSession = errors.New("session id is empty")
	ErrNilStore       = errors.New("session store is nil")
)

const (
	DefaultKeyPrefix = "chatbot:session:"
	DefaultTTL       = time.Hour
)

// Store persists serialized conversation state keyed by session id. All
// implementations are safe for concurrent use across distinct keys.
//
// Load and Delete report a missing (or expired) session with
// ErrStateNotFound; any other error is a backend failure.
type Store interface {
	Save(ctx context.Context, sessionID string, blob []byte) error
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Delete(ctx context.Context, sessionID string) error
	ListIDs(ctx context.Context) ([]string, error)
	ClearAll(ctx context.Context) error
}

// StoreOption customizes the key-value backed stores.
type StoreOption func(*kvOptions)

type kvOptions struct {
	keyPrefix string
	ttl       time.Duration
}

func defaultKVOptions() kvOptions {
	return kvOptions{
		keyPrefix: DefaultKeyPrefix,
		ttl:       DefaultTTL,
	}
}

func applyKVOptions(opts []StoreOption) kvOptions {
	o := defaultKVOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func WithKeyPrefix(prefix string) StoreOption {
	return func(o *kvOptions) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			o.keyPrefix = trimmed
		}
	}
}

// WithTTL sets the retention window refreshed by every Save. Zero disables
// expiry.
func WithTTL(ttl time.Duration) StoreOption {
	return func(o *kvOptions) {
		o.ttl = ttl
	}
}

func (o kvOptions) key(sessionID string) (string, error) {
	if err := validateSessionID(sessionID); err != nil {
		return "", err
	}
	return o.keyPrefix + sessionID, nil
}

func (o kvOptions) sessionIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, o.keyPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(key, o.keyPrefix)
	return id, id != ""
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	return nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
