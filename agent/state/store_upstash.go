package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseSizeBytes = 2 << 20

// UpstashRedisStore persists sessions in Upstash Redis through its REST API.
// It has the same expiry semantics as RedisStore.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	opts       kvOptions
}

var _ Store = (*UpstashRedisStore)(nil)

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" required:"true"`
	Token   string        `envconfig:"TOKEN" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, httpClient *http.Client, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	o := applyKVOptions(opts)
	if o.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return &UpstashRedisStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		opts:       o,
	}, nil
}

func (s *UpstashRedisStore) Save(ctx context.Context, sessionID string, blob []byte) error {
	key, err := s.opts.key(sessionID)
	if err != nil {
		return err
	}

	cmd := []any{"SET", key, string(blob)}
	if s.opts.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.opts.ttl))
	}
	_, err = s.exec(ctx, cmd)
	return err
}

func (s *UpstashRedisStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	key, err := s.opts.key(sessionID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrStateNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}
	return []byte(encoded), nil
}

func (s *UpstashRedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := s.opts.key(sessionID)
	if err != nil {
		return err
	}

	resp, err := s.exec(ctx, []any{"DEL", key})
	if err != nil {
		return err
	}
	n, err := decodeInt(resp.Result)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStateNotFound
	}
	return nil
}

func (s *UpstashRedisStore) ListIDs(ctx context.Context) ([]string, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id, ok := s.opts.sessionIDFromKey(key); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *UpstashRedisStore) ClearAll(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	cmd := make([]any, 0, len(keys)+1)
	cmd = append(cmd, "DEL")
	for _, k := range keys {
		cmd = append(cmd, k)
	}
	_, err = s.exec(ctx, cmd)
	return err
}

func (s *UpstashRedisStore) keys(ctx context.Context) ([]string, error) {
	resp, err := s.exec(ctx, []any{"KEYS", s.opts.keyPrefix + "*"})
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(resp.Result, &keys); err != nil {
		return nil, fmt.Errorf("decode redis keys: %w", err)
	}
	return keys, nil
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func decodeInt(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("decode redis integer: %w", err)
	}
	return n, nil
}
