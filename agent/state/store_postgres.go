package state

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	errx "github.com/tanpawarit/chative-retail-assistant/pkg/errx"
	logx "github.com/tanpawarit/chative-retail-assistant/pkg/logger"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:chatbot_sessions,alias:cs"`

	SessionID string    `bun:"session_id,pk"`
	State     string    `bun:"state,type:text,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// PostgresStore keeps one row per session and upserts on save. Blobs are
// stored as text so they come back byte for byte. Rows never expire;
// deletion is explicit.
type PostgresStore struct {
	db  bun.IDB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore expects the chatbot_sessions table to exist; see the
// migrations in pkg/postgres.
func NewPostgresStore(db bun.IDB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresStore{db: db, now: time.Now}, nil
}

func (s *PostgresStore) Save(ctx context.Context, sessionID string, blob []byte) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	row := &sessionRow{
		SessionID: sessionID,
		State:     string(blob),
		UpdatedAt: s.now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("postgres: failed to save session")
		return errx.WrapDatabase(err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	row := new(sessionRow)
	err := s.db.NewSelect().
		Model(row).
		Column("state").
		Where("session_id = ?", sessionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		logx.Error().Err(err).Str("session_id", sessionID).Msg("postgres: failed to load session")
		return nil, errx.WrapDatabase(err)
	}
	return []byte(row.State), nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	res, err := s.db.NewDelete().
		Model((*sessionRow)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("postgres: failed to delete session")
		return errx.WrapDatabase(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errx.WrapDatabase(err)
	}
	if affected == 0 {
		return ErrStateNotFound
	}
	return nil
}

// ListIDs returns session ids, most recently written first.
func (s *PostgresStore) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*sessionRow)(nil)).
		Column("session_id").
		OrderExpr("updated_at DESC").
		Scan(ctx, &ids)
	if err != nil {
		logx.Error().Err(err).Msg("postgres: failed to list sessions")
		return nil, errx.WrapDatabase(err)
	}
	return ids, nil
}

func (s *PostgresStore) ClearAll(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*sessionRow)(nil)).
		Where("TRUE").
		Exec(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("postgres: failed to clear sessions")
		return errx.WrapDatabase(err)
	}
	return nil
}
