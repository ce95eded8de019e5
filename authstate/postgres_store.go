package authstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists authorization state in PostgreSQL. The schema lives
// in migrations/00001_create_cnoauth_states.sql.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL-backed state store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, state *State) error {
	if state == nil || state.State == "" {
		return ErrInvalidState
	}

	data, err := json.Marshal(state.Data)
	if err != nil {
		return fmt.Errorf("marshal state data: %w", err)
	}

	query := `
		INSERT INTO cnoauth_states (state, nonce, session_key, created_at, data)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, state.State, state.Nonce, state.SessionKey, state.CreatedAt, data); err != nil {
		return fmt.Errorf("create state: %w", err)
	}
	return nil
}

// Consume uses DELETE ... RETURNING so lookup and removal are one atomic
// statement; of two racing responses only one gets the row back.
func (s *PostgresStore) Consume(ctx context.Context, token string) (*State, error) {
	query := `
		DELETE FROM cnoauth_states
		WHERE state = $1
		RETURNING state, nonce, session_key, created_at, data
	`

	var (
		state State
		data  []byte
	)
	err := s.pool.QueryRow(ctx, query, token).Scan(&state.State, &state.Nonce, &state.SessionKey, &state.CreatedAt, &data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("consume state: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &state.Data); err != nil {
			return nil, fmt.Errorf("unmarshal state data: %w", err)
		}
	}
	return &state, nil
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cnoauth_states WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete aged states: %w", err)
	}
	return tag.RowsAffected(), nil
}
