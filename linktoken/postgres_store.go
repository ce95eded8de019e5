package linktoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations; the subject column carries a unique index so a create race
// for the same external identity surfaces as ErrDuplicateSubject.
const uniqueViolation = "23505"

// PostgresStore persists link tokens in PostgreSQL. The schema lives in
// migrations/00002_create_cnoauth_tokens.sql.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL-backed token store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const tokenColumns = `id, subject, user_id, username, scope, auth_code, access_token, refresh_token, expires_at, user_info, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, token *Token) error {
	if token == nil || token.Subject == "" {
		return ErrInvalidToken
	}

	userInfo, err := json.Marshal(token.UserInfo)
	if err != nil {
		return fmt.Errorf("marshal user info: %w", err)
	}

	query := `
		INSERT INTO cnoauth_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.pool.Exec(ctx, query,
		token.ID, token.Subject, token.UserID, token.Username, token.Scope,
		token.AuthCode, token.AccessToken, token.RefreshToken, token.ExpiresAt,
		userInfo, token.CreatedAt, token.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateSubject
		}
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBySubject(ctx context.Context, subject string) (*Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM cnoauth_tokens WHERE subject = $1`
	return s.scanOne(ctx, query, subject)
}

func (s *PostgresStore) FindByUserID(ctx context.Context, userID int64) (*Token, error) {
	if userID == 0 {
		return nil, ErrTokenNotFound
	}
	query := `SELECT ` + tokenColumns + ` FROM cnoauth_tokens WHERE user_id = $1`
	return s.scanOne(ctx, query, userID)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*Token, error) {
	if username == "" {
		return nil, ErrTokenNotFound
	}
	query := `SELECT ` + tokenColumns + ` FROM cnoauth_tokens WHERE username = $1`
	return s.scanOne(ctx, query, username)
}

func (s *PostgresStore) Update(ctx context.Context, token *Token) error {
	if token == nil || token.Subject == "" {
		return ErrInvalidToken
	}

	userInfo, err := json.Marshal(token.UserInfo)
	if err != nil {
		return fmt.Errorf("marshal user info: %w", err)
	}

	query := `
		UPDATE cnoauth_tokens
		SET scope = $2, auth_code = $3, access_token = $4, refresh_token = $5,
		    expires_at = $6, user_info = $7, username = $8, updated_at = $9
		WHERE subject = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		token.Subject, token.Scope, token.AuthCode, token.AccessToken,
		token.RefreshToken, token.ExpiresAt, userInfo, token.Username, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (s *PostgresStore) Bind(ctx context.Context, subject string, userID int64, username string) error {
	query := `
		UPDATE cnoauth_tokens
		SET user_id = $2, username = $3, updated_at = $4
		WHERE subject = $1
	`
	tag, err := s.pool.Exec(ctx, query, subject, userID, username, time.Now())
	if err != nil {
		return fmt.Errorf("bind token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (s *PostgresStore) CountBoundElsewhere(ctx context.Context, subject string, userID int64) (int64, error) {
	query := `
		SELECT count(1) FROM cnoauth_tokens
		WHERE subject = $1 AND user_id != 0 AND user_id != $2
	`
	var count int64
	if err := s.pool.QueryRow(ctx, query, subject, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count bound elsewhere: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cnoauth_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteUnbound(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cnoauth_tokens WHERE user_id = 0`)
	if err != nil {
		return 0, fmt.Errorf("delete unbound tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListUnbound(ctx context.Context) ([]Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM cnoauth_tokens WHERE user_id = 0 ORDER BY created_at`
	return s.scanMany(ctx, query)
}

func (s *PostgresStore) ListBound(ctx context.Context) ([]Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM cnoauth_tokens WHERE user_id != 0 ORDER BY created_at`
	return s.scanMany(ctx, query)
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, args ...any) (*Token, error) {
	token, err := scanToken(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	return token, nil
}

func (s *PostgresStore) scanMany(ctx context.Context, query string, args ...any) ([]Token, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		out = append(out, *token)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*Token, error) {
	var (
		token    Token
		userInfo []byte
	)
	err := row.Scan(
		&token.ID, &token.Subject, &token.UserID, &token.Username, &token.Scope,
		&token.AuthCode, &token.AccessToken, &token.RefreshToken, &token.ExpiresAt,
		&userInfo, &token.CreatedAt, &token.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(userInfo) > 0 {
		if err := json.Unmarshal(userInfo, &token.UserInfo); err != nil {
			return nil, fmt.Errorf("unmarshal user info: %w", err)
		}
	}
	return &token, nil
}
