package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/domain"
)

// TokenTx is the view of the token store inside a transaction.
type TokenTx interface {
	// GetByID returns nil without error when the row does not exist.
	GetByID(ctx context.Context, id string) (*domain.Token, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
}

// TokenRepository is the durable record of outstanding tokens. Only the token service uses it.
type TokenRepository interface {
	TokenTx
	// Create assigns a fresh opaque id and inserts the row.
	Create(ctx context.Context, token *domain.Token) error
	DeleteByTypeAndUser(ctx context.Context, tokenType, userID string) (int64, error)
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)
	// WithinTransaction runs fn in a serializable transaction. A lost race surfaces as ErrTxConflict.
	WithinTransaction(ctx context.Context, fn func(tx TokenTx) error) error
}

type tokenRepository struct {
	pool *pgxpool.Pool
	tokenQueries
}

// NewTokenRepository returns a Postgres-backed implementation.
func NewTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepository{pool: pool, tokenQueries: tokenQueries{q: pool}}
}

func (r *tokenRepository) Create(ctx context.Context, token *domain.Token) error {
	id, err := auth.RandomID(domain.TokenIDLength)
	if err != nil {
		return err
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	const query = `
        INSERT INTO tokens (id, type, user_id, created_at, expired_at)
        VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.pool.Exec(ctx, query, id, token.Type, token.UserID, token.CreatedAt, token.ExpiredAt); err != nil {
		return err
	}
	token.ID = id
	return nil
}

func (r *tokenRepository) DeleteByTypeAndUser(ctx context.Context, tokenType, userID string) (int64, error) {
	const query = `DELETE FROM tokens WHERE type=$1 AND user_id=$2`
	cmd, err := r.pool.Exec(ctx, query, tokenType, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *tokenRepository) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM tokens WHERE expired_at < $1`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *tokenRepository) WithinTransaction(ctx context.Context, fn func(tx TokenTx) error) error {
	return inTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(tokenQueries{q: tx})
	})
}

type tokenQueries struct {
	q querier
}

func (t tokenQueries) GetByID(ctx context.Context, id string) (*domain.Token, error) {
	const query = `
        SELECT id, type, user_id, created_at, expired_at
        FROM tokens WHERE id=$1 FOR UPDATE`

	var token domain.Token
	if err := t.q.QueryRow(ctx, query, id).Scan(
		&token.ID,
		&token.Type,
		&token.UserID,
		&token.CreatedAt,
		&token.ExpiredAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (t tokenQueries) DeleteByID(ctx context.Context, id string) (int64, error) {
	const query = `DELETE FROM tokens WHERE id=$1`
	cmd, err := t.q.Exec(ctx, query, id)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
