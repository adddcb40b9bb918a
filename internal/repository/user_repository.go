package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/identity-service/internal/domain"
)

// ErrEmailTaken is returned when creating a user whose email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// UserRepository defines persistence access for accounts. Missing rows yield pgx.ErrNoRows.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// UpdatePassword locks the user row, asks change for the new hash and stores it atomically.
	UpdatePassword(ctx context.Context, id string, change func(current *domain.User) (string, error)) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, email, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, password_hash)
        VALUES ($1, $2)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1 AND deleted_at IS NULL`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email)=lower($1) AND deleted_at IS NULL`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) UpdatePassword(ctx context.Context, id string, change func(current *domain.User) (string, error)) (*domain.User, error) {
	var updated *domain.User
	err := inTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		query := `SELECT ` + userColumns + ` FROM users WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`
		current, err := scanUser(tx.QueryRow(ctx, query, id))
		if err != nil {
			return err
		}

		hash, err := change(current)
		if err != nil {
			return err
		}

		const update = `
            UPDATE users SET password_hash=$1, updated_at=NOW()
            WHERE id=$2
            RETURNING ` + userColumns
		updated, err = scanUser(tx.QueryRow(ctx, update, hash, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
