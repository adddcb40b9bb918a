package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/identity-service/internal/domain"
)

// ErrFileExists is returned when a file id is already recorded.
var ErrFileExists = errors.New("file already exists")

// FileRepository manages file metadata records. Deletion is soft.
type FileRepository interface {
	CreateFiles(ctx context.Context, files []*domain.File) error
	GetFiles(ctx context.Context, ids []string) ([]*domain.File, error)
	UpdateDomainType(ctx context.Context, ids []string, domainType string, now time.Time) ([]*domain.File, error)
	DeleteFiles(ctx context.Context, ids []string, now time.Time) (int64, error)
}

type fileRepository struct {
	pool *pgxpool.Pool
}

// NewFileRepository constructs repository.
func NewFileRepository(pool *pgxpool.Pool) FileRepository {
	return &fileRepository{pool: pool}
}

const fileColumns = `id, filename, mime_type, size, domain_type, uploader_id, created_at, updated_at`

func scanFiles(rows pgx.Rows) ([]*domain.File, error) {
	defer rows.Close()
	var files []*domain.File
	for rows.Next() {
		var f domain.File
		if err := rows.Scan(
			&f.ID,
			&f.Filename,
			&f.MimeType,
			&f.Size,
			&f.DomainType,
			&f.UploaderID,
			&f.CreatedAt,
			&f.UpdatedAt,
		); err != nil {
			return nil, err
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

func (r *fileRepository) CreateFiles(ctx context.Context, files []*domain.File) error {
	const query = `
        INSERT INTO files (id, filename, mime_type, size, domain_type, uploader_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	err := inTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, f := range files {
			batch.Queue(query, f.ID, f.Filename, f.MimeType, f.Size, f.DomainType, f.UploaderID, f.CreatedAt, f.UpdatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if isUniqueViolation(err) {
		return ErrFileExists
	}
	return err
}

func (r *fileRepository) GetFiles(ctx context.Context, ids []string) ([]*domain.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ANY($1) AND deleted_at IS NULL ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	return scanFiles(rows)
}

func (r *fileRepository) UpdateDomainType(ctx context.Context, ids []string, domainType string, now time.Time) ([]*domain.File, error) {
	query := `
        UPDATE files SET domain_type=$1, updated_at=$2
        WHERE id = ANY($3) AND deleted_at IS NULL
        RETURNING ` + fileColumns
	rows, err := r.pool.Query(ctx, query, domainType, now, ids)
	if err != nil {
		return nil, err
	}
	return scanFiles(rows)
}

func (r *fileRepository) DeleteFiles(ctx context.Context, ids []string, now time.Time) (int64, error) {
	const query = `UPDATE files SET deleted_at=$1 WHERE id = ANY($2) AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, now, ids)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
