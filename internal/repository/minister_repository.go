package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/event-admin/internal/domain"
)

// MinisterRepository persists ministers.
type MinisterRepository interface {
	Create(ctx context.Context, minister *domain.Minister) error
	GetByID(ctx context.Context, id string) (*domain.Minister, error)
	GetByEmail(ctx context.Context, email string) (*domain.Minister, error)
	List(ctx context.Context, active *bool, limit, offset int) ([]domain.Minister, error)
	SetActive(ctx context.Context, id string, active bool) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type ministerRepository struct {
	pool *pgxpool.Pool
}

// NewMinisterRepository instantiates the repository.
func NewMinisterRepository(pool *pgxpool.Pool) MinisterRepository {
	return &ministerRepository{pool: pool}
}

const ministerColumns = `id, name, email, password_hash, active_flag, last_login_at, created_at, updated_at`

func scanMinister(row pgx.Row) (*domain.Minister, error) {
	var m domain.Minister
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Email,
		&m.PasswordHash,
		&m.Active,
		&m.LastLoginAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ministerRepository) Create(ctx context.Context, minister *domain.Minister) error {
	const query = `
        INSERT INTO ministers (name, email, password_hash, active_flag)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		minister.Name,
		minister.Email,
		minister.PasswordHash,
		minister.Active,
	).Scan(&minister.ID, &minister.CreatedAt, &minister.UpdatedAt)
	return mapWriteError(err)
}

func (r *ministerRepository) GetByID(ctx context.Context, id string) (*domain.Minister, error) {
	return scanMinister(r.pool.QueryRow(ctx, `SELECT `+ministerColumns+` FROM ministers WHERE id=$1`, id))
}

func (r *ministerRepository) GetByEmail(ctx context.Context, email string) (*domain.Minister, error) {
	return scanMinister(r.pool.QueryRow(ctx, `SELECT `+ministerColumns+` FROM ministers WHERE email=$1`, email))
}

func (r *ministerRepository) List(ctx context.Context, active *bool, limit, offset int) ([]domain.Minister, error) {
	query := `SELECT ` + ministerColumns + ` FROM ministers`
	args := []any{}
	if active != nil {
		args = append(args, *active)
		query += " WHERE active_flag=$1"
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" ORDER BY name ASC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Minister
	for rows.Next() {
		m, err := scanMinister(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

func (r *ministerRepository) SetActive(ctx context.Context, id string, active bool) error {
	return execOne(ctx, r.pool, `UPDATE ministers SET active_flag=$1, updated_at=NOW() WHERE id=$2`, active, id)
}

func (r *ministerRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return execOne(ctx, r.pool, `UPDATE ministers SET password_hash=$1, updated_at=NOW() WHERE id=$2`, passwordHash, id)
}

func (r *ministerRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return execOne(ctx, r.pool, `UPDATE ministers SET last_login_at=$1 WHERE id=$2`, at, id)
}
