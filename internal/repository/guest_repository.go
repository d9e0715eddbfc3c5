package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/event-admin/internal/domain"
)

// GuestRepository persists self-registered guests.
type GuestRepository interface {
	Create(ctx context.Context, guest *domain.Guest) error
	GetByID(ctx context.Context, id string) (*domain.Guest, error)
	GetByEmail(ctx context.Context, email string) (*domain.Guest, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type guestRepository struct {
	pool *pgxpool.Pool
}

// NewGuestRepository returns a Postgres-backed implementation.
func NewGuestRepository(pool *pgxpool.Pool) GuestRepository {
	return &guestRepository{pool: pool}
}

const guestColumns = `id, name, email, password_hash, last_login_at, created_at, updated_at`

func scanGuest(row pgx.Row) (*domain.Guest, error) {
	var g domain.Guest
	if err := row.Scan(
		&g.ID,
		&g.Name,
		&g.Email,
		&g.PasswordHash,
		&g.LastLoginAt,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *guestRepository) Create(ctx context.Context, guest *domain.Guest) error {
	const query = `
        INSERT INTO guests (name, email, password_hash)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		guest.Name,
		guest.Email,
		guest.PasswordHash,
	).Scan(&guest.ID, &guest.CreatedAt, &guest.UpdatedAt)
	return mapWriteError(err)
}

func (r *guestRepository) GetByID(ctx context.Context, id string) (*domain.Guest, error) {
	return scanGuest(r.pool.QueryRow(ctx, `SELECT `+guestColumns+` FROM guests WHERE id=$1`, id))
}

func (r *guestRepository) GetByEmail(ctx context.Context, email string) (*domain.Guest, error) {
	return scanGuest(r.pool.QueryRow(ctx, `SELECT `+guestColumns+` FROM guests WHERE email=$1`, email))
}

func (r *guestRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return execOne(ctx, r.pool, `UPDATE guests SET password_hash=$1, updated_at=NOW() WHERE id=$2`, passwordHash, id)
}

func (r *guestRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return execOne(ctx, r.pool, `UPDATE guests SET last_login_at=$1 WHERE id=$2`, at, id)
}
