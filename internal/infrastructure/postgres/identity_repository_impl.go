package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
	"github.com/oksasatya/campus-identity/internal/domain/repository"
)

const uniqueViolation = "23505"

const identityColumns = `id, email, name, institution, field_of_study, year, bio, verified, anonymous, created_at`

type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func (r *IdentityRepository) Create(ctx context.Context, u *entity.Identity, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO identities (id, email, password_hash, name, institution, field_of_study, year, bio, verified, anonymous, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, u.ID, u.Email, passwordHash, u.Name, u.Institution, u.FieldOfStudy, u.Year, u.Bio, u.Verified, u.Anonymous, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return entity.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*entity.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	u, err := scanIdentity(row)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByEmail returns the identity and its password hash. Email matching is case-insensitive.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*entity.Identity, string, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+`, password_hash FROM identities WHERE lower(email) = lower($1)`, email)
	u := &entity.Identity{}
	var hash string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Institution, &u.FieldOfStudy, &u.Year,
		&u.Bio, &u.Verified, &u.Anonymous, &u.CreatedAt, &hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", entity.ErrIdentityNotFound
		}
		return nil, "", err
	}
	return u, hash, nil
}

// Update writes profile fields. The verified flag is fixed at signup and is never written here.
func (r *IdentityRepository) Update(ctx context.Context, u *entity.Identity) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE identities
		SET name = $1, institution = $2, field_of_study = $3, year = $4, bio = $5, anonymous = $6, updated_at = $7
		WHERE id = $8
	`, u.Name, u.Institution, u.FieldOfStudy, u.Year, u.Bio, u.Anonymous, time.Now().UTC(), u.ID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return entity.ErrIdentityNotFound
	}
	return nil
}

func (r *IdentityRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE identities SET password_hash = $1, updated_at = $2 WHERE id = $3
	`, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return entity.ErrIdentityNotFound
	}
	return nil
}

func scanIdentity(row pgx.Row) (*entity.Identity, error) {
	u := &entity.Identity{}
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Institution, &u.FieldOfStudy, &u.Year,
		&u.Bio, &u.Verified, &u.Anonymous, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrIdentityNotFound
		}
		return nil, err
	}
	return u, nil
}

var _ repository.IdentityRepository = (*IdentityRepository)(nil)
