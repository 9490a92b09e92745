package repository

import (
	"context"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
)

// IdentityRepository defines the persistence operations for identities.
// Passwords cross this boundary only as bcrypt hashes.
type IdentityRepository interface {
	Create(ctx context.Context, u *entity.Identity, passwordHash string) error
	GetByID(ctx context.Context, id string) (*entity.Identity, error)
	GetByEmail(ctx context.Context, email string) (*entity.Identity, string, error)
	Update(ctx context.Context, u *entity.Identity) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}
