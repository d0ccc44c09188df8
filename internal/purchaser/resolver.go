package purchaser

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// Resolver maps purchaser emails to identities, creating a guest identity on
// first contact. Emails are unique; callers pass them already normalized.
type Resolver struct {
	Bun *bun.DB
}

func NewResolver(bunDB *bun.DB) *Resolver {
	return &Resolver{Bun: bunDB}
}

// FindByEmail returns nil without error when the email is unknown.
func (r *Resolver) FindByEmail(ctx context.Context, email string) (*models.Purchaser, error) {
	var p models.Purchaser
	err := r.Bun.NewSelect().
		Model(&p).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateGuest inserts a guest identity for the email.
func (r *Resolver) CreateGuest(ctx context.Context, email string) (*models.Purchaser, error) {
	p := &models.Purchaser{
		ID:        uuid.NewString(),
		Email:     email,
		Guest:     true,
		CreatedAt: time.Now(),
	}
	if _, err := r.Bun.NewInsert().Model(p).Exec(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Resolve returns the identity for an email, creating a guest when none
// exists. A concurrent first contact can lose the insert race on the unique
// email; the loser re-reads the winner's row.
func (r *Resolver) Resolve(ctx context.Context, email string) (*models.Purchaser, error) {
	existing, err := r.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	created, err := r.CreateGuest(ctx, email)
	if err == nil {
		return created, nil
	}

	existing, findErr := r.FindByEmail(ctx, email)
	if findErr == nil && existing != nil {
		return existing, nil
	}
	return nil, err
}
