package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// InterestRepository reads declared interests; the chat gate never mutates
// them.
type InterestRepository interface {
	GetUserInterests(ctx context.Context, userID int) ([]string, error)
}

// InterestRepo is a sqlx implementation of InterestRepository.
type InterestRepo struct {
	db *sqlx.DB
}

// NewInterestRepo constructs an InterestRepo.
func NewInterestRepo(db *sqlx.DB) *InterestRepo {
	return &InterestRepo{db: db}
}

// GetUserInterests returns the user's interest slugs.
func (r *InterestRepo) GetUserInterests(ctx context.Context, userID int) ([]string, error) {
	var slugs []string
	err := r.db.SelectContext(ctx, &slugs,
		`SELECT interest_slug FROM user_interests WHERE user_id=$1`, userID)
	return slugs, err
}
