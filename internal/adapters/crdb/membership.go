package crdb

import (
	"context"

	"github.com/google/uuid"
)

func (r *Repository) HasActiveMembership(ctx context.Context, userID uuid.UUID) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_memberships WHERE user_id = $1 AND is_active)
	`, userID).Scan(&active)
	return active, err
}
