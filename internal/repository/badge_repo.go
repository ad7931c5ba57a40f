package repository

import (
	"context"

	"arcade_arena/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type BadgeRepository struct {
	db *pgxpool.Pool
}

func NewBadgeRepository(db *pgxpool.Pool) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// FindByUser returns the badges the user has unlocked.
func (r *BadgeRepository) FindByUser(ctx context.Context, userID string) ([]*domain.Badge, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, tier, unlocked_at
		 FROM badges
		 WHERE user_id = $1
		 ORDER BY unlocked_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Badge
	for rows.Next() {
		var b domain.Badge
		if err := rows.Scan(&b.ID, &b.UserID, &b.Tier, &b.UnlockedAt); err != nil {
			return nil, err
		}
		res = append(res, &b)
	}
	return res, rows.Err()
}

// Create records an unlocked tier. Recording the same tier twice is a no-op.
func (r *BadgeRepository) Create(ctx context.Context, userID string, tier domain.Tier) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO badges (user_id, tier)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, tier) DO NOTHING`,
		userID, tier,
	)
	return err
}
