package repository

import (
	"context"
	"errors"

	"arcade_arena/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

const userColumns = `id, wallet_address, COALESCE(nickname, ''), COALESCE(avatar, ''), xp, tier, created_at`

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.WalletAddress,
		&u.Nickname,
		&u.Avatar,
		&u.XP,
		&u.Tier,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpsertByWallet returns the user for wallet, creating it with the given XP
// when missing. An existing user's XP is left alone.
func (r *UserRepository) UpsertByWallet(ctx context.Context, wallet string, xp int64) (*domain.User, error) {
	if xp < 0 {
		xp = 0
	}
	return scanUser(r.db.QueryRow(ctx,
		`INSERT INTO users (wallet_address, xp, tier)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (wallet_address) DO UPDATE SET wallet_address = EXCLUDED.wallet_address
		 RETURNING `+userColumns,
		domain.NormalizeWallet(wallet),
		xp,
		domain.TierFromXP(xp),
	))
}

func (r *UserRepository) GetByWallet(ctx context.Context, wallet string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE wallet_address = $1`,
		domain.NormalizeWallet(wallet),
	))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
}

// UpdateNickname sets the nickname, creating the user when missing.
func (r *UserRepository) UpdateNickname(ctx context.Context, wallet, nickname string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`INSERT INTO users (wallet_address, nickname)
		 VALUES ($1, $2)
		 ON CONFLICT (wallet_address) DO UPDATE SET nickname = EXCLUDED.nickname
		 RETURNING `+userColumns,
		domain.NormalizeWallet(wallet),
		nickname,
	))
}

// ApplyXP adds delta to the user's XP, clamped at zero, and stores the tier
// the new total falls in. Returns the updated user.
func (r *UserRepository) ApplyXP(ctx context.Context, userID string, delta int64) (*domain.User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	u, err := applyXP(ctx, tx, userID, delta)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return u, nil
}

func applyXP(ctx context.Context, tx pgx.Tx, userID string, delta int64) (*domain.User, error) {
	var xp int64
	if err := tx.QueryRow(ctx, `SELECT xp FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&xp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	xp += delta
	if xp < 0 {
		xp = 0
	}

	return scanUser(tx.QueryRow(ctx,
		`UPDATE users SET xp = $1, tier = $2 WHERE id = $3 RETURNING `+userColumns,
		xp, domain.TierFromXP(xp), userID,
	))
}

// TopByXP returns users ordered by XP desc
func (r *UserRepository) TopByXP(ctx context.Context, limit int) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY xp DESC, created_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
