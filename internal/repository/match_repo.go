package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"arcade_arena/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const matchColumns = `m.id, m.game, m.p1_id, m.p2_id, m.winner_id, m.result, m.ark_staked,
	m.escrow_id::text, m.xp_winner, m.xp_loser, m.duration_sec, m.created_at, m.settled_at`

// ErrAlreadySettled is returned by Settle for a match that was settled before.
var ErrAlreadySettled = errors.New("match already settled")

type MatchRepository struct {
	db *pgxpool.Pool
}

func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

func scanMatch(row pgx.Row, extra ...any) (*domain.Match, error) {
	var m domain.Match
	dest := []any{
		&m.ID,
		&m.Game,
		&m.P1ID,
		&m.P2ID,
		&m.WinnerID,
		&m.Result,
		&m.ArkStaked,
		&m.EscrowID,
		&m.XPWinner,
		&m.XPLoser,
		&m.DurationSec,
		&m.CreatedAt,
		&m.SettledAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Create inserts m and fills in its ID and CreatedAt. A preset m.ID is kept.
func (r *MatchRepository) Create(ctx context.Context, m *domain.Match) error {
	if m.Result == "" {
		m.Result = domain.MatchResultDraw
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO matches (id, game, p1_id, p2_id, result, ark_staked, escrow_id)
		 VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, $7::text::numeric)
		 RETURNING id, created_at`,
		m.ID,
		m.Game,
		m.P1ID,
		m.P2ID,
		m.Result,
		m.ArkStaked,
		m.EscrowID,
	).Scan(&m.ID, &m.CreatedAt)
}

// Update overwrites every mutable column of an existing match.
func (r *MatchRepository) Update(ctx context.Context, m *domain.Match) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE matches
		 SET game = $2, p1_id = $3, p2_id = $4, winner_id = $5, result = $6,
		     ark_staked = $7, escrow_id = $8::text::numeric,
		     xp_winner = $9, xp_loser = $10, duration_sec = $11
		 WHERE id = $1`,
		m.ID,
		m.Game,
		m.P1ID,
		m.P2ID,
		m.WinnerID,
		m.Result,
		m.ArkStaked,
		m.EscrowID,
		m.XPWinner,
		m.XPLoser,
		m.DurationSec,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MatchRepository) FindByID(ctx context.Context, id string) (*domain.Match, error) {
	return scanMatch(r.db.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches m WHERE m.id = $1`,
		id,
	))
}

// HistoryEntry is a match seen from one participant, with the other
// participant's display name.
type HistoryEntry struct {
	Match        domain.Match
	OpponentName string
}

// ListByUser returns the user's most recent matches, newest first.
func (r *MatchRepository) ListByUser(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+matchColumns+`,
		       COALESCE(NULLIF(o.nickname, ''), LEFT(o.wallet_address, 6), '')
		FROM matches m
		LEFT JOIN users o ON o.id = CASE WHEN m.p1_id = $1 THEN m.p2_id ELSE m.p1_id END
		WHERE m.p1_id = $1 OR m.p2_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []HistoryEntry
	for rows.Next() {
		var opponent string
		m, err := scanMatch(rows, &opponent)
		if err != nil {
			return nil, err
		}
		res = append(res, HistoryEntry{Match: *m, OpponentName: opponent})
	}
	return res, rows.Err()
}

// UserStats aggregates a user's record across all stored matches.
type UserStats struct {
	GamesPlayed    int64
	GamesWon       int64
	TotalArkEarned int64
}

// WinRate is the rounded percentage of games won.
func (s UserStats) WinRate() int64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return (s.GamesWon*100 + s.GamesPlayed/2) / s.GamesPlayed
}

func (r *MatchRepository) StatsForUser(ctx context.Context, userID string) (UserStats, error) {
	var s UserStats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE winner_id = $1),
		       COALESCE(SUM(CASE
		           WHEN result = 'DRAW' THEN 0
		           WHEN winner_id = $1 THEN ark_staked
		           ELSE -ark_staked
		       END), 0)
		FROM matches
		WHERE p1_id = $1 OR p2_id = $1`, userID,
	).Scan(&s.GamesPlayed, &s.GamesWon, &s.TotalArkEarned)
	return s, err
}

// XPDelta is an XP change applied together with a settlement.
type XPDelta struct {
	UserID string
	Delta  int64
}

// Settle stores m's outcome, stamps settled_at and applies the XP deltas in
// one transaction. Users are returned in the order of deltas.
func (r *MatchRepository) Settle(ctx context.Context, m *domain.Match, deltas ...XPDelta) ([]*domain.User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var settledAt time.Time
	err = tx.QueryRow(ctx,
		`UPDATE matches
		 SET winner_id = $2, result = $3, xp_winner = $4, xp_loser = $5,
		     duration_sec = $6, settled_at = now()
		 WHERE id = $1 AND settled_at IS NULL
		 RETURNING settled_at`,
		m.ID,
		m.WinnerID,
		m.Result,
		m.XPWinner,
		m.XPLoser,
		m.DurationSec,
	).Scan(&settledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM matches WHERE id = $1)`, m.ID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadySettled
	}
	if err != nil {
		return nil, err
	}

	// user rows are locked in id order so two settlements sharing a player
	// cannot deadlock
	order := make([]int, len(deltas))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return deltas[order[i]].UserID < deltas[order[j]].UserID })

	users := make([]*domain.User, len(deltas))
	for _, i := range order {
		u, err := applyXP(ctx, tx, deltas[i].UserID, deltas[i].Delta)
		if err != nil {
			return nil, fmt.Errorf("apply xp %s: %w", deltas[i].UserID, err)
		}
		users[i] = u
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	m.SettledAt = &settledAt
	return users, nil
}
