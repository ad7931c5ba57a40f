package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arcade_arena/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err, "connect db")
	t.Cleanup(db.Close)

	migDir := filepath.Join("..", "migrations")
	files, err := os.ReadDir(migDir)
	require.NoError(t, err, "read migrations")
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		require.NoError(t, err)
		_, err = db.Exec(context.Background(), string(b))
		require.NoError(t, err, "apply migration %s", f.Name())
	}
	return db
}

// uniqueWallet keeps reruns against the same database independent.
func uniqueWallet(n int) string {
	return fmt.Sprintf("0x%032x%08x", time.Now().UnixNano(), n)
}

func TestUserRepository_UpsertAndXP(t *testing.T) {
	db := testPool(t)
	ctx := context.Background()
	users := NewUserRepository(db)

	wallet := uniqueWallet(1)
	u, err := users.UpsertByWallet(ctx, wallet, 600)
	require.NoError(t, err)
	assert.Equal(t, int64(600), u.XP)
	assert.Equal(t, domain.TierSilver, u.Tier)

	again, err := users.UpsertByWallet(ctx, wallet, 0)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, int64(600), again.XP, "existing XP is kept")

	up, err := users.ApplyXP(ctx, u.ID, 450)
	require.NoError(t, err)
	assert.Equal(t, int64(1050), up.XP)
	assert.Equal(t, domain.TierGold, up.Tier)

	down, err := users.ApplyXP(ctx, u.ID, -5000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), down.XP)
	assert.Equal(t, domain.TierBronze, down.Tier)

	named, err := users.UpdateNickname(ctx, wallet, "player one")
	require.NoError(t, err)
	assert.Equal(t, u.ID, named.ID)
	assert.Equal(t, "player one", named.Nickname)

	_, err = users.GetByWallet(ctx, uniqueWallet(99))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMatchRepository_Lifecycle(t *testing.T) {
	db := testPool(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	matches := NewMatchRepository(db)
	badges := NewBadgeRepository(db)

	a, err := users.UpsertByWallet(ctx, uniqueWallet(2), 0)
	require.NoError(t, err)
	b, err := users.UpsertByWallet(ctx, uniqueWallet(3), 0)
	require.NoError(t, err)
	_, err = users.UpdateNickname(ctx, b.WalletAddress, "bobby")
	require.NoError(t, err)

	escrow := "123456789012345678901234567890"
	m := &domain.Match{Game: domain.GameCodeC4, P1ID: a.ID, P2ID: b.ID, ArkStaked: 10, EscrowID: &escrow}
	require.NoError(t, matches.Create(ctx, m))
	require.NotEmpty(t, m.ID)

	got, err := matches.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GameCodeC4, got.Game)
	require.NotNil(t, got.EscrowID)
	assert.Equal(t, escrow, *got.EscrowID)

	got.WinnerID = &a.ID
	got.Result = domain.MatchResultWin
	got.XPWinner = 25
	got.XPLoser = 20
	require.NoError(t, matches.Update(ctx, got))

	hist, err := matches.ListByUser(ctx, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "bobby", hist[0].OpponentName)
	assert.Equal(t, int64(-20), hist[0].Match.XPDeltaFor(b.ID))

	stats, err := matches.StatsForUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, UserStats{GamesPlayed: 1, GamesWon: 1, TotalArkEarned: 10}, stats)
	assert.Equal(t, int64(100), stats.WinRate())

	_, err = matches.FindByID(ctx, "missing-"+m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, matches.Update(ctx, &domain.Match{ID: "missing-" + m.ID, Game: domain.GameCodeTTT, P1ID: a.ID, P2ID: b.ID}), ErrNotFound)

	require.NoError(t, badges.Create(ctx, a.ID, domain.TierSilver))
	require.NoError(t, badges.Create(ctx, a.ID, domain.TierSilver))
	list, err := badges.FindByUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.TierSilver, list[0].Tier)
}

func TestMatchRepository_SettleIsAtomic(t *testing.T) {
	db := testPool(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	matches := NewMatchRepository(db)

	a, err := users.UpsertByWallet(ctx, uniqueWallet(4), 100)
	require.NoError(t, err)
	b, err := users.UpsertByWallet(ctx, uniqueWallet(5), 100)
	require.NoError(t, err)

	m := &domain.Match{Game: domain.GameCodeTTT, P1ID: a.ID, P2ID: b.ID}
	require.NoError(t, matches.Create(ctx, m))

	m.WinnerID = &a.ID
	m.Result = domain.MatchResultWin
	m.XPWinner, m.XPLoser = 25, 20

	// the second delta fails, so neither the match nor the winner changes
	_, err = matches.Settle(ctx, m, XPDelta{UserID: a.ID, Delta: 25}, XPDelta{UserID: "missing-" + b.ID, Delta: -20})
	require.ErrorIs(t, err, ErrNotFound)

	got, err := matches.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SettledAt)
	assert.Nil(t, got.WinnerID)
	ua, err := users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), ua.XP)

	updated, err := matches.Settle(ctx, m, XPDelta{UserID: b.ID, Delta: -20}, XPDelta{UserID: a.ID, Delta: 25})
	require.NoError(t, err)
	require.Len(t, updated, 2)
	assert.Equal(t, b.ID, updated[0].ID)
	assert.Equal(t, int64(80), updated[0].XP)
	assert.Equal(t, int64(125), updated[1].XP)
	require.NotNil(t, m.SettledAt)

	_, err = matches.Settle(ctx, m)
	assert.ErrorIs(t, err, ErrAlreadySettled)
	_, err = matches.Settle(ctx, &domain.Match{ID: "missing-" + m.ID, Result: domain.MatchResultDraw})
	assert.ErrorIs(t, err, ErrNotFound)
}
