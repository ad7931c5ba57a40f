package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"arcade_arena/internal/domain"
	"arcade_arena/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	matches map[string]*domain.Match
	badges  map[string][]domain.Tier
	failXP  map[string]error
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[string]*domain.User),
		matches: make(map[string]*domain.Match),
		badges:  make(map[string][]domain.Tier),
		failXP:  make(map[string]error),
	}
}

func (s *memStore) addUser(id, wallet string, xp int64) *domain.User {
	u := &domain.User{ID: id, WalletAddress: wallet, XP: xp, Tier: domain.TierFromXP(xp)}
	s.users[id] = u
	return u
}

func (s *memStore) FindByID(_ context.Context, id string) (*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) Update(_ context.Context, m *domain.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *m
	s.matches[m.ID] = &cp
	return nil
}

func (s *memStore) Create(_ context.Context, m *domain.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		s.nextID++
		m.ID = "gen-" + string(rune('0'+s.nextID))
	}
	if _, dup := s.matches[m.ID]; dup {
		return errors.New("duplicate key")
	}
	cp := *m
	s.matches[m.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) UpsertByWallet(_ context.Context, wallet string, xp int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet = domain.NormalizeWallet(wallet)
	for _, u := range s.users {
		if u.WalletAddress == wallet {
			cp := *u
			return &cp, nil
		}
	}
	id := "u-" + wallet[len(wallet)-4:]
	u := &domain.User{ID: id, WalletAddress: wallet, XP: xp, Tier: domain.TierFromXP(xp)}
	s.users[id] = u
	cp := *u
	return &cp, nil
}

// Settle mirrors the repository transaction: nothing changes unless every
// XP update succeeds.
func (s *memStore) Settle(_ context.Context, m *domain.Match, deltas ...repository.XPDelta) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.matches[m.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if stored.SettledAt != nil {
		return nil, repository.ErrAlreadySettled
	}

	out := make([]*domain.User, len(deltas))
	for i, d := range deltas {
		if err := s.failXP[d.UserID]; err != nil {
			return nil, err
		}
		u, ok := s.users[d.UserID]
		if !ok {
			return nil, repository.ErrNotFound
		}
		cp := *u
		cp.XP = max(cp.XP+d.Delta, 0)
		cp.Tier = domain.TierFromXP(cp.XP)
		out[i] = &cp
	}

	now := time.Now()
	m.SettledAt = &now
	cp := *m
	s.matches[m.ID] = &cp
	for _, u := range out {
		nu := *u
		s.users[u.ID] = &nu
	}
	return out, nil
}

type badgeStore struct{ *memStore }

func (b badgeStore) Create(_ context.Context, userID string, tier domain.Tier) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.badges[userID] {
		if t == tier {
			return nil
		}
	}
	b.badges[userID] = append(b.badges[userID], tier)
	return nil
}

type ledgerCall struct {
	Method string
	Args   []any
}

type fakeLedger struct {
	mu    sync.Mutex
	calls []ledgerCall
	err   error
}

func (l *fakeLedger) record(method string, args ...any) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ledgerCall{Method: method, Args: args})
	if l.err != nil {
		return "", l.err
	}
	return "0xhash", nil
}

func (l *fakeLedger) Settle(_ context.Context, escrowID, winner string) (string, error) {
	return l.record("settle", escrowID, winner)
}

func (l *fakeLedger) SetXP(_ context.Context, wallet string, xp int64) (string, error) {
	return l.record("setXP", wallet, xp)
}

func (l *fakeLedger) MintBadge(_ context.Context, wallet string, tier int) (string, error) {
	return l.record("mintBadge", wallet, tier)
}

func (l *fakeLedger) FaucetMint(_ context.Context, wallet string, amount *big.Int) (string, error) {
	return l.record("faucetMint", wallet, amount.String())
}

func (l *fakeLedger) methods() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, c := range l.calls {
		out = append(out, c.Method)
	}
	return out
}

const (
	walletA = "0x1111111111111111111111111111111111111111"
	walletB = "0x2222222222222222222222222222222222222222"
)

func settlementFixture(xpA, xpB int64, escrow *string) (*SettlementService, *memStore, *fakeLedger) {
	store := newMemStore()
	store.addUser("ua", walletA, xpA)
	store.addUser("ub", walletB, xpB)
	store.matches["m1"] = &domain.Match{
		ID:       "m1",
		Game:     domain.GameCodeC4,
		P1ID:     "ua",
		P2ID:     "ub",
		Result:   domain.MatchResultDraw,
		EscrowID: escrow,
	}
	ledger := &fakeLedger{}
	return NewSettlementService(store, store, badgeStore{store}, ledger), store, ledger
}

func TestSettle_Win(t *testing.T) {
	escrow := "77"
	svc, store, ledger := settlementFixture(480, 1000, &escrow)

	res, err := svc.Settle(context.Background(), domain.MatchOutcome{
		MatchID:      "m1",
		WinnerWallet: walletA,
		LoserWallet:  walletB,
		DurationSec:  95,
	})
	require.NoError(t, err)

	// underdog by more than 500 gains 55; favourite loses 35
	assert.Equal(t, int64(535), res.Winner.XP)
	assert.Equal(t, domain.TierSilver, res.Winner.Tier)
	assert.Equal(t, int64(965), res.Loser.XP)
	assert.Equal(t, domain.TierSilver, res.Loser.Tier)

	m := store.matches["m1"]
	require.NotNil(t, m.WinnerID)
	assert.Equal(t, "ua", *m.WinnerID)
	assert.Equal(t, domain.MatchResultWin, m.Result)
	assert.Equal(t, int64(55), m.XPWinner)
	assert.Equal(t, int64(35), m.XPLoser)
	assert.Equal(t, int64(95), m.DurationSec)
	assert.Equal(t, int64(-35), m.XPDeltaFor("ub"))

	assert.Equal(t, []string{"settle", "setXP", "mintBadge", "setXP", "mintBadge"}, ledger.methods())
	assert.Equal(t, []any{"77", walletA}, ledger.calls[0].Args)
	assert.Equal(t, []domain.Tier{domain.TierSilver}, store.badges["ua"])
	assert.Equal(t, []domain.Tier{domain.TierSilver}, store.badges["ub"])
}

func TestSettle_SecondSeatWinsWithoutEscrow(t *testing.T) {
	svc, store, ledger := settlementFixture(0, 0, nil)

	res, err := svc.Settle(context.Background(), domain.MatchOutcome{
		MatchID:      "m1",
		WinnerWallet: "0x2222222222222222222222222222222222222222",
	})
	require.NoError(t, err)
	assert.Equal(t, "ub", res.Winner.ID)
	assert.Equal(t, int64(25), res.Winner.XP)
	assert.Equal(t, int64(0), res.Loser.XP, "xp is clamped at zero")

	assert.Equal(t, []string{"setXP", "setXP"}, ledger.methods())
	assert.Empty(t, store.badges)
}

func TestSettle_DrawRefundsEscrow(t *testing.T) {
	escrow := "9"
	svc, store, ledger := settlementFixture(100, 100, &escrow)

	_, err := svc.Settle(context.Background(), domain.MatchOutcome{
		MatchID:      "m1",
		WinnerWallet: walletA,
		LoserWallet:  walletB,
		Draw:         true,
		DurationSec:  30,
	})
	require.NoError(t, err)

	m := store.matches["m1"]
	assert.Nil(t, m.WinnerID)
	assert.Equal(t, domain.MatchResultDraw, m.Result)
	assert.Equal(t, int64(100), store.users["ua"].XP)
	require.Len(t, ledger.calls, 1)
	assert.Equal(t, []any{"9", zeroAddress}, ledger.calls[0].Args)
}

func TestSettle_DrawIsSettledOnce(t *testing.T) {
	escrow := "9"
	svc, store, ledger := settlementFixture(100, 100, &escrow)
	draw := domain.MatchOutcome{MatchID: "m1", WinnerWallet: walletA, LoserWallet: walletB, Draw: true}

	_, err := svc.Settle(context.Background(), draw)
	require.NoError(t, err)
	assert.NotNil(t, store.matches["m1"].SettledAt)

	_, err = svc.Settle(context.Background(), draw)
	assert.ErrorIs(t, err, ErrAlreadySettled)
	assert.Len(t, ledger.calls, 1, "escrow is settled once")
}

func TestSettle_FailedXPUpdateLeavesMatchOpen(t *testing.T) {
	svc, store, ledger := settlementFixture(100, 100, nil)
	store.failXP["ub"] = errors.New("db blip")
	win := domain.MatchOutcome{MatchID: "m1", WinnerWallet: walletA, LoserWallet: walletB, DurationSec: 12}

	_, err := svc.Settle(context.Background(), win)
	require.ErrorContains(t, err, "db blip")
	assert.Equal(t, int64(100), store.users["ua"].XP)
	assert.Equal(t, int64(100), store.users["ub"].XP)
	assert.Nil(t, store.matches["m1"].SettledAt)
	assert.Nil(t, store.matches["m1"].WinnerID)
	assert.Empty(t, ledger.calls)

	delete(store.failXP, "ub")
	res, err := svc.Settle(context.Background(), win)
	require.NoError(t, err)
	assert.Equal(t, int64(125), store.users["ua"].XP)
	assert.Less(t, res.Loser.XP, int64(100))
	assert.Equal(t, res.Loser.XP, store.users["ub"].XP)
}

func TestSettle_Errors(t *testing.T) {
	svc, _, _ := settlementFixture(0, 0, nil)
	ctx := context.Background()

	_, err := svc.Settle(ctx, domain.MatchOutcome{MatchID: "nope", WinnerWallet: walletA})
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, err = svc.Settle(ctx, domain.MatchOutcome{MatchID: "m1", WinnerWallet: "0x3333333333333333333333333333333333333333"})
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	require.NoError(t, svc.Report(ctx, domain.MatchOutcome{MatchID: "m1", WinnerWallet: walletA, DurationSec: 10}))
	assert.ErrorIs(t, svc.Report(ctx, domain.MatchOutcome{MatchID: "m1", WinnerWallet: walletB, DurationSec: 10}), ErrAlreadySettled)
}

func TestSettle_LedgerFailureIsNotFatal(t *testing.T) {
	escrow := "1"
	svc, store, ledger := settlementFixture(0, 0, &escrow)
	ledger.err = errors.New("rpc down")

	_, err := svc.Settle(context.Background(), domain.MatchOutcome{MatchID: "m1", WinnerWallet: walletA, DurationSec: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(25), store.users["ua"].XP)
}

func TestMatchService_Start(t *testing.T) {
	store := newMemStore()
	svc := NewMatchService(store, store)
	ctx := context.Background()
	escrow := "12345"

	created, err := svc.Start(ctx, StartRequest{
		P1Wallet:    walletA,
		P2Wallet:    walletB,
		GameID:      domain.GameIDRockPaperScissors,
		StakeAmount: 50,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, domain.GameCodeRPS, store.matches[created.ID].Game)

	updated, err := svc.Start(ctx, StartRequest{
		MatchID:     created.ID,
		P1Wallet:    walletA,
		P2Wallet:    walletB,
		GameID:      domain.GameIDConnectFour,
		StakeAmount: 50,
		EscrowID:    &escrow,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	require.Len(t, store.matches, 1)
	stored := store.matches[created.ID]
	assert.Equal(t, domain.GameCodeC4, stored.Game)
	require.NotNil(t, stored.EscrowID)
	assert.Equal(t, escrow, *stored.EscrowID)

	local, err := svc.Start(ctx, StartRequest{
		MatchID:  "m_local",
		P1Wallet: walletA,
		P2Wallet: walletB,
		GameID:   domain.GameIDTicTacToe,
	})
	require.NoError(t, err)
	assert.Equal(t, "m_local", local.ID)
	assert.Equal(t, domain.GameCodeTTT, store.matches["m_local"].Game)
}
