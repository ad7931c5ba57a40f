package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"arcade_arena/internal/chain"
	"arcade_arena/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrFaucetCooldown = errors.New("faucet cooldown")
	ErrFaucetDisabled = errors.New("faucet not configured")
)

// Cooldown grants a key at most once per ttl.
type Cooldown interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisCooldown implements Cooldown with SET NX EX.
type RedisCooldown struct {
	client *redis.Client
}

func NewRedisCooldown(client *redis.Client) *RedisCooldown {
	return &RedisCooldown{client: client}
}

func (r *RedisCooldown) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, "1", ttl).Result()
}

// MemoryCooldown is the in-process Cooldown used when Redis is not configured.
type MemoryCooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{until: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryCooldown) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if t, ok := m.until[key]; ok && now.Before(t) {
		return false, nil
	}
	m.until[key] = now.Add(ttl)
	return true, nil
}

type FaucetService struct {
	ledger   chain.Ledger
	cooldown Cooldown
	amount   *big.Int
	period   time.Duration
}

// NewFaucetService parses amountWei; a zero or invalid amount disables claims.
func NewFaucetService(ledger chain.Ledger, cooldown Cooldown, amountWei string, period time.Duration) *FaucetService {
	amount, ok := new(big.Int).SetString(amountWei, 10)
	if !ok || amount.Sign() < 0 {
		amount = new(big.Int)
	}
	if cooldown == nil {
		cooldown = NewMemoryCooldown()
	}
	return &FaucetService{ledger: ledger, cooldown: cooldown, amount: amount, period: period}
}

// Claim mints the faucet amount to wallet once per cooldown period and
// returns the transaction hash.
func (s *FaucetService) Claim(ctx context.Context, wallet string) (string, error) {
	wallet = domain.NormalizeWallet(wallet)

	// the period is part of the key so a config change resets old windows
	key := "faucet:" + strconv.FormatInt(int64(s.period.Seconds()), 10) + ":" + wallet
	ok, err := s.cooldown.Acquire(ctx, key, s.period)
	if err != nil {
		return "", fmt.Errorf("cooldown: %w", err)
	}
	if !ok {
		return "", ErrFaucetCooldown
	}

	if s.amount.Sign() == 0 {
		return "", ErrFaucetDisabled
	}
	return s.ledger.FaucetMint(ctx, wallet, s.amount)
}
