package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_RoundTrip(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateJWT("0xABCDEFabcdef0000000000000000000000000001")
	require.NoError(t, err)

	wallet, err := ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "0xabcdefabcdef0000000000000000000000000001", wallet)

	_, err = ParseJWT(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	InitJWT("other-secret")
	_, err = ParseJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func signLogin(t *testing.T, message string) (wallet, sig string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	raw, err := crypto.Sign(personalHash(message), key)
	require.NoError(t, err)
	raw[crypto.RecoveryIDOffset] += 27
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), hexutil.Encode(raw)
}

func TestValidateWalletLogin(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	msg := LoginMessage(now)
	wallet, sig := signLogin(t, msg)

	assert.True(t, ValidateWalletLogin(wallet, msg, sig, now))
	assert.True(t, ValidateWalletLogin(wallet, msg, sig, now.Add(5*time.Minute)))

	assert.False(t, ValidateWalletLogin(wallet, msg, sig, now.Add(11*time.Minute)), "stale")
	assert.False(t, ValidateWalletLogin(walletA, msg, sig, now), "other wallet")
	assert.False(t, ValidateWalletLogin(wallet, LoginMessage(now.Add(time.Second)), sig, now), "other message")
	assert.False(t, ValidateWalletLogin(wallet, "hello", sig, now))
	assert.False(t, ValidateWalletLogin(wallet, msg, "0x1234", now))
}

type memCooldown struct {
	taken map[string]time.Duration
	err   error
}

func (m *memCooldown) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.taken[key]; ok {
		return false, nil
	}
	m.taken[key] = ttl
	return true, nil
}

func TestFaucet_Claim(t *testing.T) {
	ledger := &fakeLedger{}
	cd := &memCooldown{taken: make(map[string]time.Duration)}
	svc := NewFaucetService(ledger, cd, "1000000000000000000", time.Hour)
	ctx := context.Background()

	hash, err := svc.Claim(ctx, "0xAAAA000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "0xhash", hash)
	require.Len(t, ledger.calls, 1)
	assert.Equal(t, []any{"0xaaaa000000000000000000000000000000000001", "1000000000000000000"}, ledger.calls[0].Args)
	assert.Equal(t, time.Hour, cd.taken["faucet:3600:0xaaaa000000000000000000000000000000000001"])

	_, err = svc.Claim(ctx, "0xaaaa000000000000000000000000000000000001")
	assert.ErrorIs(t, err, ErrFaucetCooldown)

	cd.err = errors.New("redis down")
	_, err = svc.Claim(ctx, walletB)
	assert.ErrorContains(t, err, "redis down")
}

func TestFaucet_Disabled(t *testing.T) {
	ledger := &fakeLedger{}
	svc := NewFaucetService(ledger, &memCooldown{taken: make(map[string]time.Duration)}, "0", time.Hour)

	_, err := svc.Claim(context.Background(), walletA)
	assert.ErrorIs(t, err, ErrFaucetDisabled)
	assert.Empty(t, ledger.calls)
}

func TestMemoryCooldown(t *testing.T) {
	now := time.Unix(100, 0)
	cd := NewMemoryCooldown()
	cd.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := cd.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = cd.Acquire(ctx, "k", time.Minute)
	assert.False(t, ok)
	ok, _ = cd.Acquire(ctx, "other", time.Minute)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = cd.Acquire(ctx, "k", time.Minute)
	assert.True(t, ok)
}
