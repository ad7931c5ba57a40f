// Package chain talks to the contracts that hold stakes, XP and badges.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"arcade_arena/internal/config"
	"arcade_arena/internal/logger"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	ErrNotConfigured = errors.New("ledger not configured")
	ErrBadAddress    = errors.New("invalid address")
	ErrBadEscrowID   = errors.New("invalid escrow id")
)

// Ledger is the set of contract writes the backend performs. Each call
// returns the submitted transaction hash.
type Ledger interface {
	Settle(ctx context.Context, escrowID, winner string) (string, error)
	SetXP(ctx context.Context, wallet string, xp int64) (string, error)
	MintBadge(ctx context.Context, wallet string, tierIndex int) (string, error)
	FaucetMint(ctx context.Context, wallet string, amount *big.Int) (string, error)
}

const (
	escrowABI = `[{"type":"function","name":"settle","stateMutability":"nonpayable","inputs":[{"name":"escrowId","type":"uint256"},{"name":"winner","type":"address"}],"outputs":[]}]`
	xpABI     = `[{"type":"function","name":"setXP","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"},{"name":"xp","type":"uint256"}],"outputs":[]}]`
	badgeABI  = `[{"type":"function","name":"mintBadge","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"tier","type":"uint8"}],"outputs":[]}]`
	tokenABI  = `[{"type":"function","name":"faucetMint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}]`
)

var (
	escrowContract = mustABI(escrowABI)
	xpContract     = mustABI(xpABI)
	badgeContract  = mustABI(badgeABI)
	tokenContract  = mustABI(tokenABI)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Backend is the subset of ethclient.Client the ledger signs against.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Client signs and submits contract calls with the server key.
type Client struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer

	escrow common.Address
	xp     common.Address
	badge  common.Address
	token  common.Address

	// serializes nonce allocation
	mu sync.Mutex
}

// New dials the configured RPC endpoint. When no endpoint or key is set it
// returns a Nop ledger so the rest of the system runs without a chain.
func New(ctx context.Context, cfg config.ChainConfig) (Ledger, error) {
	if cfg.RPCURL == "" || cfg.PrivateKey == "" {
		logger.Warn("chain ledger disabled, CHAIN_RPC_URL or SERVER_PRIVATE_KEY not set")
		return Nop{}, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ec, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return NewClient(ec, cfg)
}

// NewClient builds a ledger over an existing backend.
func NewClient(backend Backend, cfg config.ChainConfig) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse server key: %w", err)
	}

	c := &Client{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.NewEIP155Signer(big.NewInt(cfg.ChainID)),
	}

	for _, a := range []struct {
		dst *common.Address
		hex string
	}{
		{&c.escrow, cfg.EscrowAddress},
		{&c.xp, cfg.XPRegistryAddress},
		{&c.badge, cfg.BadgeAddress},
		{&c.token, cfg.TokenAddress},
	} {
		if a.hex == "" {
			continue
		}
		if !common.IsHexAddress(a.hex) {
			return nil, fmt.Errorf("%w: %s", ErrBadAddress, a.hex)
		}
		*a.dst = common.HexToAddress(a.hex)
	}
	return c, nil
}

// From is the server account that signs every call.
func (c *Client) From() common.Address {
	return c.from
}

// Settle releases an escrow to winner. The zero address refunds both sides.
func (c *Client) Settle(ctx context.Context, escrowID, winner string) (string, error) {
	id, ok := new(big.Int).SetString(escrowID, 10)
	if !ok || id.Sign() < 0 {
		return "", fmt.Errorf("%w: %q", ErrBadEscrowID, escrowID)
	}
	to, err := parseAddress(winner)
	if err != nil {
		return "", err
	}
	return c.transact(ctx, c.escrow, escrowContract, "settle", id, to)
}

func (c *Client) SetXP(ctx context.Context, wallet string, xp int64) (string, error) {
	to, err := parseAddress(wallet)
	if err != nil {
		return "", err
	}
	if xp < 0 {
		xp = 0
	}
	return c.transact(ctx, c.xp, xpContract, "setXP", to, big.NewInt(xp))
}

func (c *Client) MintBadge(ctx context.Context, wallet string, tierIndex int) (string, error) {
	to, err := parseAddress(wallet)
	if err != nil {
		return "", err
	}
	return c.transact(ctx, c.badge, badgeContract, "mintBadge", to, uint8(tierIndex))
}

func (c *Client) FaucetMint(ctx context.Context, wallet string, amount *big.Int) (string, error) {
	to, err := parseAddress(wallet)
	if err != nil {
		return "", err
	}
	return c.transact(ctx, c.token, tokenContract, "faucetMint", to, amount)
}

func (c *Client) transact(ctx context.Context, contract common.Address, def abi.ABI, method string, args ...any) (string, error) {
	if contract == (common.Address{}) {
		return "", fmt.Errorf("%w: no address for %s", ErrNotConfigured, method)
	}
	data, err := def.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", method, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &contract,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("estimate %s: %w", method, err)
	}

	tx := types.NewTransaction(nonce, contract, big.NewInt(0), gas, gasPrice, data)
	signed, err := types.SignTx(tx, c.signer, c.key)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", method, err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send %s: %w", method, err)
	}

	logger.Debug("ledger tx sent", "method", method, "hash", signed.Hash().Hex(), "nonce", nonce)
	return signed.Hash().Hex(), nil
}

// Ping checks that the RPC endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.backend.SuggestGasPrice(ctx)
	return err
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrBadAddress, s)
	}
	return common.HexToAddress(s), nil
}

// Nop is the ledger used when no chain is configured.
type Nop struct{}

func (Nop) Ping(context.Context) error { return ErrNotConfigured }

func (Nop) Settle(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}

func (Nop) SetXP(context.Context, string, int64) (string, error) {
	return "", ErrNotConfigured
}

func (Nop) MintBadge(context.Context, string, int) (string, error) {
	return "", ErrNotConfigured
}

func (Nop) FaucetMint(context.Context, string, *big.Int) (string, error) {
	return "", ErrNotConfigured
}
