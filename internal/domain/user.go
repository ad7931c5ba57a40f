package domain

import (
	"regexp"
	"strings"
	"time"
)

type User struct {
	ID            string    `db:"id" json:"id"`
	WalletAddress string    `db:"wallet_address" json:"walletAddress"`
	Nickname      string    `db:"nickname" json:"nickname"`
	Avatar        string    `db:"avatar" json:"avatar"`
	XP            int64     `db:"xp" json:"xp"`
	Tier          Tier      `db:"tier" json:"tier"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// DisplayName is the nickname, or the first 6 characters of the wallet.
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return ShortWallet(u.WalletAddress)
}

func ShortWallet(wallet string) string {
	if len(wallet) <= 6 {
		return wallet
	}
	return wallet[:6]
}

// NormalizeWallet lower-cases a wallet address for storage and comparison.
func NormalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

var (
	nicknameRe = regexp.MustCompile(`^[\w ]{3,20}$`)
	walletRe   = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// ValidWallet reports whether s is a 0x-prefixed 20 byte hex address.
func ValidWallet(s string) bool {
	return walletRe.MatchString(s)
}

func ValidNickname(nick string) bool {
	return nicknameRe.MatchString(nick)
}
