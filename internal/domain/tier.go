package domain

import "time"

type Tier string

const (
	TierBronze  Tier = "BRONZE"
	TierSilver  Tier = "SILVER"
	TierGold    Tier = "GOLD"
	TierDiamond Tier = "DIAMOND"
)

// TierThreshold is the minimum XP for a tier.
type TierThreshold struct {
	Tier      Tier
	Threshold int64
}

// Tiers are ordered from lowest to highest.
var Tiers = []TierThreshold{
	{TierBronze, 0},
	{TierSilver, 500},
	{TierGold, 1000},
	{TierDiamond, 2000},
}

func TierFromXP(xp int64) Tier {
	switch {
	case xp >= 2000:
		return TierDiamond
	case xp >= 1000:
		return TierGold
	case xp >= 500:
		return TierSilver
	default:
		return TierBronze
	}
}

// Index is the on-chain badge index (BRONZE=0 .. DIAMOND=3).
func (t Tier) Index() int {
	for i, tt := range Tiers {
		if tt.Tier == t {
			return i
		}
	}
	return 0
}

// XPChange returns the XP delta for a player against an opponent. Winners get
// a positive delta, losers a negative one.
func XPChange(won bool, playerXP, opponentXP int64) int64 {
	diff := opponentXP - playerXP
	const base = 25
	if won {
		switch {
		case diff > 500:
			return base + 30
		case diff > 200:
			return base + 20
		case diff > 0:
			return base + 10
		case diff < -500:
			return base - 10
		case diff < -200:
			return base - 5
		}
		return base
	}
	switch {
	case diff > 500:
		return -5
	case diff > 200:
		return -10
	case diff > 0:
		return -15
	case diff < -500:
		return -35
	case diff < -200:
		return -30
	}
	return -20
}

type Badge struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"userId"`
	Tier       Tier      `db:"tier" json:"tier"`
	UnlockedAt time.Time `db:"unlocked_at" json:"unlockedAt"`
}
