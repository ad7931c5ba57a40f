package protocol

// JoinRequest enters the matchmaking queue.
type JoinRequest struct {
	Action      string `json:"action"`
	Wallet      string `json:"wallet"`
	GameID      string `json:"gameId"`
	PlayMode    string `json:"playMode"`
	StakeAmount Number `json:"stakeAmount"`
	PlayerXP    Number `json:"playerXP"`
	// EscrowID is set by the staking player who already created the
	// on-chain escrow. Decimal string to avoid precision loss.
	EscrowID string `json:"escrowId,omitempty"`
}

// Coordination is a signal relayed verbatim between two matched clients.
type Coordination struct {
	Action   string `json:"action"`
	MatchID  string `json:"matchId"`
	EscrowID any    `json:"escrowId,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type MatchFoundData struct {
	MatchID        string  `json:"matchId"`
	EscrowID       *string `json:"escrowId"`
	OpponentID     string  `json:"opponentId"`
	OpponentName   string  `json:"opponentName"`
	OpponentWallet string  `json:"opponentWallet"`
	Role           string  `json:"role"`
}

type RelayData struct {
	MatchID  string `json:"matchId"`
	EscrowID string `json:"escrowId,omitempty"`
}

type CancelData struct {
	MatchID string `json:"matchId"`
	Reason  string `json:"reason"`
}

type Empty struct{}
