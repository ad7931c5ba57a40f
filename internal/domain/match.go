package domain

import "time"

// GameCode is the game stored on a match record.
type GameCode string

const (
	GameCodeTTT   GameCode = "TTT"
	GameCodeC4    GameCode = "C4"
	GameCodeRPS   GameCode = "RPS"
	GameCodeChess GameCode = "CHESS"
)

// GameID is the client facing game identifier used by the lobby.
type GameID string

const (
	GameIDChess             GameID = "chess"
	GameIDTicTacToe         GameID = "tictactoe"
	GameIDConnectFour       GameID = "connectfour"
	GameIDRockPaperScissors GameID = "rockpaperscissors"
)

func (g GameID) Valid() bool {
	switch g {
	case GameIDChess, GameIDTicTacToe, GameIDConnectFour, GameIDRockPaperScissors:
		return true
	}
	return false
}

// Code maps a lobby game id to its stored code. Unknown ids map to TTT.
func (g GameID) Code() GameCode {
	switch g {
	case GameIDChess:
		return GameCodeChess
	case GameIDConnectFour:
		return GameCodeC4
	case GameIDRockPaperScissors:
		return GameCodeRPS
	default:
		return GameCodeTTT
	}
}

// DisplayName is the human readable game name for history views.
func (c GameCode) DisplayName() string {
	switch c {
	case GameCodeC4:
		return "Connect Four"
	case GameCodeRPS:
		return "Rock Paper Scissors"
	case GameCodeChess:
		return "Chess"
	default:
		return "Tic-Tac-Toe"
	}
}

// PlayMode - режим игры
type PlayMode string

const (
	PlayModeFree  PlayMode = "free"
	PlayModeStake PlayMode = "stake"
)

func (m PlayMode) Valid() bool {
	return m == PlayModeFree || m == PlayModeStake
}

// MatchResult is the stored outcome column.
type MatchResult string

const (
	MatchResultWin  MatchResult = "WIN"
	MatchResultDraw MatchResult = "DRAW"
)

type Match struct {
	ID          string      `db:"id" json:"id"`
	Game        GameCode    `db:"game" json:"game"`
	P1ID        string      `db:"p1_id" json:"p1Id"`
	P2ID        string      `db:"p2_id" json:"p2Id"`
	WinnerID    *string     `db:"winner_id" json:"winnerId,omitempty"`
	Result      MatchResult `db:"result" json:"result"`
	ArkStaked   int64       `db:"ark_staked" json:"arkStaked"`
	EscrowID    *string     `db:"escrow_id" json:"escrowId,omitempty"` // numeric(78,0) as decimal string
	XPWinner    int64       `db:"xp_winner" json:"xpWinner"`
	XPLoser     int64       `db:"xp_loser" json:"xpLoser"`
	DurationSec int64       `db:"duration_sec" json:"durationSec"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	SettledAt   *time.Time  `db:"settled_at" json:"settledAt,omitempty"`
}

// OutcomeFor reports "Win", "Loss" or "Draw" from the given user's view.
func (m *Match) OutcomeFor(userID string) string {
	if m.Result == MatchResultDraw || m.WinnerID == nil {
		return "Draw"
	}
	if *m.WinnerID == userID {
		return "Win"
	}
	return "Loss"
}

// ArkDeltaFor is the stake won (+) or lost (-) by the user on this match.
func (m *Match) ArkDeltaFor(userID string) int64 {
	switch m.OutcomeFor(userID) {
	case "Win":
		return m.ArkStaked
	case "Loss":
		return -m.ArkStaked
	}
	return 0
}

// XPDeltaFor is the XP gained (+) or lost (-) by the user on this match.
func (m *Match) XPDeltaFor(userID string) int64 {
	switch m.OutcomeFor(userID) {
	case "Win":
		return m.XPWinner
	case "Loss":
		return -m.XPLoser
	}
	return 0
}

// MatchOutcome is the terminal result of a played match handed to settlement.
// On a draw WinnerWallet and LoserWallet hold the two players in seat order.
type MatchOutcome struct {
	MatchID      string
	WinnerWallet string
	LoserWallet  string
	Draw         bool
	Reason       string
	DurationSec  int64
}
