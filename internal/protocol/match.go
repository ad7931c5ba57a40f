package protocol

import "arcade_arena/internal/game"

// MatchMessage is any client → server message on the match channel.
type MatchMessage struct {
	Action   string      `json:"action"`
	Position *int        `json:"position,omitempty"`
	Choice   game.Choice `json:"choice,omitempty"`
	Data     *EndRequest `json:"data,omitempty"`
}

type EndRequest struct {
	Reason string `json:"reason,omitempty"`
}

// MaxPosition bounds the position field of a move.
const MaxPosition = 63

type StartData struct {
	StartAt int64     `json:"startAt"`
	Current game.Side `json:"current"`
	Side    game.Side `json:"side"`
}

type StateData struct {
	Board     []any     `json:"board"`
	Current   game.Side `json:"current"`
	Timestamp int64     `json:"timestamp"`
}

type RevealData struct {
	Round      int         `json:"round"`
	AChoice    game.Choice `json:"aChoice"`
	BChoice    game.Choice `json:"bChoice"`
	WinnerSide *game.Side  `json:"winnerSide"`
}

type GameEndData struct {
	WinnerSide *game.Side `json:"winnerSide"`
	Reason     string     `json:"reason"`
}

type OpponentMoveData struct {
	Position  int    `json:"position"`
	Timestamp string `json:"timestamp"`
}

// SidePtr returns nil for the empty side so it encodes as JSON null.
func SidePtr(s game.Side) *game.Side {
	if s == "" {
		return nil
	}
	return &s
}
