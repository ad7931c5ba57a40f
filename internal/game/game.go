package game

import "fmt"

// Kind is the room type driven by the session runtime.
type Kind string

const (
	KindTicTacToe   Kind = "TTT"
	KindConnectFour Kind = "C4"
	KindRPS         Kind = "RPS"
)

// Kinds lists every playable room type.
var Kinds = []Kind{KindTicTacToe, KindConnectFour, KindRPS}

// KindFromCode resolves a stored match game code. Anything that is not C4 or
// RPS plays as tic-tac-toe.
func KindFromCode(code string) Kind {
	switch code {
	case string(KindConnectFour):
		return KindConnectFour
	case string(KindRPS):
		return KindRPS
	default:
		return KindTicTacToe
	}
}

// Side is one of the two seats of a match.
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Reason is a rule violation reported to the offending client only.
type Reason string

const (
	ReasonNotYourTurn   Reason = "not_your_turn"
	ReasonCellOccupied  Reason = "cell_occupied"
	ReasonInvalidColumn Reason = "invalid_column"
	ReasonColumnFull    Reason = "column_full"
	ReasonInvalidAction Reason = "invalid_action_for_game"
	ReasonGameEnded     Reason = "game_already_ended"
	ReasonBadMessage    Reason = "bad_message"
	ReasonRoomFull      Reason = "room_full"
)

func (r Reason) Error() string {
	return string(r)
}

// Terminal reasons carried by game_end.
const (
	EndTicTacToeWin    = "ttt_win"
	EndConnectFourWin  = "c4_win"
	EndConnectFourDraw = "c4_draw"
	EndRPSFirstTo5     = "rps_first_to_5"
	EndForfeit         = "forfeit"
	EndOpponentLeft    = "opponent_left"
)

// Outcome describes what an accepted move did.
type Outcome struct {
	Ended  bool
	Winner Side // empty when the game ended without a winner
	Reason string
	Reveal *Reveal
}

// Engine holds the board or score state of a single match. Engines are not
// safe for concurrent use; the owning room serializes access.
type Engine interface {
	Kind() Kind
	// TurnBased reports whether moves alternate between sides.
	TurnBased() bool
	// Move applies a positional move (cell index or column).
	Move(side Side, position int) (Outcome, error)
	// Choose applies a simultaneous-choice move.
	Choose(side Side, choice Choice) (Outcome, error)
	// Board returns the serializable board, or nil for boardless games.
	Board() []any
}

func New(kind Kind) (Engine, error) {
	switch kind {
	case KindTicTacToe:
		return NewTicTacToe(), nil
	case KindConnectFour:
		return NewConnectFour(), nil
	case KindRPS:
		return NewRockPaperScissors(), nil
	default:
		return nil, fmt.Errorf("unknown game kind: %s", kind)
	}
}
