package game

// Mark is a tic-tac-toe symbol. Side a plays X, side b plays O.
type Mark string

const (
	MarkX Mark = "X"
	MarkO Mark = "O"
)

const (
	tttCells    = 9
	tttMaxMarks = 3
)

var tttLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

func markFor(side Side) Mark {
	if side == SideA {
		return MarkX
	}
	return MarkO
}

// TicTacToe is the decaying variant: each side keeps at most three marks and
// its oldest mark is removed when a fourth is placed without winning.
type TicTacToe struct {
	board [tttCells]Mark
	marks map[Side][]int // placement order per side, oldest first
}

func NewTicTacToe() *TicTacToe {
	return &TicTacToe{
		marks: map[Side][]int{SideA: {}, SideB: {}},
	}
}

func (g *TicTacToe) Kind() Kind { return KindTicTacToe }

func (g *TicTacToe) TurnBased() bool { return true }

func (g *TicTacToe) Choose(Side, Choice) (Outcome, error) {
	return Outcome{}, ReasonInvalidAction
}

// Move places the side's mark at cell position (0-8). The win is checked on
// the tentative board before the oldest mark is evicted, so completing a line
// with a fourth placement wins outright.
func (g *TicTacToe) Move(side Side, position int) (Outcome, error) {
	if position < 0 || position >= tttCells || g.board[position] != "" {
		return Outcome{}, ReasonCellOccupied
	}

	mark := markFor(side)
	tentative := g.board
	tentative[position] = mark
	if tttWinner(tentative) == mark {
		g.board = tentative
		g.marks[side] = append(g.marks[side], position)
		return Outcome{Ended: true, Winner: side, Reason: EndTicTacToeWin}, nil
	}

	moves := g.marks[side]
	if len(moves) >= tttMaxMarks {
		g.board[moves[0]] = ""
		moves = moves[1:]
	}
	g.board[position] = mark
	g.marks[side] = append(moves, position)
	return Outcome{}, nil
}

// Marks returns the side's occupied cells, oldest first.
func (g *TicTacToe) Marks(side Side) []int {
	return append([]int(nil), g.marks[side]...)
}

// At returns the mark at a cell, or "" when empty.
func (g *TicTacToe) At(position int) Mark {
	return g.board[position]
}

func (g *TicTacToe) Board() []any {
	out := make([]any, tttCells)
	for i, m := range g.board {
		if m != "" {
			out[i] = string(m)
		}
	}
	return out
}

func tttWinner(board [tttCells]Mark) Mark {
	for _, l := range tttLines {
		v := board[l[0]]
		if v != "" && v == board[l[1]] && v == board[l[2]] {
			return v
		}
	}
	return ""
}
