package game

// Disc is a Connect Four token. Side a always plays red, side b yellow.
type Disc string

const (
	DiscRed    Disc = "red"
	DiscYellow Disc = "yellow"
)

const (
	C4Cols = 7
	C4Rows = 6
)

func discFor(side Side) Disc {
	if side == SideA {
		return DiscRed
	}
	return DiscYellow
}

// ConnectFour stores the grid row-major with row 0 at the top.
type ConnectFour struct {
	cells [C4Cols * C4Rows]Disc
}

func NewConnectFour() *ConnectFour {
	return &ConnectFour{}
}

func (g *ConnectFour) Kind() Kind { return KindConnectFour }

func (g *ConnectFour) TurnBased() bool { return true }

func (g *ConnectFour) Choose(Side, Choice) (Outcome, error) {
	return Outcome{}, ReasonInvalidAction
}

// Move drops the side's disc into column position.
func (g *ConnectFour) Move(side Side, position int) (Outcome, error) {
	if _, err := g.Drop(side, position); err != nil {
		return Outcome{}, err
	}
	if w := g.winner(); w != "" {
		winner := SideA
		if w == DiscYellow {
			winner = SideB
		}
		return Outcome{Ended: true, Winner: winner, Reason: EndConnectFourWin}, nil
	}
	if g.Full() {
		return Outcome{Ended: true, Reason: EndConnectFourDraw}, nil
	}
	return Outcome{}, nil
}

// Drop places a disc in the lowest empty row of col and returns that row.
func (g *ConnectFour) Drop(side Side, col int) (int, error) {
	if col < 0 || col >= C4Cols {
		return -1, ReasonInvalidColumn
	}
	for row := C4Rows - 1; row >= 0; row-- {
		idx := row*C4Cols + col
		if g.cells[idx] == "" {
			g.cells[idx] = discFor(side)
			return row, nil
		}
	}
	return -1, ReasonColumnFull
}

func (g *ConnectFour) At(row, col int) Disc {
	return g.cells[row*C4Cols+col]
}

func (g *ConnectFour) Full() bool {
	for col := 0; col < C4Cols; col++ {
		if g.cells[col] == "" {
			return false
		}
	}
	return true
}

func (g *ConnectFour) Board() []any {
	out := make([]any, len(g.cells))
	for i, d := range g.cells {
		if d != "" {
			out[i] = string(d)
		}
	}
	return out
}

func (g *ConnectFour) winner() Disc {
	// directions: right, down, down-right, down-left
	dirs := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for row := 0; row < C4Rows; row++ {
		for col := 0; col < C4Cols; col++ {
			v := g.cells[row*C4Cols+col]
			if v == "" {
				continue
			}
			for _, d := range dirs {
				endRow, endCol := row+3*d[0], col+3*d[1]
				if endRow < 0 || endRow >= C4Rows || endCol < 0 || endCol >= C4Cols {
					continue
				}
				n := 1
				for ; n < 4; n++ {
					if g.cells[(row+n*d[0])*C4Cols+col+n*d[1]] != v {
						break
					}
				}
				if n == 4 {
					return v
				}
			}
		}
	}
	return ""
}
