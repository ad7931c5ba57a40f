package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectFour_DropLandsInLowestRow(t *testing.T) {
	g := NewConnectFour()

	row, err := g.Drop(SideA, 3)
	require.NoError(t, err)
	assert.Equal(t, C4Rows-1, row)

	row, err = g.Drop(SideB, 3)
	require.NoError(t, err)
	assert.Equal(t, C4Rows-2, row)

	assert.Equal(t, DiscRed, g.At(C4Rows-1, 3))
	assert.Equal(t, DiscYellow, g.At(C4Rows-2, 3))
	assert.Equal(t, "red", g.Board()[(C4Rows-1)*C4Cols+3])
}

func TestConnectFour_FullColumnRejected(t *testing.T) {
	g := NewConnectFour()
	side := SideA
	for i := 0; i < C4Rows; i++ {
		_, err := g.Drop(side, 0)
		require.NoError(t, err)
		side = side.Other()
	}
	before := g.Board()

	_, err := g.Move(SideA, 0)
	assert.ErrorIs(t, err, ReasonColumnFull)
	assert.Equal(t, before, g.Board())
}

func TestConnectFour_InvalidColumn(t *testing.T) {
	g := NewConnectFour()
	for _, col := range []int{-1, 7, 63} {
		_, err := g.Move(SideA, col)
		assert.ErrorIs(t, err, ReasonInvalidColumn)
	}
}

func TestConnectFour_Wins(t *testing.T) {
	cases := []struct {
		name  string
		moves []int // alternating a, b
		want  Side
	}{
		{"horizontal", []int{0, 0, 1, 1, 2, 2, 3}, SideA},
		{"vertical", []int{6, 0, 6, 0, 6, 0, 5, 0}, SideB},
		{"diagonal up-right", []int{0, 1, 1, 2, 2, 3, 2, 3, 3, 6, 3}, SideA},
		{"diagonal up-left", []int{6, 5, 5, 4, 4, 3, 4, 3, 3, 0, 3}, SideA},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewConnectFour()
			side := SideA
			var out Outcome
			for i, col := range tc.moves {
				var err error
				out, err = g.Move(side, col)
				require.NoError(t, err)
				if i < len(tc.moves)-1 {
					require.False(t, out.Ended, "ended early at move %d", i)
				}
				side = side.Other()
			}
			assert.True(t, out.Ended)
			assert.Equal(t, tc.want, out.Winner)
			assert.Equal(t, EndConnectFourWin, out.Reason)
		})
	}
}

func TestConnectFour_FullBoardIsDraw(t *testing.T) {
	g := NewConnectFour()
	// column order pattern that never lines up four of a colour
	order := []int{0, 1, 0, 1, 0, 1, 1, 0, 1, 0, 1, 0,
		2, 3, 2, 3, 2, 3, 3, 2, 3, 2, 3, 2,
		4, 5, 4, 5, 4, 5, 5, 4, 5, 4, 5, 4,
		6, 6, 6, 6, 6, 6}
	side := SideA
	var out Outcome
	for i, col := range order {
		var err error
		out, err = g.Move(side, col)
		require.NoError(t, err, "move %d", i)
		if i < len(order)-1 {
			require.False(t, out.Ended, "ended early at move %d", i)
		}
		side = side.Other()
	}
	assert.True(t, g.Full())
	assert.True(t, out.Ended)
	assert.Equal(t, Side(""), out.Winner)
	assert.Equal(t, EndConnectFourDraw, out.Reason)
}
