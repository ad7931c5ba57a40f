package game

// Choice is a rock-paper-scissors hand.
type Choice string

const (
	Rock     Choice = "rock"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"
)

// RPSTarget is the number of round wins that ends the match.
const RPSTarget = 5

func (c Choice) Valid() bool {
	return c == Rock || c == Paper || c == Scissors
}

// Beats reports whether a beats b.
func Beats(a, b Choice) bool {
	switch a {
	case Rock:
		return b == Scissors
	case Paper:
		return b == Rock
	case Scissors:
		return b == Paper
	}
	return false
}

// RoundWinner returns the side that won the round, or "" on a draw.
func RoundWinner(a, b Choice) Side {
	switch {
	case a == b:
		return ""
	case Beats(a, b):
		return SideA
	default:
		return SideB
	}
}

// Reveal is the disclosure of both hands of a completed round.
type Reveal struct {
	Round   int
	AChoice Choice
	BChoice Choice
	Winner  Side // empty on a drawn round
}

// RockPaperScissors is played in simultaneous rounds to RPSTarget wins.
// Choices stay hidden until both sides have chosen.
type RockPaperScissors struct {
	round   int
	scores  map[Side]int
	choices map[Side]Choice
}

func NewRockPaperScissors() *RockPaperScissors {
	return &RockPaperScissors{
		round:   1,
		scores:  map[Side]int{SideA: 0, SideB: 0},
		choices: map[Side]Choice{},
	}
}

func (g *RockPaperScissors) Kind() Kind { return KindRPS }

func (g *RockPaperScissors) TurnBased() bool { return false }

func (g *RockPaperScissors) Move(Side, int) (Outcome, error) {
	return Outcome{}, ReasonInvalidAction
}

func (g *RockPaperScissors) Board() []any { return nil }

// Choose caches the side's choice for the current round. Choosing again
// before the reveal replaces the earlier choice.
func (g *RockPaperScissors) Choose(side Side, choice Choice) (Outcome, error) {
	if !choice.Valid() {
		return Outcome{}, ReasonBadMessage
	}
	g.choices[side] = choice

	a, okA := g.choices[SideA]
	b, okB := g.choices[SideB]
	if !okA || !okB {
		return Outcome{}, nil
	}

	reveal := &Reveal{Round: g.round, AChoice: a, BChoice: b, Winner: RoundWinner(a, b)}
	if reveal.Winner != "" {
		g.scores[reveal.Winner]++
	}
	if g.scores[SideA] >= RPSTarget || g.scores[SideB] >= RPSTarget {
		winner := SideA
		if g.scores[SideB] >= RPSTarget {
			winner = SideB
		}
		return Outcome{Ended: true, Winner: winner, Reason: EndRPSFirstTo5, Reveal: reveal}, nil
	}

	g.round++
	g.choices = map[Side]Choice{}
	return Outcome{Reveal: reveal}, nil
}

// Round is the number of the round currently being played.
func (g *RockPaperScissors) Round() int { return g.round }

func (g *RockPaperScissors) Score(side Side) int { return g.scores[side] }

// Pending reports whether the side has a hidden choice for this round.
func (g *RockPaperScissors) Pending(side Side) bool {
	_, ok := g.choices[side]
	return ok
}
