package bingo

import "math/rand/v2"

// ChooseMove picks the number an auto-controlled player calls from its chart.
//
// Every unstruck number is tried hypothetically. A number that yields the
// strictly highest score wins outright; ties among improving numbers, and the
// case where nothing improves the score, are broken uniformly at random.
// ok is false only when every number is already struck.
func ChooseMove(c *Chart, r *rand.Rand) (n int, ok bool) {
	candidates := c.Unstruck()
	if len(candidates) == 0 {
		return 0, false
	}

	current := c.Score()
	best := current
	var top []int
	for _, v := range candidates {
		switch score := c.ScoreWith(v); {
		case score > best:
			best = score
			top = append(top[:0], v)
		case score == best && score > current:
			top = append(top, v)
		}
	}
	if len(top) == 0 {
		top = candidates
	}
	return top[r.IntN(len(top))], true
}
