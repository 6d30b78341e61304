package bracket

import (
	"fmt"
	"math/bits"
)

// TotalRounds returns log2(size). Size must be a power of two.
func TotalRounds(size int) int {
	if size <= 1 {
		return 0
	}
	return bits.TrailingZeros(uint(size))
}

func MatchesInRound(size, round int) int {
	if round < 0 || round >= TotalRounds(size) {
		return 0
	}
	return size >> (round + 1)
}

func RoundName(round, totalRounds, size int) string {
	switch {
	case round == totalRounds-1:
		return "Finals"
	case round == totalRounds-2:
		return "Semi Finals"
	case round == totalRounds-3 && (size == 8 || size == 16):
		return "Quarter Finals"
	}
	return fmt.Sprintf("Round %d", round+1)
}

// NextSlot is where the winner of (round, match) lands in the following round.
func NextSlot(round, match int) Slot {
	return Slot{Round: round + 1, Match: match / 2, Side: match % 2}
}

// Matches lists every match of the topology in round order.
func (c Config) Matches() []MatchID {
	matches := make([]MatchID, 0, c.BracketSize-1)
	for r := 0; r < c.TotalRounds(); r++ {
		for m := 0; m < c.MatchesInRound(r); m++ {
			matches = append(matches, MatchID{Round: r, Match: m})
		}
	}
	return matches
}

func (c Config) HasMatch(id MatchID) bool {
	return id.Round >= 0 && id.Round < c.TotalRounds() && id.Match >= 0 && id.Match < c.MatchesInRound(id.Round)
}

func (c Config) HasSlot(s Slot) bool {
	return c.HasMatch(s.MatchID()) && (s.Side == 0 || s.Side == 1)
}
