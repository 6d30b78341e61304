package bracket

import (
	"errors"
	"fmt"
)

type Mode string

const (
	ModeTeams   Mode = "teams"
	ModeSingles Mode = "singles"
)

const MaxPlayersPerTeam = 8

var (
	ErrInvalidMode           = errors.New("mode must be teams or singles")
	ErrInvalidBracketSize    = errors.New("bracket size must be 4, 8 or 16")
	ErrInvalidPlayersPerTeam = errors.New("players per team out of range")
)

// Config is the bracket topology. The JSON shape is the one used by export files.
type Config struct {
	Mode           Mode `json:"type"`
	PlayersPerTeam int  `json:"playersPerTeam"`
	BracketSize    int  `json:"bracketSize"`
}

func DefaultConfig() Config {
	return Config{Mode: ModeTeams, PlayersPerTeam: 3, BracketSize: 8}
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeTeams:
		if c.PlayersPerTeam < 1 || c.PlayersPerTeam > MaxPlayersPerTeam {
			return fmt.Errorf("%w: %d", ErrInvalidPlayersPerTeam, c.PlayersPerTeam)
		}
	case ModeSingles:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}

	switch c.BracketSize {
	case 4, 8, 16:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidBracketSize, c.BracketSize)
	}
}

func (c Config) IsTeams() bool {
	return c.Mode == ModeTeams
}

// Players is the number of player records per slot: PlayersPerTeam for teams, zero for singles
// where the slot itself is the player.
func (c Config) Players() int {
	if c.IsTeams() {
		return c.PlayersPerTeam
	}
	return 0
}

func (c Config) TotalRounds() int {
	return TotalRounds(c.BracketSize)
}

func (c Config) MatchesInRound(round int) int {
	return MatchesInRound(c.BracketSize, round)
}

func (c Config) RoundName(round int) string {
	return RoundName(round, c.TotalRounds(), c.BracketSize)
}

// Equal ignores PlayersPerTeam in singles mode since it has no effect there.
func (c Config) Equal(other Config) bool {
	if c.Mode != other.Mode || c.BracketSize != other.BracketSize {
		return false
	}
	return !c.IsTeams() || c.PlayersPerTeam == other.PlayersPerTeam
}
