package bracket

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var ErrInvalidAddress = errors.New("invalid bracket address")

// NoPlayer marks an address that points at the slot itself (singles player or team name).
const NoPlayer = -1

type MatchID struct {
	Round int
	Match int
}

func (m MatchID) String() string {
	return fmt.Sprintf("r%dm%d", m.Round, m.Match)
}

func (m MatchID) Slot(side int) Slot {
	return Slot{Round: m.Round, Match: m.Match, Side: side}
}

// Slot is one side of one match.
type Slot struct {
	Round int
	Match int
	Side  int
}

func (s Slot) MatchID() MatchID {
	return MatchID{Round: s.Round, Match: s.Match}
}

func (s Slot) Key() string {
	return fmt.Sprintf("r%dm%dt%d", s.Round, s.Match, s.Side)
}

func (s Slot) Address() Address {
	return Address{Slot: s, Player: NoPlayer}
}

func (s Slot) Player(p int) Address {
	return Address{Slot: s, Player: p}
}

// Address is a slot, optionally narrowed to one player of a team.
type Address struct {
	Slot
	Player int
}

func (a Address) Key() string {
	if a.Player == NoPlayer {
		return a.Slot.Key()
	}
	return fmt.Sprintf("%sp%d", a.Slot.Key(), a.Player)
}

type Field string

const (
	FieldName   Field = "name"
	FieldLeader Field = "leader"
	FieldBase   Field = "base"
)

var playerFields = []Field{FieldName, FieldLeader, FieldBase}

func FieldKey(a Address, f Field) string {
	return a.Key() + "-" + string(f)
}

var (
	matchIDPattern  = regexp.MustCompile(`^r(\d+)m(\d+)$`)
	addressPattern  = regexp.MustCompile(`^r(\d+)m(\d+)t(\d+)(?:p(\d+))?$`)
	fieldKeyPattern = regexp.MustCompile(`^r(\d+)m(\d+)t(\d+)(?:p(\d+))?-(name|leader|base)$`)
)

func ParseMatchID(s string) (MatchID, error) {
	parts := matchIDPattern.FindStringSubmatch(s)
	if parts == nil {
		return MatchID{}, fmt.Errorf("%w: match id %q", ErrInvalidAddress, s)
	}
	return MatchID{Round: atoi(parts[1]), Match: atoi(parts[2])}, nil
}

func ParseAddress(key string) (Address, error) {
	parts := addressPattern.FindStringSubmatch(key)
	if parts == nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, key)
	}
	return addressFromParts(parts[1:5]), nil
}

// ParseFieldKey splits an input id such as "r1m0t1p2-leader".
func ParseFieldKey(key string) (Address, Field, error) {
	parts := fieldKeyPattern.FindStringSubmatch(key)
	if parts == nil {
		return Address{}, "", fmt.Errorf("%w: field %q", ErrInvalidAddress, key)
	}
	return addressFromParts(parts[1:5]), Field(parts[5]), nil
}

// LooksLikeFieldKey reports whether key uses the slot field naming, regardless of topology.
func LooksLikeFieldKey(key string) bool {
	return fieldKeyPattern.MatchString(key)
}

func addressFromParts(parts []string) Address {
	a := Address{
		Slot:   Slot{Round: atoi(parts[0]), Match: atoi(parts[1]), Side: atoi(parts[2])},
		Player: NoPlayer,
	}
	if parts[3] != "" {
		a.Player = atoi(parts[3])
	}
	return a
}

func atoi(s string) int {
	// Only called on \d+ captures; overflow falls back to an out-of-range value.
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// CheckField validates that field f exists at address a for this topology.
func (c Config) CheckField(a Address, f Field) error {
	if !c.HasSlot(a.Slot) {
		return fmt.Errorf("%w: %s outside %d bracket", ErrInvalidAddress, a.Key(), c.BracketSize)
	}
	switch {
	case !c.IsTeams():
		if a.Player != NoPlayer {
			return fmt.Errorf("%w: %s has a player index in singles mode", ErrInvalidAddress, a.Key())
		}
	case a.Player == NoPlayer:
		if f != FieldName {
			return fmt.Errorf("%w: teams only carry a name, got %q", ErrInvalidAddress, f)
		}
		return nil
	case a.Player < 0 || a.Player >= c.PlayersPerTeam:
		return fmt.Errorf("%w: player %d of %d", ErrInvalidAddress, a.Player, c.PlayersPerTeam)
	}
	switch f {
	case FieldName, FieldLeader, FieldBase:
		return nil
	}
	return fmt.Errorf("%w: unknown field %q", ErrInvalidAddress, f)
}

// CheckDecklist validates a decklist owner: the slot in singles mode, a player in teams mode.
func (c Config) CheckDecklist(a Address) error {
	if !c.HasSlot(a.Slot) {
		return fmt.Errorf("%w: %s outside %d bracket", ErrInvalidAddress, a.Key(), c.BracketSize)
	}
	if c.IsTeams() {
		if a.Player < 0 || a.Player >= c.PlayersPerTeam {
			return fmt.Errorf("%w: decklists belong to a player in teams mode", ErrInvalidAddress)
		}
		return nil
	}
	if a.Player != NoPlayer {
		return fmt.Errorf("%w: %s has a player index in singles mode", ErrInvalidAddress, a.Key())
	}
	return nil
}

// DecklistOwners lists the decklist addresses of a slot in display order.
func (c Config) DecklistOwners(s Slot) []Address {
	if !c.IsTeams() {
		return []Address{s.Address()}
	}
	owners := make([]Address, c.PlayersPerTeam)
	for p := range owners {
		owners[p] = s.Player(p)
	}
	return owners
}
