package bracket

import (
	"errors"
	"fmt"
	"maps"
)

var ErrInvalidSide = errors.New("side must be 0 or 1")

// State is the whole bracket at one instant. It is treated as an immutable value: every
// operation below returns a new State and leaves the receiver untouched.
type State struct {
	Config       Config
	Participants map[Slot]Participant
	Winners      map[MatchID]int
	Decklists    map[Address]string
	Logo         string
	// Inputs holds input values that are not slot fields (titles and the like), kept verbatim
	// so exports round-trip.
	Inputs map[string]string
}

// New builds an empty state whose participant grid covers every slot of cfg.
func New(cfg Config) (State, error) {
	if err := cfg.Validate(); err != nil {
		return State{}, err
	}
	s := State{
		Config:       cfg,
		Participants: make(map[Slot]Participant, 2*(cfg.BracketSize-1)),
		Winners:      make(map[MatchID]int),
		Decklists:    make(map[Address]string),
		Inputs:       make(map[string]string),
	}
	for _, m := range cfg.Matches() {
		for side := 0; side < 2; side++ {
			s.Participants[m.Slot(side)] = newParticipant(cfg.Players())
		}
	}
	return s, nil
}

func MustNew(cfg Config) State {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func (s State) clone() State {
	next := s
	next.Participants = make(map[Slot]Participant, len(s.Participants))
	for k, p := range s.Participants {
		next.Participants[k] = p.clone()
	}
	next.Winners = maps.Clone(s.Winners)
	next.Decklists = maps.Clone(s.Decklists)
	next.Inputs = maps.Clone(s.Inputs)
	if next.Winners == nil {
		next.Winners = make(map[MatchID]int)
	}
	if next.Decklists == nil {
		next.Decklists = make(map[Address]string)
	}
	if next.Inputs == nil {
		next.Inputs = make(map[string]string)
	}
	return next
}

func (s State) Participant(slot Slot) Participant {
	return s.Participants[slot].clone()
}

func (s State) Value(a Address, f Field) string {
	return s.Participants[a.Slot].get(a.Player, f)
}

func (s State) Decklist(a Address) (string, bool) {
	ref, ok := s.Decklists[a]
	return ref, ok
}

func (s State) Winner(m MatchID) (int, bool) {
	side, ok := s.Winners[m]
	return side, ok
}

// HasData reports whether changing the configuration would throw anything away.
func (s State) HasData() bool {
	if len(s.Winners) > 0 || len(s.Decklists) > 0 {
		return true
	}
	for _, p := range s.Participants {
		if !p.IsEmpty() {
			return true
		}
	}
	return false
}

func (s State) SetField(a Address, f Field, value string) (State, error) {
	if err := s.Config.CheckField(a, f); err != nil {
		return s, err
	}
	next := s.clone()
	p := next.Participants[a.Slot]
	p.set(a.Player, f, value)
	next.Participants[a.Slot] = p
	return next, nil
}

// AttachDecklist records a decklist reference for a player. An empty ref detaches it.
func (s State) AttachDecklist(a Address, ref string) (State, error) {
	if err := s.Config.CheckDecklist(a); err != nil {
		return s, err
	}
	next := s.clone()
	if ref == "" {
		delete(next.Decklists, a)
	} else {
		next.Decklists[a] = ref
	}
	return next, nil
}

// SetWinner marks side as the winner of match and advances it. Selecting the recorded winner
// again toggles the selection off instead.
func (s State) SetWinner(match MatchID, side int) (State, error) {
	if err := s.checkMatch(match, side); err != nil {
		return s, err
	}
	if current, ok := s.Winners[match]; ok && current == side {
		return s.ClearWinner(match)
	}
	next := s.clone()
	next.Winners[match] = side
	next.advance(match.Round, match.Match, side)
	return next, nil
}

// ClearWinner removes the ledger entry. Slots already advanced into keep their copied data.
func (s State) ClearWinner(match MatchID) (State, error) {
	if !s.Config.HasMatch(match) {
		return s, fmt.Errorf("%w: %s", ErrInvalidAddress, match)
	}
	next := s.clone()
	delete(next.Winners, match)
	return next, nil
}

// ClearResults drops every winner selection but keeps participants and decklists.
func (s State) ClearResults() State {
	next := s.clone()
	next.Winners = make(map[MatchID]int)
	return next
}

func (s State) SetLogo(ref string) State {
	next := s.clone()
	next.Logo = ref
	return next
}

// Reset returns an empty bracket with the same configuration.
func (s State) Reset() State {
	return MustNew(s.Config)
}

// Reconfigure switches to cfg. Winners and decklists are cleared; participant text survives only
// where its address still exists in the new topology.
func (s State) Reconfigure(cfg Config) (State, error) {
	if err := cfg.Validate(); err != nil {
		return s, err
	}
	if s.Config.Equal(cfg) {
		return s, nil
	}
	next := MustNew(cfg)
	next.Logo = s.Logo
	next.Inputs = maps.Clone(s.Inputs)
	if next.Inputs == nil {
		next.Inputs = make(map[string]string)
	}
	for slot, old := range s.Participants {
		p, ok := next.Participants[slot]
		if !ok {
			continue
		}
		p.Name = old.Name
		if !cfg.IsTeams() && !s.Config.IsTeams() {
			p.Leader, p.Base = old.Leader, old.Base
		}
		copy(p.Players, old.Players)
		next.Participants[slot] = p
	}
	return next, nil
}

func (s State) checkMatch(match MatchID, side int) error {
	if !s.Config.HasMatch(match) {
		return fmt.Errorf("%w: %s outside %d bracket", ErrInvalidAddress, match, s.Config.BracketSize)
	}
	if side != 0 && side != 1 {
		return fmt.Errorf("%w: %d", ErrInvalidSide, side)
	}
	return nil
}
