package bracket

// Advance copies the winning slot of (round, match) into its place in the next round and returns
// the resulting state. The finals winner has nowhere to go, so the state comes back unchanged.
func (s State) Advance(round, match, side int) (State, error) {
	id := MatchID{Round: round, Match: match}
	if err := s.checkMatch(id, side); err != nil {
		return s, err
	}
	if round >= s.Config.TotalRounds()-1 {
		return s, nil
	}
	next := s.clone()
	next.advance(round, match, side)
	return next, nil
}

// advance mutates s in place; callers must own s (i.e. have cloned it).
//
// Values are copied as they are right now. Later edits to the source slot are not mirrored, but
// re-confirming the same winner copies again.
func (s *State) advance(round, match, side int) {
	if round >= s.Config.TotalRounds()-1 {
		return
	}
	source := Slot{Round: round, Match: match, Side: side}
	target := NextSlot(round, match)

	from := s.Participants[source]
	to := s.Participants[target]

	if s.Config.IsTeams() {
		to.Name = from.Name
		for p := 0; p < s.Config.PlayersPerTeam; p++ {
			if p < len(from.Players) && p < len(to.Players) {
				to.Players[p] = from.Players[p]
			}
			s.copyDecklist(source.Player(p), target.Player(p))
		}
	} else {
		to.Name, to.Leader, to.Base = from.Name, from.Leader, from.Base
		s.copyDecklist(source.Address(), target.Address())
	}

	s.Participants[target] = to
}

// copyDecklist only overwrites when the source actually has a decklist.
func (s *State) copyDecklist(from, to Address) {
	if ref, ok := s.Decklists[from]; ok && ref != "" {
		s.Decklists[to] = ref
	}
}
