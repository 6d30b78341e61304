package bracket

type Player struct {
	Name   string `json:"name"`
	Leader string `json:"leader"`
	Base   string `json:"base"`
}

func (p Player) IsEmpty() bool {
	return p.Name == "" && p.Leader == "" && p.Base == ""
}

// Participant is whatever occupies a slot. In singles mode Name/Leader/Base describe the player;
// in teams mode Name is the team name and Players holds one record per team member.
type Participant struct {
	Name    string   `json:"name"`
	Leader  string   `json:"leader,omitempty"`
	Base    string   `json:"base,omitempty"`
	Players []Player `json:"players,omitempty"`
}

func newParticipant(players int) Participant {
	if players == 0 {
		return Participant{}
	}
	return Participant{Players: make([]Player, players)}
}

func (p Participant) clone() Participant {
	if p.Players != nil {
		p.Players = append([]Player(nil), p.Players...)
	}
	return p
}

func (p Participant) IsEmpty() bool {
	if p.Name != "" || p.Leader != "" || p.Base != "" {
		return false
	}
	for _, pl := range p.Players {
		if !pl.IsEmpty() {
			return false
		}
	}
	return true
}

func (p Participant) get(player int, f Field) string {
	if player == NoPlayer {
		switch f {
		case FieldName:
			return p.Name
		case FieldLeader:
			return p.Leader
		case FieldBase:
			return p.Base
		}
		return ""
	}
	if player < 0 || player >= len(p.Players) {
		return ""
	}
	pl := p.Players[player]
	switch f {
	case FieldName:
		return pl.Name
	case FieldLeader:
		return pl.Leader
	case FieldBase:
		return pl.Base
	}
	return ""
}

// set assumes the address was validated against the config.
func (p *Participant) set(player int, f Field, value string) {
	if player == NoPlayer {
		switch f {
		case FieldName:
			p.Name = value
		case FieldLeader:
			p.Leader = value
		case FieldBase:
			p.Base = value
		}
		return
	}
	pl := &p.Players[player]
	switch f {
	case FieldName:
		pl.Name = value
	case FieldLeader:
		pl.Leader = value
	case FieldBase:
		pl.Base = value
	}
}

// DeckInfo is the "leader / base" summary shown next to a player.
func DeckInfo(leader, base string) string {
	switch {
	case leader != "" && base != "":
		return leader + " / " + base
	case leader != "":
		return leader
	default:
		return base
	}
}

// Entry is a participant together with the slot it occupies, as listed in shared brackets.
type Entry struct {
	Slot string `json:"slot"`
	Participant
}

// Entries lists every non-empty slot in round, match, side order.
func (s State) Entries() []Entry {
	var entries []Entry
	for _, m := range s.Config.Matches() {
		for side := 0; side < 2; side++ {
			slot := m.Slot(side)
			p := s.Participants[slot]
			if p.IsEmpty() {
				continue
			}
			entries = append(entries, Entry{Slot: slot.Key(), Participant: p.clone()})
		}
	}
	return entries
}

// ApplyEntries writes entries back into their slots. Entries whose slot does not exist in this
// topology are returned as dropped.
func (s State) ApplyEntries(entries []Entry) (State, []string) {
	next := s.clone()
	var dropped []string
	for _, e := range entries {
		a, err := ParseAddress(e.Slot)
		if err != nil || a.Player != NoPlayer || !s.Config.HasSlot(a.Slot) {
			dropped = append(dropped, "teams."+e.Slot)
			continue
		}
		p := newParticipant(s.Config.Players())
		p.Name = e.Name
		if s.Config.IsTeams() {
			copy(p.Players, e.Players)
		} else {
			p.Leader, p.Base = e.Leader, e.Base
		}
		next.Participants[a.Slot] = p
	}
	return next, dropped
}
