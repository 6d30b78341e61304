package views

import (
	"fmt"

	"github.com/AdamBeresnev/bracket-manager/internal/bracket"
)

type PlayerView struct {
	Key      string
	Index    int
	Name     string
	Leader   string
	Base     string
	Decklist string
}

// DeckInfo is "leader / base", or whichever of the two is set.
func (p PlayerView) DeckInfo() string {
	return bracket.DeckInfo(p.Leader, p.Base)
}

// Line is the presentation text for a player: the name, then " • " and the deck info when set.
func (p PlayerView) Line() string {
	if info := p.DeckInfo(); info != "" {
		return p.Name + " • " + info
	}
	return p.Name
}

// Visible reports whether the presentation shows a line for this player.
func (p PlayerView) Visible() bool {
	return p.Name != "" || p.Leader != "" || p.Base != ""
}

// SideView is one slot of a match. Key is the slot id (r0m0t1); in singles mode it is also the
// address of the decklist.
type SideView struct {
	Key      string
	Side     int
	Name     string
	Leader   string
	Base     string
	Decklist string
	Players  []PlayerView
	Winner   bool
}

func (s SideView) DeckInfo() string {
	return bracket.DeckInfo(s.Leader, s.Base)
}

type MatchView struct {
	ID      string
	Round   int
	Match   int
	Sides   [2]SideView
	Decided bool
}

type RoundView struct {
	Index   int
	Name    string
	Matches []MatchView
}

// BracketData is the state laid out round by round in display order.
type BracketData struct {
	Config bracket.Config
	Rounds []RoundView
	Logo   string
}

func PrepareBracketData(s bracket.State) BracketData {
	cfg := s.Config
	data := BracketData{Config: cfg, Logo: s.Logo}

	for r := 0; r < cfg.TotalRounds(); r++ {
		round := RoundView{Index: r, Name: cfg.RoundName(r)}
		for m := 0; m < cfg.MatchesInRound(r); m++ {
			round.Matches = append(round.Matches, prepareMatch(s, bracket.MatchID{Round: r, Match: m}))
		}
		data.Rounds = append(data.Rounds, round)
	}
	return data
}

func prepareMatch(s bracket.State, id bracket.MatchID) MatchView {
	mv := MatchView{ID: id.String(), Round: id.Round, Match: id.Match}
	winner, decided := s.Winner(id)
	mv.Decided = decided

	for side := 0; side < 2; side++ {
		slot := id.Slot(side)
		p := s.Participant(slot)
		sv := SideView{
			Key:    slot.Key(),
			Side:   side,
			Name:   p.Name,
			Leader: p.Leader,
			Base:   p.Base,
			Winner: decided && winner == side,
		}
		owners := s.Config.DecklistOwners(slot)
		if !s.Config.IsTeams() {
			sv.Decklist, _ = s.Decklist(owners[0])
			mv.Sides[side] = sv
			continue
		}
		for i, a := range owners {
			var pl bracket.Player
			if i < len(p.Players) {
				pl = p.Players[i]
			}
			ref, _ := s.Decklist(a)
			sv.Players = append(sv.Players, PlayerView{
				Key:      a.Key(),
				Index:    i,
				Name:     pl.Name,
				Leader:   pl.Leader,
				Base:     pl.Base,
				Decklist: ref,
			})
		}
		mv.Sides[side] = sv
	}
	return mv
}

// Match returns one match by position. Out of range positions give an empty view.
func (d BracketData) Match(round, match int) MatchView {
	if round < 0 || round >= len(d.Rounds) {
		return MatchView{}
	}
	matches := d.Rounds[round].Matches
	if match < 0 || match >= len(matches) {
		return MatchView{}
	}
	return matches[match]
}

// IsGrid reports whether the presentation uses the 16 entrant grid layout.
func (d BracketData) IsGrid() bool {
	return d.Config.BracketSize == 16
}

// RoundName is the name of a round, or empty when the round does not exist.
func (d BracketData) RoundName(round int) string {
	if round < 0 || round >= len(d.Rounds) {
		return ""
	}
	return d.Rounds[round].Name
}

// Wing holds one half of every round before the finals, one column per round. The left wing
// runs from round one inwards with the first half of each round; the right wing runs from the
// semi finals outwards with the second half.
func (d BracketData) Wing(right bool) [][]MatchView {
	var columns [][]MatchView
	for round := 0; round < len(d.Rounds)-1; round++ {
		matches := d.Rounds[round].Matches
		half := len(matches) / 2
		if right {
			columns = append([][]MatchView{matches[half:]}, columns...)
		} else {
			columns = append(columns, matches[:half])
		}
	}
	return columns
}

// Final is the last match of the bracket.
func (d BracketData) Final() MatchView {
	return d.Match(len(d.Rounds)-1, 0)
}

// SideLabel is "Team 1" or "Player 2", used for placeholders and unnamed slots.
func (d BracketData) SideLabel(side int) string {
	if d.Config.IsTeams() {
		return fmt.Sprintf("Team %d", side+1)
	}
	return fmt.Sprintf("Player %d", side+1)
}

// DisplayName falls back to the side label when a slot has no name yet.
func (d BracketData) DisplayName(s SideView) string {
	if s.Name != "" {
		return s.Name
	}
	return d.SideLabel(s.Side)
}

// Subtitle is "Teams • 8 Teams" or "Individual • 16 Players".
func (d BracketData) Subtitle() string {
	if d.Config.IsTeams() {
		return fmt.Sprintf("Teams • %d Teams", d.Config.BracketSize)
	}
	return fmt.Sprintf("Individual • %d Players", d.Config.BracketSize)
}
