package views

import (
	"fmt"

	"github.com/AdamBeresnev/bracket-manager/internal/bracket"
)

const (
	StatusInfo    = "info"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Status is the one-line message above the grid. An empty message renders an empty placeholder
// so htmx always has a #status element to swap.
type Status struct {
	Message string
	Kind    string
	Link    string
}

func (s Status) kind() string {
	if s.Kind == "" {
		return StatusInfo
	}
	return s.Kind
}

type EditorPageData struct {
	Bracket  BracketData
	Settings bracket.DisplaySettings
	Status   Status
}

var bracketSizes = []int{4, 8, 16}

func playersPerTeam(cfg bracket.Config) int {
	if cfg.PlayersPerTeam == 0 {
		return bracket.DefaultConfig().PlayersPerTeam
	}
	return cfg.PlayersPerTeam
}

type settingsField struct {
	Name  string
	Label string
	Value string
	Step  string
}

func settingsFields(s bracket.DisplaySettings) []settingsField {
	whole := func(name, label string, v int) settingsField {
		return settingsField{Name: name, Label: label, Value: fmt.Sprint(v), Step: "1"}
	}
	return []settingsField{
		whole("logoSize", "Logo size", s.LogoSize),
		whole("matchSpacing", "Match spacing", s.MatchSpacing),
		whole("roundGap", "Round gap", s.RoundGap),
		whole("teamNameSize", "Team name size", s.TeamNameSize),
		whole("playerNameSize", "Player name size", s.PlayerNameSize),
		whole("deckInfoSize", "Deck info size", s.DeckInfoSize),
		{Name: "matchOpacity", Label: "Match opacity", Value: num(s.MatchOpacity), Step: "0.05"},
		{Name: "borderOpacity", Label: "Border opacity", Value: num(s.BorderOpacity), Step: "0.05"},
		whole("matchWidth", "Match width", s.MatchWidth),
		whole("matchPadding", "Match padding", s.MatchPadding),
		whole("cornerRadius", "Corner radius", s.CornerRadius),
	}
}

func reconfigureWarning(cfg bracket.Config) string {
	return fmt.Sprintf("Switching to a %d %s bracket clears all winners and decklists.", cfg.BracketSize, cfg.Mode)
}

func fieldVals(key string) string {
	return fmt.Sprintf(`{"key":%q}`, key)
}

func winnerVals(match string, side int) string {
	return fmt.Sprintf(`{"match":%q,"side":"%d"}`, match, side)
}

func decklistLabel(ref string) string {
	if ref != "" {
		return "✓ " + ref
	}
	return "📎 Decklist"
}
