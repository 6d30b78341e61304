package bracket

const DefaultTitle = "Tournament Bracket"

// DisplaySettings tune the presentation page. Zero values mean "use the default for this size".
type DisplaySettings struct {
	TournamentTitle string  `json:"tournamentTitle,omitempty"`
	LogoSize        int     `json:"logoSize,omitempty"`
	MatchSpacing    int     `json:"matchSpacing,omitempty"`
	RoundGap        int     `json:"roundGap,omitempty"`
	TeamNameSize    int     `json:"teamNameSize,omitempty"`
	PlayerNameSize  int     `json:"playerNameSize,omitempty"`
	DeckInfoSize    int     `json:"deckInfoSize,omitempty"`
	MatchOpacity    float64 `json:"matchOpacity,omitempty"`
	BorderOpacity   float64 `json:"borderOpacity,omitempty"`
	MatchWidth      int     `json:"matchWidth,omitempty"`
	MatchPadding    int     `json:"matchPadding,omitempty"`
	CornerRadius    int     `json:"cornerRadius,omitempty"`
}

// DefaultSettings are the values for brackets of up to 8 entries. Resolve adjusts them for 16.
func DefaultSettings() DisplaySettings {
	return DisplaySettings{
		TournamentTitle: DefaultTitle,
		LogoSize:        100,
		MatchSpacing:    20,
		RoundGap:        40,
		TeamNameSize:    16,
		PlayerNameSize:  13,
		DeckInfoSize:    11,
		MatchOpacity:    0.85,
		BorderOpacity:   0.4,
		MatchWidth:      260,
		MatchPadding:    12,
		CornerRadius:    10,
	}
}

// Resolve fills unset values. The 16 bracket is denser, so it gets its own spacing defaults.
func (d DisplaySettings) Resolve(bracketSize int) DisplaySettings {
	def := DefaultSettings()
	if bracketSize == 16 {
		def.LogoSize = 80
		def.MatchSpacing = 12
		def.RoundGap = 12
		def.MatchPadding = 10
	}

	out := d
	orString(&out.TournamentTitle, def.TournamentTitle)
	orInt(&out.LogoSize, def.LogoSize)
	orInt(&out.MatchSpacing, def.MatchSpacing)
	orInt(&out.RoundGap, def.RoundGap)
	orInt(&out.TeamNameSize, def.TeamNameSize)
	orInt(&out.PlayerNameSize, def.PlayerNameSize)
	orInt(&out.DeckInfoSize, def.DeckInfoSize)
	orFloat(&out.MatchOpacity, def.MatchOpacity)
	orFloat(&out.BorderOpacity, def.BorderOpacity)
	orInt(&out.MatchWidth, def.MatchWidth)
	orInt(&out.MatchPadding, def.MatchPadding)
	orInt(&out.CornerRadius, def.CornerRadius)
	return out
}

func orString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func orInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func orFloat(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}
