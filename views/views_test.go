package views

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/AdamBeresnev/bracket-manager/internal/bracket"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func set(t *testing.T, s bracket.State, key, value string) bracket.State {
	t.Helper()
	a, f, err := bracket.ParseFieldKey(key)
	require.NoError(t, err)
	next, err := s.SetField(a, f, value)
	require.NoError(t, err)
	return next
}

func TestPrepareBracketData(t *testing.T) {
	s := bracket.MustNew(bracket.Config{Mode: bracket.ModeTeams, PlayersPerTeam: 2, BracketSize: 8})
	s = set(t, s, "r0m1t1-name", "Rebels")
	s = set(t, s, "r0m1t1p1-leader", "Leia")
	s, err := s.AttachDecklist(bracket.Slot{Round: 0, Match: 1, Side: 1}.Player(1), "leia.pdf")
	require.NoError(t, err)
	s, err = s.SetWinner(bracket.MatchID{Round: 0, Match: 1}, 1)
	require.NoError(t, err)

	data := PrepareBracketData(s)
	require.Len(t, data.Rounds, 3)
	assert.Equal(t, "Quarter Finals", data.Rounds[0].Name)
	assert.Len(t, data.Rounds[0].Matches, 4)
	assert.Equal(t, "Finals", data.Rounds[2].Name)

	match := data.Match(0, 1)
	assert.Equal(t, "r0m1", match.ID)
	assert.True(t, match.Decided)
	assert.False(t, match.Sides[0].Winner)
	assert.True(t, match.Sides[1].Winner)
	assert.Equal(t, "r0m1t1p1", match.Sides[1].Players[1].Key)
	assert.Equal(t, "leia.pdf", match.Sides[1].Players[1].Decklist)

	advanced := data.Match(1, 0).Sides[1]
	assert.Equal(t, "Rebels", advanced.Name)
	assert.Equal(t, "leia.pdf", advanced.Players[1].Decklist)

	assert.Equal(t, MatchView{}, data.Match(5, 0))
	assert.Equal(t, "Team 2", data.DisplayName(data.Match(0, 0).Sides[1]))
	assert.Equal(t, "Teams • 8 Teams", data.Subtitle())
}

func TestBracketGrid(t *testing.T) {
	s := bracket.MustNew(bracket.Config{Mode: bracket.ModeSingles, BracketSize: 4})
	s = set(t, s, "r0m0t0-name", `Anakin <"Ani">`)
	s, err := s.SetWinner(bracket.MatchID{Round: 0, Match: 0}, 0)
	require.NoError(t, err)

	html := render(t, BracketGrid(PrepareBracketData(s), Status{Message: "saved", Kind: StatusWarning}))

	assert.True(t, strings.HasPrefix(html, `<div id="bracket-grid">`))
	assert.Contains(t, html, `<div id="status" class="status status-warning">saved</div>`)
	assert.Contains(t, html, `<div class="section-title">Semi Finals</div>`)
	assert.Contains(t, html, `id="r0m1t1-leader"`)
	assert.Contains(t, html, `id="r1m0t0-name" value="Anakin &lt;&#34;Ani&#34;&gt;"`)
	assert.NotContains(t, html, `<"Ani">`)
	assert.Equal(t, 1, strings.Count(html, `class="winner-btn selected"`))
	assert.Equal(t, 6, strings.Count(html, `class="winner-btn`))
	assert.Contains(t, html, `Player 2 Wins`)
	assert.Contains(t, html, `hx-post="/bracket/decklist"`)
}

func TestBracketGridTeams(t *testing.T) {
	s := bracket.MustNew(bracket.Config{Mode: bracket.ModeTeams, PlayersPerTeam: 3, BracketSize: 4})
	s, err := s.AttachDecklist(bracket.Slot{}.Player(2), "deck.png")
	require.NoError(t, err)

	html := render(t, BracketGrid(PrepareBracketData(s), Status{}))
	assert.Contains(t, html, `<div id="status" class="status"></div>`)
	assert.Contains(t, html, `id="r0m0t0p2-base"`)
	assert.Contains(t, html, `<div class="player-label">Player 3</div>`)
	assert.Contains(t, html, `class="upload-btn has-file" for="r0m0t0p2-file">✓ deck.png`)
	assert.Contains(t, html, `Team 1 Wins`)
}

func TestStatusMessage(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   []string
		absent []string
	}{
		{
			name:   "empty placeholder",
			status: Status{},
			want:   []string{`<div id="status" class="status"></div>`},
			absent: []string{"<a "},
		},
		{
			name:   "kind defaults to info",
			status: Status{Message: "Saved"},
			want:   []string{`<div id="status" class="status status-info">Saved`},
		},
		{
			name:   "error kind",
			status: Status{Message: "Import failed", Kind: StatusError},
			want:   []string{`class="status status-error">Import failed`},
		},
		{
			name:   "share link",
			status: Status{Message: "Share link:", Link: "https://x.example/tools/bracket-manager?id=bracket_1_ab"},
			want: []string{
				`class="status status-info">Share link:`,
				`<a target="_blank" href="https://x.example/tools/bracket-manager?id=bracket_1_ab">`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := render(t, StatusMessage(tt.status))
			for _, want := range tt.want {
				assert.Contains(t, html, want)
			}
			for _, absent := range tt.absent {
				assert.NotContains(t, html, absent)
			}
		})
	}
}

func TestBracketDataLayout(t *testing.T) {
	ids := func(columns [][]MatchView) [][]string {
		out := make([][]string, len(columns))
		for i, col := range columns {
			for _, m := range col {
				out[i] = append(out[i], m.ID)
			}
		}
		return out
	}

	tests := []struct {
		size  int
		left  [][]string
		right [][]string
		final string
		grid  bool
	}{
		{size: 4, left: [][]string{{"r0m0"}}, right: [][]string{{"r0m1"}}, final: "r1m0"},
		{
			size:  8,
			left:  [][]string{{"r0m0", "r0m1"}, {"r1m0"}},
			right: [][]string{{"r1m1"}, {"r0m2", "r0m3"}},
			final: "r2m0",
		},
		{
			size:  16,
			left:  [][]string{{"r0m0", "r0m1", "r0m2", "r0m3"}, {"r1m0", "r1m1"}, {"r2m0"}},
			right: [][]string{{"r2m1"}, {"r1m2", "r1m3"}, {"r0m4", "r0m5", "r0m6", "r0m7"}},
			final: "r3m0",
			grid:  true,
		},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d entrants", tt.size), func(t *testing.T) {
			data := PrepareBracketData(bracket.MustNew(bracket.Config{Mode: bracket.ModeSingles, BracketSize: tt.size}))
			assert.Equal(t, tt.left, ids(data.Wing(false)))
			assert.Equal(t, tt.right, ids(data.Wing(true)))
			assert.Equal(t, tt.final, data.Final().ID)
			assert.Equal(t, tt.grid, data.IsGrid())
			assert.Equal(t, "Finals", data.RoundName(len(data.Rounds)-1))
			assert.Empty(t, data.RoundName(len(data.Rounds)))
			assert.Empty(t, data.RoundName(-1))
		})
	}
}

func TestPlayerLine(t *testing.T) {
	tests := []struct {
		name    string
		player  PlayerView
		line    string
		visible bool
	}{
		{name: "empty", player: PlayerView{}, line: "", visible: false},
		{name: "name only", player: PlayerView{Name: "Luke"}, line: "Luke", visible: true},
		{name: "deck only", player: PlayerView{Base: "Hoth"}, line: " • Hoth", visible: true},
		{
			name:    "name and deck",
			player:  PlayerView{Name: "Luke", Leader: "Luke Skywalker", Base: "Yavin 4"},
			line:    "Luke • Luke Skywalker / Yavin 4",
			visible: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.line, tt.player.Line())
			assert.Equal(t, tt.visible, tt.player.Visible())
		})
	}
}

func TestEditorPage(t *testing.T) {
	s := bracket.MustNew(bracket.Config{Mode: bracket.ModeSingles, BracketSize: 16})
	html := render(t, EditorPage(EditorPageData{
		Bracket:  PrepareBracketData(s),
		Settings: bracket.DisplaySettings{}.Resolve(16),
	}))

	assert.Contains(t, html, `<option value="singles" selected>Singles</option>`)
	assert.Contains(t, html, `<option value="16" selected>16</option>`)
	assert.Contains(t, html, `name="logoSize" step="1" value="80"`)
	assert.Contains(t, html, `name="matchOpacity" step="0.05" value="0.85"`)
	assert.Contains(t, html, `<div class="section-title">Round 1</div>`)
}

func TestConfirmReconfigure(t *testing.T) {
	html := render(t, ConfirmReconfigure(bracket.Config{Mode: bracket.ModeTeams, PlayersPerTeam: 2, BracketSize: 4}))
	assert.Contains(t, html, `id="status"`)
	assert.Contains(t, html, `name="confirmed" value="true"`)
	assert.Contains(t, html, `name="bracketSize" value="4"`)
}

func TestPresentationTraditional(t *testing.T) {
	s := bracket.MustNew(bracket.Config{Mode: bracket.ModeTeams, PlayersPerTeam: 2, BracketSize: 8})
	s = set(t, s, "r0m0t0-name", "Rebels")
	s = set(t, s, "r0m0t0p0-name", "Luke")
	s = set(t, s, "r0m0t0p0-leader", "Luke Skywalker")
	s = set(t, s, "r0m0t0p0-base", "Yavin 4")
	s = set(t, s, "r0m0t0p1-base", "Hoth")
	s, err := s.AttachDecklist(bracket.Slot{}.Player(0), "luke's deck.pdf")
	require.NoError(t, err)
	s, err = s.SetWinner(bracket.MatchID{Round: 0, Match: 0}, 0)
	require.NoError(t, err)
	s = s.SetLogo("https://cdn.example.com/logos/logo.png")

	settings := bracket.DisplaySettings{TournamentTitle: "Yavin Open", CornerRadius: 12}.Resolve(8)
	html := render(t, Presentation(PrepareBracketData(s), settings))

	assert.Contains(t, html, `<title>Yavin Open - Tournament Bracket</title>`)
	assert.Contains(t, html, `class="bracket-wrapper"`)
	assert.NotContains(t, html, `class="bracket-center"`)
	assert.Contains(t, html, `--corner-radius:12px;--team-radius:8px;--player-radius:6px;`)
	assert.Contains(t, html, `<div class="subtitle">Teams • 8 Teams</div>`)
	assert.Contains(t, html, `<img alt="Logo" class="logo" src="https://cdn.example.com/logos/logo.png">`)
	assert.Contains(t, html, `Luke • Luke Skywalker / Yavin 4`)
	assert.Contains(t, html, `<span class="player-compact"> • Hoth</span>`)
	assert.Contains(t, html, `onclick="openDecklist(&#34;./decklists/luke&#39;s deck.pdf&#34;,&#34;pdf&#34;)"`)
	assert.Contains(t, html, `class="player has-decklist"`)
	assert.Contains(t, html, `<div class="team-name">Team 2</div>`)
	assert.Equal(t, 7, strings.Count(html, `<div class="match">`))

	// Left wing holds matches 0-1 of round one, the right wing runs semi finals first.
	left := html[strings.Index(html, `class="left-wing"`):strings.Index(html, `class="center-section"`)]
	assert.Contains(t, left, "Rebels")
	right := html[strings.Index(html, `class="right-wing"`):]
	assert.NotContains(t, right, "Luke Skywalker")
}

func TestPresentationDecklistURLs(t *testing.T) {
	s := bracket.MustNew(bracket.Config{Mode: bracket.ModeSingles, BracketSize: 4})
	s = set(t, s, "r0m0t1-leader", "Thrawn")
	var err error
	s, err = s.AttachDecklist(bracket.Slot{Side: 1}.Address(), "1741964966000_ab12cd34.pdf")
	require.NoError(t, err)
	s, err = s.AttachDecklist(bracket.Slot{Match: 1}.Address(), "https://files.example.com/decklists/x.png")
	require.NoError(t, err)

	html := render(t, Presentation(PrepareBracketData(s), bracket.DisplaySettings{}.Resolve(4)))

	assert.Contains(t, html, `onclick="openDecklist(&#34;./decklists/1741964966000_ab12cd34.pdf&#34;,&#34;pdf&#34;)"`)
	assert.Contains(t, html, `onclick="openDecklist(&#34;https://files.example.com/decklists/x.png&#34;,&#34;image&#34;)"`)
	assert.Contains(t, html, `<span class="player-compact deck-line">Thrawn</span>`)
	// A decklist without leader or base still gets a clickable line.
	assert.Contains(t, html, `<div class="team-name">Player 1</div><div class="player has-decklist"`)
	assert.Contains(t, html, `<title>Tournament Bracket - Tournament Bracket</title>`)
}

func TestPresentationGrid(t *testing.T) {
	s := bracket.MustNew(bracket.Config{Mode: bracket.ModeSingles, BracketSize: 16})
	s = set(t, s, "r0m0t0-name", "First")
	s = set(t, s, "r0m7t1-name", "Last")
	s = set(t, s, "r3m0t0-name", "Champion")

	html := render(t, Presentation(PrepareBracketData(s), bracket.DisplaySettings{}.Resolve(16)))

	assert.Contains(t, html, `class="bracket-container"`)
	assert.Contains(t, html, `--round-gap:12px;`)
	assert.Contains(t, html, `<div class="subtitle">Individual • 16 Players</div>`)
	assert.Contains(t, html, `⭐ Finals ⭐`)

	order := []string{"First", `class="title-section"`, `match qf-1`, `match qf-4`, `match sf-1`,
		`match sf-2`, `match qf-2`, "Champion", `match qf-3`, "Last"}
	pos := -1
	for _, marker := range order {
		next := strings.Index(html, marker)
		require.NotEqual(t, -1, next, marker)
		assert.Greater(t, next, pos, marker)
		pos = next
	}
	assert.Equal(t, 8, strings.Count(html, `<div class="round-label">Round 1</div>`))
	assert.Equal(t, 4, strings.Count(html, `<div class="round-label">Quarter Finals</div>`))
}

func TestPresentationIsDeterministic(t *testing.T) {
	s := bracket.MustNew(bracket.Config{Mode: bracket.ModeTeams, PlayersPerTeam: 3, BracketSize: 16})
	for _, key := range []string{"r0m0t0", "r0m3t1", "r0m5t0", "r1m2t1"} {
		s = set(t, s, key+"-name", key)
		s = set(t, s, key+"p1-leader", "leader "+key)
	}
	data := PrepareBracketData(s)
	settings := bracket.DisplaySettings{}.Resolve(16)

	first := render(t, Presentation(data, settings))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, render(t, Presentation(PrepareBracketData(s), settings)))
	}
}

func TestPresentationFileName(t *testing.T) {
	assert.Equal(t, "tournament_bracket_2025-03-14.html",
		PresentationFileName(time.Date(2025, time.March, 14, 23, 0, 0, 0, time.UTC)))
}
