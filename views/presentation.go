package views

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/bracket-manager/internal/bracket"
	"github.com/AdamBeresnev/bracket-manager/internal/decklist"
	"github.com/a-h/templ"
)

// PresentationFileName is the name the presentation page is downloaded under.
func PresentationFileName(t time.Time) string {
	return "tournament_bracket_" + t.Format("2006-01-02") + ".html"
}

// presentationVars sets the custom properties the presentation stylesheets read.
func presentationVars(s bracket.DisplaySettings) templ.SafeCSS {
	var b strings.Builder
	prop := func(name, value string) {
		fmt.Fprintf(&b, "--%s:%s;", name, value)
	}
	prop("logo-size", px(s.LogoSize))
	prop("match-spacing", px(s.MatchSpacing))
	prop("round-gap", px(s.RoundGap))
	prop("wrapper-gap", px(max(15, s.RoundGap-20)))
	prop("team-name-size", px(s.TeamNameSize))
	prop("player-name-size", px(s.PlayerNameSize))
	prop("deck-info-size", px(s.DeckInfoSize))
	prop("match-opacity", num(s.MatchOpacity))
	prop("border-opacity", num(s.BorderOpacity))
	prop("match-width", px(max(200, s.MatchWidth-40)))
	prop("match-padding", px(s.MatchPadding))
	prop("center-padding", px(max(8, s.MatchPadding-1)))
	prop("corner-radius", px(s.CornerRadius))
	prop("team-radius", px(max(0, s.CornerRadius-4)))
	prop("player-radius", px(max(0, s.CornerRadius-6)))
	return templ.SafeCSS(b.String())
}

func viewable(ref string) bool {
	return decklist.GetViewerInfo(ref).Type != decklist.ViewerTypeNone
}

// openDecklist calls the modal script with the viewer URL and "pdf" or "image".
func openDecklist(ref string) templ.ComponentScript {
	viewer := decklist.GetViewerInfo(ref)
	kind := "image"
	if viewer.Type == decklist.ViewerTypePDF {
		kind = "pdf"
	}
	return templ.JSFuncCall("openDecklist", viewer.URL, kind)
}

func px(v int) string {
	return strconv.Itoa(v) + "px"
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
