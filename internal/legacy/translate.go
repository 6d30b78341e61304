// Package legacy reads exports from the first version of the editor, which only supported an
// 8-team bracket and named its matches qf1..qf4, sf1, sf2 and final.
package legacy

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/AdamBeresnev/bracket-manager/internal/bracket"
	"github.com/AdamBeresnev/bracket-manager/internal/utils"
)

var matchMap = map[string]bracket.MatchID{
	"qf1":   {Round: 0, Match: 0},
	"qf2":   {Round: 0, Match: 1},
	"qf3":   {Round: 0, Match: 2},
	"qf4":   {Round: 0, Match: 3},
	"sf1":   {Round: 1, Match: 0},
	"sf2":   {Round: 1, Match: 1},
	"final": {Round: 2, Match: 0},
}

var (
	// qf1-t2-p3-leader, sf1-t1-name
	inputKeyPattern = regexp.MustCompile(`^(qf[1-4]|sf[12]|final)-t([12])(?:-p([1-9]))?-(name|leader|base)$`)
	// qf1-t2-p3, final-t1
	ownerKeyPattern = regexp.MustCompile(`^(qf[1-4]|sf[12]|final)-t([12])(?:-p([1-9]))?$`)
)

// Result is a translated document plus every key that could not be carried over.
type Result struct {
	Snapshot bracket.Snapshot
	Dropped  []string
}

// IsLegacy reports whether any input uses the old match naming.
func IsLegacy(snap bracket.Snapshot) bool {
	for key := range snap.Inputs {
		if strings.HasPrefix(key, "qf") || strings.HasPrefix(key, "sf") || strings.HasPrefix(key, "final") {
			return true
		}
	}
	return false
}

// DetectConfig guesses the configuration of a legacy export without one. Legacy files were always
// team brackets of eight; the only thing that varied was two or three players per team.
func DetectConfig(snap bracket.Snapshot) bracket.Config {
	ppt := 2
	for key := range snap.Inputs {
		if strings.Contains(key, "-p3-") {
			ppt = 3
			break
		}
	}
	return bracket.Config{Mode: bracket.ModeTeams, PlayersPerTeam: ppt, BracketSize: 8}
}

// Translate rewrites winners, decklists and inputs into the round/match addressing. Keys with no
// equivalent (champ-name, free-form inputs) are dropped and listed in the result.
func Translate(snap bracket.Snapshot) Result {
	out := bracket.Snapshot{
		Config:         snap.Config,
		Winners:        make(map[string]int),
		Decklists:      make(map[string]bracket.DecklistRef),
		LogoData:       snap.LogoData,
		Inputs:         make(map[string]string),
		Timestamp:      snap.Timestamp,
		ExportDate:     snap.ExportDate,
		TournamentName: snap.TournamentName,
	}
	if out.Config == nil {
		out.Config = utils.Ptr(DetectConfig(snap))
	}

	var dropped []string
	for key, side := range snap.Winners {
		id, ok := matchMap[key]
		if !ok {
			dropped = append(dropped, "winners."+key)
			continue
		}
		out.Winners[id.String()] = side
	}

	for key, ref := range snap.Decklists {
		parts := ownerKeyPattern.FindStringSubmatch(key)
		if parts == nil {
			dropped = append(dropped, "decklists."+key)
			continue
		}
		out.Decklists[address(parts[1], parts[2], parts[3]).Key()] = ref
	}

	for key, value := range snap.Inputs {
		parts := inputKeyPattern.FindStringSubmatch(key)
		if parts == nil {
			dropped = append(dropped, "inputs."+key)
			continue
		}
		a := address(parts[1], parts[2], parts[3])
		out.Inputs[bracket.FieldKey(a, bracket.Field(parts[4]))] = value
	}

	sort.Strings(dropped)
	return Result{Snapshot: out, Dropped: dropped}
}

// address converts one-based legacy side and player numbers to zero-based indices.
func address(match, side, player string) bracket.Address {
	id := matchMap[match]
	s, _ := strconv.Atoi(side)
	a := id.Slot(s - 1).Address()
	if player != "" {
		p, _ := strconv.Atoi(player)
		a.Player = p - 1
	}
	return a
}
