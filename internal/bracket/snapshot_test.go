package bracket

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// populated fills every field of a teams bracket with generated data and plays round one.
func populated(t *testing.T, seed uint64) State {
	t.Helper()
	faker := gofakeit.New(seed)

	s := MustNew(Config{Mode: ModeTeams, PlayersPerTeam: 2, BracketSize: 8})
	for m := 0; m < 4; m++ {
		for side := 0; side < 2; side++ {
			slot := Slot{Round: 0, Match: m, Side: side}
			s = set(t, s, FieldKey(slot.Address(), FieldName), faker.Company())
			for p := 0; p < 2; p++ {
				a := slot.Player(p)
				s = set(t, s, FieldKey(a, FieldName), faker.Name())
				s = set(t, s, FieldKey(a, FieldLeader), faker.FirstName())
				s = set(t, s, FieldKey(a, FieldBase), faker.City())
				var err error
				s, err = s.AttachDecklist(a, fmt.Sprintf("%d_%s.pdf", m, faker.LetterN(6)))
				require.NoError(t, err)
			}
		}
		var err error
		s, err = s.SetWinner(MatchID{Round: 0, Match: m}, faker.Number(0, 1))
		require.NoError(t, err)
	}
	s = s.SetLogo("data:image/png;base64,AAAA")
	s.Inputs["tournamentTitle"] = faker.Word()
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	original := populated(t, 42)

	exported := ToSnapshot(original)
	exported.ExportDate = "2025-01-01T00:00:00Z"
	data, err := exported.Encode()
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	restored, dropped, err := FromSnapshot(decoded, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, dropped)

	if diff := cmp.Diff(original, restored); diff != "" {
		t.Errorf("state changed across export/import (-want +got):\n%s", diff)
	}

	again := ToSnapshot(restored)
	exported.ExportDate = ""
	if diff := cmp.Diff(exported, again); diff != "" {
		t.Errorf("re-export differs (-want +got):\n%s", diff)
	}
}

func TestToSnapshotWritesEmptyFields(t *testing.T) {
	snap := ToSnapshot(MustNew(Config{Mode: ModeSingles, BracketSize: 4}))

	// 6 slots with name, leader and base each
	assert.Len(t, snap.Inputs, 18)
	value, ok := snap.Inputs["r1m0t1-base"]
	assert.True(t, ok)
	assert.Empty(t, value)
	assert.Nil(t, snap.LogoData)
	assert.Equal(t, ModeSingles, snap.Config.Mode)
}

func TestFromSnapshotDropsOutOfTopologyKeys(t *testing.T) {
	doc := `{
		"config": {"type": "singles", "playersPerTeam": 3, "bracketSize": 4},
		"winners": {"r0m0": 1, "r2m0": 0, "r0m1": 4},
		"decklists": {"r0m0t1": {"filename": "deck.png", "type": "image/png"}, "r0m0t1p0": "x.pdf"},
		"logoData": null,
		"inputs": {"r0m0t1-name": "Finn", "r3m0t0-name": "Ghost", "r0m0t0p0-name": "Nope", "notes": "hello"}
	}`

	snap, err := DecodeSnapshot([]byte(doc))
	require.NoError(t, err)
	s, dropped, err := FromSnapshot(snap, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"decklists.r0m0t1p0",
		"inputs.r0m0t0p0-name",
		"inputs.r3m0t0-name",
		"winners.r0m1",
		"winners.r2m0",
	}, dropped)
	assert.Equal(t, "Finn", s.Participant(Slot{Round: 0, Match: 0, Side: 1}).Name)
	assert.Equal(t, map[MatchID]int{{Round: 0, Match: 0}: 1}, s.Winners)
	ref, _ := s.Decklist(Slot{Round: 0, Match: 0, Side: 1}.Address())
	assert.Equal(t, "deck.png", ref)
	assert.Equal(t, "hello", s.Inputs["notes"])
}

func TestFromSnapshotUsesFallbackConfig(t *testing.T) {
	fallback := Config{Mode: ModeSingles, BracketSize: 16}
	s, _, err := FromSnapshot(Snapshot{Inputs: map[string]string{"r3m0t0-name": "Champion"}}, fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, s.Config)
	assert.Equal(t, "Champion", s.Participant(Slot{Round: 3, Match: 0, Side: 0}).Name)

	bad := Config{Mode: ModeSingles, BracketSize: 12}
	_, _, err = FromSnapshot(Snapshot{Config: &bad}, fallback)
	assert.ErrorIs(t, err, ErrInvalidBracketSize)
}

func TestDecodeSnapshotMalformed(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"inputs": [`))
	assert.ErrorIs(t, err, ErrMalformedSnapshot)

	_, err = DecodeSnapshot([]byte(`{"winners": {"r0m0": "left"}}`))
	assert.ErrorIs(t, err, ErrMalformedSnapshot)
}

func TestDecklistRefMarshalsAsString(t *testing.T) {
	data, err := json.Marshal(map[string]DecklistRef{"r0m0t0": "a.pdf"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"r0m0t0": "a.pdf"}`, string(data))
}

func TestDisplaySettingsResolve(t *testing.T) {
	assert.Equal(t, DefaultSettings(), DisplaySettings{}.Resolve(8))

	large := DisplaySettings{MatchWidth: 300}.Resolve(16)
	assert.Equal(t, 80, large.LogoSize)
	assert.Equal(t, 12, large.MatchSpacing)
	assert.Equal(t, 12, large.RoundGap)
	assert.Equal(t, 10, large.MatchPadding)
	assert.Equal(t, 300, large.MatchWidth)
	assert.Equal(t, DefaultTitle, large.TournamentTitle)

	custom := DisplaySettings{LogoSize: 150, TournamentTitle: "Galactic Open"}.Resolve(16)
	assert.Equal(t, 150, custom.LogoSize)
	assert.Equal(t, "Galactic Open", custom.TournamentTitle)
}
