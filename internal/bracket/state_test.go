package bracket

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(t *testing.T, s State, key, value string) State {
	t.Helper()
	a, f, err := ParseFieldKey(key)
	require.NoError(t, err)
	next, err := s.SetField(a, f, value)
	require.NoError(t, err)
	return next
}

func TestNewCoversEveryField(t *testing.T) {
	s := MustNew(Config{Mode: ModeTeams, PlayersPerTeam: 3, BracketSize: 8})

	assert.Len(t, s.Participants, 14)
	for _, p := range s.Participants {
		assert.Len(t, p.Players, 3)
	}
	assert.False(t, s.HasData())

	_, err := New(Config{Mode: ModeTeams, PlayersPerTeam: 3, BracketSize: 5})
	assert.ErrorIs(t, err, ErrInvalidBracketSize)
}

func TestSingleEliminationScenario(t *testing.T) {
	faker := gofakeit.New(7)
	alice, bob := faker.Name(), faker.Name()

	s := MustNew(Config{Mode: ModeSingles, BracketSize: 4})
	s = set(t, s, "r0m0t0-name", alice)
	s = set(t, s, "r0m0t0-leader", "Han Solo")
	s = set(t, s, "r0m0t0-base", "Echo Base")
	s = set(t, s, "r0m0t1-name", bob)

	s, err := s.SetWinner(MatchID{Round: 0, Match: 0}, 0)
	require.NoError(t, err)

	target := s.Participant(Slot{Round: 1, Match: 0, Side: 0})
	assert.Equal(t, alice, target.Name)
	assert.Equal(t, "Han Solo", target.Leader)
	assert.Equal(t, "Echo Base", target.Base)
	side, ok := s.Winner(MatchID{Round: 0, Match: 0})
	assert.True(t, ok)
	assert.Equal(t, 0, side)

	carol, dave := faker.Name(), faker.Name()
	s = set(t, s, "r0m1t0-name", carol)
	s = set(t, s, "r0m1t0-leader", "Leia Organa")
	s = set(t, s, "r0m1t0-base", "Tarkintown")
	s = set(t, s, "r0m1t1-name", dave)

	s, err = s.SetWinner(MatchID{Round: 0, Match: 1}, 0)
	require.NoError(t, err)

	lower := s.Participant(Slot{Round: 1, Match: 0, Side: 1})
	assert.Equal(t, carol, lower.Name)
	assert.Equal(t, "Leia Organa", lower.Leader)
	assert.Equal(t, "Tarkintown", lower.Base)
	assert.Equal(t, alice, s.Participant(Slot{Round: 1, Match: 0, Side: 0}).Name)

	t.Run("same side toggles off without rolling back", func(t *testing.T) {
		undone, err := s.SetWinner(MatchID{Round: 0, Match: 0}, 0)
		require.NoError(t, err)

		_, ok := undone.Winner(MatchID{Round: 0, Match: 0})
		assert.False(t, ok)
		assert.Equal(t, alice, undone.Participant(Slot{Round: 1, Match: 0, Side: 0}).Name)
	})

	t.Run("copy is by value", func(t *testing.T) {
		edited := set(t, s, "r0m0t0-name", "Alicia")
		assert.Equal(t, alice, edited.Participant(Slot{Round: 1, Match: 0, Side: 0}).Name)

		cleared, err := edited.ClearWinner(MatchID{Round: 0, Match: 0})
		require.NoError(t, err)
		again, err := cleared.SetWinner(MatchID{Round: 0, Match: 0}, 0)
		require.NoError(t, err)
		assert.Equal(t, "Alicia", again.Participant(Slot{Round: 1, Match: 0, Side: 0}).Name)
	})

	t.Run("other side overwrites", func(t *testing.T) {
		swapped, err := s.SetWinner(MatchID{Round: 0, Match: 0}, 1)
		require.NoError(t, err)
		target := swapped.Participant(Slot{Round: 1, Match: 0, Side: 0})
		assert.Equal(t, bob, target.Name)
		assert.Empty(t, target.Leader)
	})

	t.Run("finals only records the winner", func(t *testing.T) {
		done, err := s.SetWinner(MatchID{Round: 1, Match: 0}, 0)
		require.NoError(t, err)
		side, ok := done.Winner(MatchID{Round: 1, Match: 0})
		assert.True(t, ok)
		assert.Equal(t, 0, side)
		assert.Equal(t, s.Participants, done.Participants)
	})
}

func TestReducersDoNotMutateReceiver(t *testing.T) {
	s := MustNew(Config{Mode: ModeTeams, PlayersPerTeam: 2, BracketSize: 4})
	next := set(t, s, "r0m0t0p1-name", "Kim")

	assert.Empty(t, s.Value(Slot{0, 0, 0}.Player(1), FieldName))
	assert.Equal(t, "Kim", next.Value(Slot{0, 0, 0}.Player(1), FieldName))

	won, err := next.SetWinner(MatchID{Round: 0, Match: 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, next.Winners)
	assert.Empty(t, next.Value(Slot{1, 0, 0}.Player(1), FieldName))
	assert.Equal(t, "Kim", won.Value(Slot{1, 0, 0}.Player(1), FieldName))
}

func TestTeamsAdvanceCopiesPlayersAndDecklists(t *testing.T) {
	s := MustNew(Config{Mode: ModeTeams, PlayersPerTeam: 2, BracketSize: 4})
	s = set(t, s, "r0m1t1-name", "Rebels")
	s = set(t, s, "r0m1t1p0-name", "Luke")
	s = set(t, s, "r0m1t1p0-leader", "Luke Skywalker")
	s = set(t, s, "r0m1t1p1-name", "Leia")
	s = set(t, s, "r0m1t1p1-base", "Yavin 4")

	source := Slot{Round: 0, Match: 1, Side: 1}
	target := Slot{Round: 1, Match: 0, Side: 1}

	var err error
	s, err = s.AttachDecklist(source.Player(1), "leia.pdf")
	require.NoError(t, err)
	s, err = s.AttachDecklist(target.Player(0), "keep.png")
	require.NoError(t, err)
	s, err = s.AttachDecklist(target.Player(1), "old.png")
	require.NoError(t, err)

	s, err = s.SetWinner(MatchID{Round: 0, Match: 1}, 1)
	require.NoError(t, err)

	got := s.Participant(target)
	assert.Equal(t, "Rebels", got.Name)
	assert.Equal(t, []Player{
		{Name: "Luke", Leader: "Luke Skywalker"},
		{Name: "Leia", Base: "Yavin 4"},
	}, got.Players)

	ref, _ := s.Decklist(target.Player(1))
	assert.Equal(t, "leia.pdf", ref)
	ref, _ = s.Decklist(target.Player(0))
	assert.Equal(t, "keep.png", ref, "a missing source decklist leaves the target alone")
}

func TestAttachDecklistEmptyDetaches(t *testing.T) {
	s := MustNew(Config{Mode: ModeSingles, BracketSize: 4})
	a := Slot{Round: 0, Match: 0, Side: 1}.Address()

	s, err := s.AttachDecklist(a, "deck.png")
	require.NoError(t, err)
	s, err = s.AttachDecklist(a, "")
	require.NoError(t, err)

	_, ok := s.Decklist(a)
	assert.False(t, ok)
}

func TestInvalidOperations(t *testing.T) {
	s := MustNew(Config{Mode: ModeSingles, BracketSize: 4})

	_, err := s.SetWinner(MatchID{Round: 2, Match: 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = s.SetWinner(MatchID{Round: 0, Match: 0}, 2)
	assert.ErrorIs(t, err, ErrInvalidSide)

	_, err = s.ClearWinner(MatchID{Round: 0, Match: 5})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = s.SetField(Slot{0, 0, 0}.Player(0), FieldName, "x")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = s.Advance(0, 0, 3)
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestClearResultsAndReset(t *testing.T) {
	s := MustNew(Config{Mode: ModeSingles, BracketSize: 4})
	s = set(t, s, "r0m1t0-name", "Rey")
	s, err := s.SetWinner(MatchID{Round: 0, Match: 1}, 0)
	require.NoError(t, err)
	s = s.SetLogo("logo.png")

	cleared := s.ClearResults()
	assert.Empty(t, cleared.Winners)
	assert.Equal(t, "Rey", cleared.Participant(Slot{Round: 1, Match: 0, Side: 1}).Name)

	reset := s.Reset()
	assert.False(t, reset.HasData())
	assert.Equal(t, s.Config, reset.Config)
	assert.Empty(t, reset.Logo)
}

func TestReconfigure(t *testing.T) {
	s := MustNew(Config{Mode: ModeTeams, PlayersPerTeam: 3, BracketSize: 8})
	s = set(t, s, "r0m0t0-name", "Alpha")
	s = set(t, s, "r0m0t0p2-name", "Third")
	s = set(t, s, "r0m3t1-name", "Gone")
	s.Inputs["tournamentTitle"] = "Cup"
	s, err := s.SetWinner(MatchID{Round: 0, Match: 0}, 0)
	require.NoError(t, err)
	s, err = s.AttachDecklist(Slot{0, 0, 0}.Player(0), "deck.pdf")
	require.NoError(t, err)

	t.Run("same config is a no-op", func(t *testing.T) {
		same, err := s.Reconfigure(s.Config)
		require.NoError(t, err)
		assert.Equal(t, s, same)
	})

	t.Run("smaller bracket and team", func(t *testing.T) {
		next, err := s.Reconfigure(Config{Mode: ModeTeams, PlayersPerTeam: 2, BracketSize: 4})
		require.NoError(t, err)

		assert.Empty(t, next.Winners)
		assert.Empty(t, next.Decklists)
		assert.Equal(t, "Alpha", next.Participant(Slot{0, 0, 0}).Name)
		assert.Len(t, next.Participant(Slot{0, 0, 0}).Players, 2)
		assert.Equal(t, "Cup", next.Inputs["tournamentTitle"])
		_, ok := next.Participants[Slot{0, 3, 1}]
		assert.False(t, ok)
	})

	t.Run("teams to singles keeps names", func(t *testing.T) {
		next, err := s.Reconfigure(Config{Mode: ModeSingles, BracketSize: 8})
		require.NoError(t, err)
		p := next.Participant(Slot{0, 0, 0})
		assert.Equal(t, "Alpha", p.Name)
		assert.Nil(t, p.Players)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := s.Reconfigure(Config{Mode: ModeSingles, BracketSize: 32})
		assert.ErrorIs(t, err, ErrInvalidBracketSize)
	})
}

func TestDeckInfo(t *testing.T) {
	assert.Equal(t, "Vader / Death Star", DeckInfo("Vader", "Death Star"))
	assert.Equal(t, "Vader", DeckInfo("Vader", ""))
	assert.Equal(t, "Death Star", DeckInfo("", "Death Star"))
	assert.Empty(t, DeckInfo("", ""))
}

func TestEntriesRoundTrip(t *testing.T) {
	s := MustNew(Config{Mode: ModeTeams, PlayersPerTeam: 2, BracketSize: 4})
	s = set(t, s, "r0m1t0-name", "Mandalorians")
	s = set(t, s, "r0m1t0p1-leader", "Bo-Katan")
	s = set(t, s, "r0m0t1-name", "Jedi")

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "r0m0t1", entries[0].Slot)
	assert.Equal(t, "r0m1t0", entries[1].Slot)

	fresh := MustNew(s.Config)
	restored, dropped := fresh.ApplyEntries(append(entries, Entry{Slot: "r5m0t0"}))
	assert.Equal(t, []string{"teams.r5m0t0"}, dropped)
	assert.Equal(t, s.Participants, restored.Participants)
}
