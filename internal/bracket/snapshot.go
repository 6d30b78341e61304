package bracket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/AdamBeresnev/bracket-manager/internal/utils"
)

var ErrMalformedSnapshot = errors.New("malformed bracket data")

// DecklistRef is a decklist file reference. Older exports stored {"filename": ..., "type": ...}
// objects instead of plain strings; both decode to the file name.
type DecklistRef string

func (d *DecklistRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = DecklistRef(s)
		return nil
	}
	var obj struct {
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*d = DecklistRef(obj.Filename)
	return nil
}

// Snapshot is the serialized bracket: the persisted unit and the export/import file format.
type Snapshot struct {
	Config         *Config                `json:"config,omitempty"`
	Winners        map[string]int         `json:"winners"`
	Decklists      map[string]DecklistRef `json:"decklists"`
	LogoData       *string                `json:"logoData"`
	Inputs         map[string]string      `json:"inputs"`
	Timestamp      string                 `json:"timestamp,omitempty"`
	ExportDate     string                 `json:"exportDate,omitempty"`
	TournamentName string                 `json:"tournamentName,omitempty"`
}

func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return snap, nil
}

func (snap Snapshot) Encode() ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// ToSnapshot serializes s. Every addressable field is written, empty or not.
func ToSnapshot(s State) Snapshot {
	cfg := s.Config
	snap := Snapshot{
		Config:    &cfg,
		Winners:   make(map[string]int, len(s.Winners)),
		Decklists: make(map[string]DecklistRef, len(s.Decklists)),
		Inputs:    make(map[string]string, len(s.Inputs)+len(s.Participants)*4),
	}
	for id, side := range s.Winners {
		snap.Winners[id.String()] = side
	}
	for a, ref := range s.Decklists {
		snap.Decklists[a.Key()] = DecklistRef(ref)
	}
	snap.LogoData = utils.NonBlank(s.Logo)
	for id, v := range s.Inputs {
		snap.Inputs[id] = v
	}
	for slot, p := range s.Participants {
		a := slot.Address()
		snap.Inputs[FieldKey(a, FieldName)] = p.Name
		if !cfg.IsTeams() {
			snap.Inputs[FieldKey(a, FieldLeader)] = p.Leader
			snap.Inputs[FieldKey(a, FieldBase)] = p.Base
			continue
		}
		for i, pl := range p.Players {
			pa := slot.Player(i)
			snap.Inputs[FieldKey(pa, FieldName)] = pl.Name
			snap.Inputs[FieldKey(pa, FieldLeader)] = pl.Leader
			snap.Inputs[FieldKey(pa, FieldBase)] = pl.Base
		}
	}
	return snap
}

// FromSnapshot rebuilds a State. fallback is used when the document carries no config.
// Keys that do not fit the topology are skipped and returned, sorted, as dropped.
func FromSnapshot(snap Snapshot, fallback Config) (State, []string, error) {
	cfg := fallback
	if snap.Config != nil {
		cfg = *snap.Config
	}
	s, err := New(cfg)
	if err != nil {
		return State{}, nil, err
	}

	var dropped []string
	for key, value := range snap.Inputs {
		if !LooksLikeFieldKey(key) {
			s.Inputs[key] = value
			continue
		}
		a, f, err := ParseFieldKey(key)
		if err == nil {
			err = cfg.CheckField(a, f)
		}
		if err != nil {
			dropped = append(dropped, "inputs."+key)
			continue
		}
		p := s.Participants[a.Slot]
		p.set(a.Player, f, value)
		s.Participants[a.Slot] = p
	}

	for key, side := range snap.Winners {
		id, err := ParseMatchID(key)
		if err == nil {
			err = s.checkMatch(id, side)
		}
		if err != nil {
			dropped = append(dropped, "winners."+key)
			continue
		}
		s.Winners[id] = side
	}

	for key, ref := range snap.Decklists {
		a, err := ParseAddress(key)
		if err == nil {
			err = cfg.CheckDecklist(a)
		}
		if err != nil {
			dropped = append(dropped, "decklists."+key)
			continue
		}
		if ref != "" {
			s.Decklists[a] = string(ref)
		}
	}

	s.Logo = utils.Deref(snap.LogoData)

	sort.Strings(dropped)
	return s, dropped, nil
}
