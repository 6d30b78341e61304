package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AdamBeresnev/bracket-manager/internal/bracket"
	"github.com/AdamBeresnev/bracket-manager/internal/legacy"
	"github.com/AdamBeresnev/bracket-manager/internal/metrics"
	"github.com/AdamBeresnev/bracket-manager/internal/middleware"
	"github.com/cespare/xxhash/v2"
)

// PersistWarning is shown to the user when the bracket was updated but could not be saved.
const PersistWarning = "Your changes are applied but could not be saved. They are kept until the server restarts and will be saved with your next change."

const lockStripes = 64

type WorkspaceRepository interface {
	SaveSnapshot(ctx context.Context, workspaceID string, snap bracket.Snapshot) error
	LoadSnapshot(ctx context.Context, workspaceID string) (bracket.Snapshot, bool)
	SaveSettings(ctx context.Context, workspaceID string, settings bracket.DisplaySettings) error
	LoadSettings(ctx context.Context, workspaceID string) (bracket.DisplaySettings, bool)
	ClearSettings(ctx context.Context, workspaceID string) error
}

// Outcome is the state after an operation. Warning is set when persisting it failed; the state
// is still the one the user should see.
type Outcome struct {
	State   bracket.State
	Warning string
}

type ImportResult struct {
	Outcome
	Legacy  bool
	Dropped []string
}

// BracketService applies editor operations to the bracket of the workspace in the context and
// persists the result after every change.
type BracketService struct {
	repo    WorkspaceRepository
	saves   *SaveService
	metrics *metrics.Metrics
	now     func() time.Time

	// Operations on one workspace are serialized so concurrent requests from the same browser
	// cannot lose each other's updates. Workspaces share a fixed set of stripes.
	locks [lockStripes]sync.Mutex

	// unsaved holds the latest state and settings of workspaces whose last write failed.
	mu              sync.Mutex
	unsaved         map[string]bracket.State
	unsavedSettings map[string]bracket.DisplaySettings
}

func NewBracketService(repo WorkspaceRepository, saves *SaveService, m *metrics.Metrics) *BracketService {
	return &BracketService{
		repo:            repo,
		saves:           saves,
		metrics:         m,
		now:             time.Now,
		unsaved:         make(map[string]bracket.State),
		unsavedSettings: make(map[string]bracket.DisplaySettings),
	}
}

func workspaceID(ctx context.Context) (string, error) {
	id, ok := middleware.GetWorkspaceIDFromContext(ctx)
	if !ok {
		return "", ErrNoWorkspace
	}
	return id, nil
}

func lockStripe(id string) int {
	return int(xxhash.Sum64String(id) % lockStripes)
}

func (s *BracketService) lock(id string) func() {
	mu := &s.locks[lockStripe(id)]
	mu.Lock()
	return mu.Unlock
}

func (s *BracketService) pending(id string) (bracket.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.unsaved[id]
	return state, ok
}

func (s *BracketService) pendingSettings(id string) (bracket.DisplaySettings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, ok := s.unsavedSettings[id]
	return settings, ok
}

// State loads the workspace bracket, falling back to an empty default bracket.
func (s *BracketService) State(ctx context.Context) (bracket.State, error) {
	id, err := workspaceID(ctx)
	if err != nil {
		return bracket.State{}, err
	}
	return s.load(ctx, id), nil
}

func (s *BracketService) load(ctx context.Context, id string) bracket.State {
	if state, ok := s.pending(id); ok {
		return state
	}
	snap, ok := s.repo.LoadSnapshot(ctx, id)
	if !ok {
		return bracket.MustNew(bracket.DefaultConfig())
	}
	state, dropped, err := bracket.FromSnapshot(snap, bracket.DefaultConfig())
	if err != nil {
		slog.Warn("stored bracket is unusable, starting over", "workspace", id, "error", err)
		return bracket.MustNew(bracket.DefaultConfig())
	}
	if len(dropped) > 0 {
		slog.Warn("stored bracket had keys outside its topology", "workspace", id, "dropped", dropped)
	}
	return state
}

func (s *BracketService) persist(ctx context.Context, id string, state bracket.State) string {
	snap := bracket.ToSnapshot(state)
	snap.Timestamp = s.now().UTC().Format(time.RFC3339)
	if err := s.repo.SaveSnapshot(ctx, id, snap); err != nil {
		slog.Error("failed to persist workspace bracket", "workspace", id, "error", err)
		s.metrics.PersistFailed()
		return PersistWarning
	}
	return ""
}

// remember keeps state in memory until a save succeeds. A nil state forgets it.
func (s *BracketService) remember(id string, state *bracket.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == nil {
		delete(s.unsaved, id)
		return
	}
	s.unsaved[id] = *state
}

// apply runs op against the current state and persists whatever it returns. When the save fails
// the new state stays in memory so the next operation builds on it.
func (s *BracketService) apply(ctx context.Context, name string, op func(bracket.State) (bracket.State, error)) (Outcome, error) {
	id, err := workspaceID(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer s.lock(id)()

	current := s.load(ctx, id)
	next, err := op(current)
	if err != nil {
		return Outcome{State: current}, err
	}

	s.metrics.Mutation(name)
	s.remember(id, &next)
	warning := s.persist(ctx, id, next)
	if warning == "" {
		s.remember(id, nil)
	}
	return Outcome{State: next, Warning: warning}, nil
}

// SetField updates one input, addressed by its field id (e.g. "r0m1t0p2-leader").
func (s *BracketService) SetField(ctx context.Context, key, value string) (Outcome, error) {
	a, f, err := bracket.ParseFieldKey(key)
	if err != nil {
		return Outcome{}, err
	}
	return s.apply(ctx, "set_field", func(st bracket.State) (bracket.State, error) {
		return st.SetField(a, f, value)
	})
}

func (s *BracketService) SetWinner(ctx context.Context, matchID string, side int) (Outcome, error) {
	id, err := bracket.ParseMatchID(matchID)
	if err != nil {
		return Outcome{}, err
	}
	return s.apply(ctx, "set_winner", func(st bracket.State) (bracket.State, error) {
		return st.SetWinner(id, side)
	})
}

func (s *BracketService) ClearWinner(ctx context.Context, matchID string) (Outcome, error) {
	id, err := bracket.ParseMatchID(matchID)
	if err != nil {
		return Outcome{}, err
	}
	return s.apply(ctx, "clear_winner", func(st bracket.State) (bracket.State, error) {
		return st.ClearWinner(id)
	})
}

// AttachDecklist records an uploaded file for the player at key. An empty ref detaches.
func (s *BracketService) AttachDecklist(ctx context.Context, key, ref string) (Outcome, error) {
	a, err := bracket.ParseAddress(key)
	if err != nil {
		return Outcome{}, err
	}
	return s.apply(ctx, "attach_decklist", func(st bracket.State) (bracket.State, error) {
		return st.AttachDecklist(a, ref)
	})
}

func (s *BracketService) SetLogo(ctx context.Context, ref string) (Outcome, error) {
	return s.apply(ctx, "set_logo", func(st bracket.State) (bracket.State, error) {
		return st.SetLogo(ref), nil
	})
}

func (s *BracketService) ClearResults(ctx context.Context) (Outcome, error) {
	return s.apply(ctx, "clear_results", func(st bracket.State) (bracket.State, error) {
		return st.ClearResults(), nil
	})
}

// Reset empties the bracket but keeps its configuration.
func (s *BracketService) Reset(ctx context.Context) (Outcome, error) {
	return s.apply(ctx, "reset", func(st bracket.State) (bracket.State, error) {
		return st.Reset(), nil
	})
}

// Reconfigure switches topology. When the bracket holds data the caller must pass confirmed,
// since winners and decklists are dropped.
func (s *BracketService) Reconfigure(ctx context.Context, cfg bracket.Config, confirmed bool) (Outcome, error) {
	return s.apply(ctx, "reconfigure", func(st bracket.State) (bracket.State, error) {
		if err := cfg.Validate(); err != nil {
			return st, err
		}
		if !st.Config.Equal(cfg) && st.HasData() && !confirmed {
			return st, ErrConfirmationRequired
		}
		return st.Reconfigure(cfg)
	})
}

// Import replaces the workspace bracket with an export file. Legacy files are translated first.
// Keys that cannot be placed are reported, not fatal.
func (s *BracketService) Import(ctx context.Context, data []byte) (ImportResult, error) {
	snap, err := bracket.DecodeSnapshot(data)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	if legacy.IsLegacy(snap) {
		translated := legacy.Translate(snap)
		snap = translated.Snapshot
		res.Legacy = true
		res.Dropped = translated.Dropped
	}

	outcome, err := s.apply(ctx, "import", func(st bracket.State) (bracket.State, error) {
		next, dropped, err := bracket.FromSnapshot(snap, st.Config)
		if err != nil {
			return st, err
		}
		res.Dropped = append(res.Dropped, dropped...)
		return next, nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	res.Outcome = outcome
	if len(res.Dropped) > 0 {
		slog.Info("import skipped keys", "dropped", res.Dropped)
	}
	return res, nil
}

// Export renders the workspace bracket as a downloadable file.
func (s *BracketService) Export(ctx context.Context) (string, []byte, error) {
	state, err := s.State(ctx)
	if err != nil {
		return "", nil, err
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return "", nil, err
	}

	now := s.now().UTC()
	snap := bracket.ToSnapshot(state)
	snap.ExportDate = now.Format(time.RFC3339)
	snap.TournamentName = settings.Resolve(state.Config.BracketSize).TournamentTitle

	data, err := snap.Encode()
	if err != nil {
		return "", nil, err
	}
	name := fmt.Sprintf("bracket_%s_%d_%s.json", state.Config.Mode, state.Config.BracketSize, now.Format("2006-01-02"))
	return name, data, nil
}

// Settings returns the saved display settings. Nothing stored yields empty settings, which
// Resolve fills with the defaults for the bracket size.
func (s *BracketService) Settings(ctx context.Context) (bracket.DisplaySettings, error) {
	id, err := workspaceID(ctx)
	if err != nil {
		return bracket.DisplaySettings{}, err
	}
	if settings, ok := s.pendingSettings(id); ok {
		return settings, nil
	}
	settings, ok := s.repo.LoadSettings(ctx, id)
	if !ok {
		return bracket.DisplaySettings{}, nil
	}
	return settings, nil
}

// SaveSettings stores settings. The returned string is a warning when saving failed.
func (s *BracketService) SaveSettings(ctx context.Context, settings bracket.DisplaySettings) (string, error) {
	id, err := workspaceID(ctx)
	if err != nil {
		return "", err
	}
	defer s.lock(id)()

	if err := s.repo.SaveSettings(ctx, id, settings); err != nil {
		slog.Error("failed to persist display settings", "workspace", id, "error", err)
		s.metrics.PersistFailed()
		s.mu.Lock()
		s.unsavedSettings[id] = settings
		s.mu.Unlock()
		return PersistWarning, nil
	}
	s.mu.Lock()
	delete(s.unsavedSettings, id)
	s.mu.Unlock()
	return "", nil
}

func (s *BracketService) ResetSettings(ctx context.Context) (bracket.DisplaySettings, error) {
	id, err := workspaceID(ctx)
	if err != nil {
		return bracket.DisplaySettings{}, err
	}
	defer s.lock(id)()

	s.mu.Lock()
	delete(s.unsavedSettings, id)
	s.mu.Unlock()
	if err := s.repo.ClearSettings(ctx, id); err != nil {
		slog.Error("failed to clear display settings", "workspace", id, "error", err)
	}
	return bracket.DisplaySettings{}, nil
}

// Share publishes the workspace bracket through the save API.
func (s *BracketService) Share(ctx context.Context) (*SaveResult, error) {
	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}

	snap := bracket.ToSnapshot(state)
	return s.saves.Save(ctx, &SaveRequest{
		Title:     settings.Resolve(state.Config.BracketSize).TournamentTitle,
		Config:    snap.Config,
		Teams:     state.Entries(),
		Winners:   snap.Winners,
		Decklists: snap.Decklists,
		LogoData:  snap.LogoData,
		Inputs:    snap.Inputs,
	})
}

// LoadShared copies a saved bracket into the workspace. Documents without inputs are rebuilt
// from their team list.
func (s *BracketService) LoadShared(ctx context.Context, savedID string) (ImportResult, error) {
	doc, err := s.saves.GetDocument(ctx, savedID)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	outcome, err := s.apply(ctx, "load_shared", func(st bracket.State) (bracket.State, error) {
		cfg := doc.Config
		if cfg != nil && cfg.Validate() != nil {
			cfg = nil
		}
		next, dropped, err := bracket.FromSnapshot(bracket.Snapshot{
			Config:    cfg,
			Winners:   doc.Winners,
			Decklists: doc.Decklists,
			LogoData:  doc.LogoData,
			Inputs:    doc.Inputs,
		}, st.Config)
		if err != nil {
			return st, err
		}
		if len(doc.Inputs) == 0 {
			var more []string
			next, more = next.ApplyEntries(doc.Teams)
			dropped = append(dropped, more...)
		}
		res.Dropped = dropped
		return next, nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	res.Outcome = outcome

	if doc.Title != "" {
		settings, _ := s.Settings(ctx)
		settings.TournamentTitle = doc.Title
		if warning, _ := s.SaveSettings(ctx, settings); warning != "" && res.Warning == "" {
			res.Warning = warning
		}
	}
	return res, nil
}

// Presentation gathers what the presentation page needs.
func (s *BracketService) Presentation(ctx context.Context) (bracket.State, bracket.DisplaySettings, error) {
	state, err := s.State(ctx)
	if err != nil {
		return bracket.State{}, bracket.DisplaySettings{}, err
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return bracket.State{}, bracket.DisplaySettings{}, err
	}
	return state, settings.Resolve(state.Config.BracketSize), nil
}
