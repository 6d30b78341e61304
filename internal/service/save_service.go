package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/AdamBeresnev/bracket-manager/internal/bracket"
	"github.com/AdamBeresnev/bracket-manager/internal/metrics"
	"github.com/AdamBeresnev/bracket-manager/internal/store"
	"github.com/google/uuid"
)

const savedBracketVersion = "2.0"

type SavedBracketRepository interface {
	Create(ctx context.Context, b *store.SavedBracket) error
	Get(ctx context.Context, id string) (*store.SavedBracket, error)
}

// SaveRequest is the body of POST /api/brackets.
type SaveRequest struct {
	Title     string                         `json:"title"`
	Config    *bracket.Config                `json:"config"`
	Teams     []bracket.Entry                `json:"teams"`
	Winners   map[string]int                 `json:"winners"`
	Decklists map[string]bracket.DecklistRef `json:"decklists"`
	LogoData  *string                        `json:"logoData"`
	Inputs    map[string]string              `json:"inputs,omitempty"`
}

// SavedDocument is what GET /api/brackets/{id} hands back.
type SavedDocument struct {
	ID        string                         `json:"id"`
	Title     string                         `json:"title"`
	Config    *bracket.Config                `json:"config"`
	Teams     []bracket.Entry                `json:"teams"`
	Winners   map[string]int                 `json:"winners"`
	Decklists map[string]bracket.DecklistRef `json:"decklists"`
	LogoData  *string                        `json:"logoData"`
	Inputs    map[string]string              `json:"inputs,omitempty"`
	CreatedAt string                         `json:"createdAt"`
	UpdatedAt string                         `json:"updatedAt"`
	Version   string                         `json:"version"`
}

type SaveResult struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	ShareURL  string `json:"shareUrl"`
	CreatedAt string `json:"createdAt"`
	SaveCount int    `json:"saveCount"`
	Limit     int    `json:"limit"`
}

type SaveService struct {
	repo    SavedBracketRepository
	quota   *QuotaService
	metrics *metrics.Metrics
	siteURL string
	now     func() time.Time
}

func NewSaveService(repo SavedBracketRepository, quota *QuotaService, siteURL string, m *metrics.Metrics) *SaveService {
	return &SaveService{
		repo:    repo,
		quota:   quota,
		metrics: m,
		siteURL: strings.TrimSuffix(siteURL, "/"),
		now:     time.Now,
	}
}

// ShareURL is the editor link that opens a saved bracket.
func (s *SaveService) ShareURL(id string) string {
	return s.siteURL + "/tools/bracket-manager?id=" + url.QueryEscape(id)
}

func (s *SaveService) Save(ctx context.Context, req *SaveRequest) (*SaveResult, error) {
	if req == nil || strings.TrimSpace(req.Title) == "" {
		return nil, ErrTitleRequired
	}

	current, err := s.quota.Check(ctx, store.CounterSaves)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	created := now.Format("2006-01-02T15:04:05.000Z07:00")
	doc := SavedDocument{
		ID:        s.newID(now),
		Title:     req.Title,
		Config:    req.Config,
		Teams:     req.Teams,
		Winners:   req.Winners,
		Decklists: req.Decklists,
		LogoData:  req.LogoData,
		Inputs:    req.Inputs,
		CreatedAt: created,
		UpdatedAt: created,
		Version:   savedBracketVersion,
	}
	if doc.Config == nil {
		doc.Config = &bracket.Config{}
	}
	if doc.Teams == nil {
		doc.Teams = []bracket.Entry{}
	}
	if doc.Winners == nil {
		doc.Winners = map[string]int{}
	}
	if doc.Decklists == nil {
		doc.Decklists = map[string]bracket.DecklistRef{}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	err = s.repo.Create(ctx, &store.SavedBracket{
		ID:        doc.ID,
		Title:     doc.Title,
		Document:  string(data),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store bracket: %w", err)
	}

	s.quota.Record(ctx, store.CounterSaves)
	s.metrics.Save()
	slog.Info("bracket saved", "id", doc.ID, "title", doc.Title)

	shareURL := s.ShareURL(doc.ID)
	return &SaveResult{
		ID:        doc.ID,
		URL:       shareURL,
		ShareURL:  shareURL,
		CreatedAt: created,
		SaveCount: current + 1,
		Limit:     s.quota.Limit(store.CounterSaves),
	}, nil
}

// Get returns the stored document exactly as it was saved.
func (s *SaveService) Get(ctx context.Context, id string) (json.RawMessage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrBracketIDRequired
	}

	saved, err := s.repo.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		s.metrics.SharedLoad("not_found")
		return nil, ErrBracketNotFound
	}
	if err != nil {
		s.metrics.SharedLoad("error")
		return nil, fmt.Errorf("failed to load bracket %s: %w", id, err)
	}

	s.metrics.SharedLoad("ok")
	return json.RawMessage(saved.Document), nil
}

// GetDocument is Get decoded, for callers that need the fields.
func (s *SaveService) GetDocument(ctx context.Context, id string) (*SavedDocument, error) {
	raw, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var doc SavedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", bracket.ErrMalformedSnapshot, err)
	}
	return &doc, nil
}

// newID is "bracket_<unix millis>_<9 random chars>".
func (s *SaveService) newID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("bracket_%d_%s", now.UnixMilli(), random)
}
