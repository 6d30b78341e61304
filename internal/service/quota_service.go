package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/bracket-manager/internal/metrics"
	"github.com/AdamBeresnev/bracket-manager/internal/store"
)

type UsageCounter interface {
	Count(ctx context.Context, month string, c store.Counter) (int, error)
	Increment(ctx context.Context, month string, c store.Counter) (int, error)
}

// QuotaService enforces the monthly upload and save limits. The counters exist to cap hosting
// costs, not for security: a failed read counts as zero and a failed increment is only logged.
type QuotaService struct {
	usage   UsageCounter
	limits  map[store.Counter]int
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewQuotaService(usage UsageCounter, uploadLimit, saveLimit int, m *metrics.Metrics) *QuotaService {
	return &QuotaService{
		usage: usage,
		limits: map[store.Counter]int{
			store.CounterUploads: uploadLimit,
			store.CounterSaves:   saveLimit,
		},
		metrics: m,
		now:     time.Now,
	}
}

func (s *QuotaService) Limit(c store.Counter) int {
	return s.limits[c]
}

// Month is the current counter key, e.g. "2025-03".
func (s *QuotaService) Month() string {
	return s.now().UTC().Format("2006-01")
}

// ResetDate is the first day of next month, when the counters start over.
func (s *QuotaService) ResetDate() string {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// Check returns the current count, or a *QuotaError once the limit is reached.
func (s *QuotaService) Check(ctx context.Context, c store.Counter) (int, error) {
	month := s.Month()
	current, err := s.usage.Count(ctx, month, c)
	if err != nil {
		slog.Error("failed to read usage, allowing request", "counter", c, "month", month, "error", err)
		current = 0
	}

	limit := s.limits[c]
	if current >= limit {
		slog.Warn("monthly limit reached", "counter", c, "current", current, "limit", limit)
		s.metrics.QuotaRejected(string(c))
		return current, &QuotaError{Counter: c, Limit: limit, Current: current, ResetDate: s.ResetDate()}
	}
	return current, nil
}

// Record bumps the counter after a successful operation.
func (s *QuotaService) Record(ctx context.Context, c store.Counter) {
	if _, err := s.usage.Increment(ctx, s.Month(), c); err != nil {
		slog.Error("failed to increment usage", "counter", c, "error", err)
	}
}
