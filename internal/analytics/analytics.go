// Package analytics holds the class-performance rows the teacher
// dashboard renders as a bar chart and a table.
package analytics

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"perfview/internal/api"
)

type API interface {
	Analytics(ctx context.Context) ([]api.TopicAverage, error)
}

// Row is one topic ready for display: the average pre-formatted for the
// table and the bar height fixed to the 0-100 chart domain.
type Row struct {
	TopicID int
	Name    string
	Average float64
	Percent string
}

func rows(averages []api.TopicAverage) ([]Row, error) {
	out := make([]Row, 0, len(averages))
	for _, t := range averages {
		if t.AverageScore < 0 || t.AverageScore > 100 {
			return nil, fmt.Errorf("average %.2f for topic %q is outside 0-100", t.AverageScore, t.TopicName)
		}
		out = append(out, Row{
			TopicID: t.TopicID,
			Name:    t.TopicName,
			Average: t.AverageScore,
			Percent: fmt.Sprintf("%.2f", t.AverageScore),
		})
	}
	return out, nil
}

// Service caches the last good rows. Refresh is pull-only: it runs on
// dashboard load and after a syllabus upload, never on a timer.
type Service struct {
	api API
	log zerolog.Logger

	mu   sync.Mutex
	data []Row
}

func NewService(client API, log zerolog.Logger) *Service {
	return &Service{api: client, log: log}
}

// Refresh re-fetches the topic averages. Failures, including bad data,
// are logged and leave the previous rows on screen; a stale chart beats
// a blocking error for a background refresh.
func (s *Service) Refresh(ctx context.Context) {
	averages, err := s.api.Analytics(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("fetching analytics failed")
		return
	}

	fresh, err := rows(averages)
	if err != nil {
		s.log.Error().Err(err).Msg("analytics payload rejected")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = fresh
}

func (s *Service) Snapshot() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Row(nil), s.data...)
}
