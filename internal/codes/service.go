// Package codes drives the teacher's time-bound student login code.
package codes

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"perfview/internal/api"
)

// API is the slice of the analyzer client this service needs.
type API interface {
	CurrentCode(ctx context.Context) (*api.Code, error)
	GenerateCode(ctx context.Context) (api.Code, error)
}

// Display is what the dashboard shows: the last code the server handed
// us, authoritative until the server says otherwise. Expiry enforcement
// is server-side; an elapsed code stays on screen.
type Display struct {
	Code      string
	ExpiresAt string
	IssueErr  string
}

type Service struct {
	api API
	log zerolog.Logger

	mu      sync.Mutex
	current Display
}

func NewService(client API, log zerolog.Logger) *Service {
	return &Service{api: client, log: log}
}

// FetchCurrent pulls the active code. No active code is a normal empty
// result. A transport failure keeps whatever was displayed before and
// is logged, not surfaced.
func (s *Service) FetchCurrent(ctx context.Context) {
	code, err := s.api.CurrentCode(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("fetching current code failed")
		return
	}
	if code == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Code = code.Code
	s.current.ExpiresAt = code.ExpiresAt
}

// Issue requests a fresh code. Success replaces the displayed code and
// expiry unconditionally, even when the new expiry is earlier. Failure
// leaves the display alone and records the server message for the
// dashboard to surface.
func (s *Service) Issue(ctx context.Context) {
	s.mu.Lock()
	s.current.IssueErr = ""
	s.mu.Unlock()

	code, err := s.api.GenerateCode(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("generating code failed")
		s.mu.Lock()
		s.current.IssueErr = api.Message(err, "Failed to generate code")
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Display{Code: code.Code, ExpiresAt: code.ExpiresAt}
}

// Reset clears the displayed code, expiry and any recorded issue
// failure. Runs on logout so the panel starts blank for the next user.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Display{}
}

func (s *Service) Snapshot() Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// expiry layouts the analyzer has been seen emitting: RFC 3339 and the
// naive ISO-8601 form without a zone.
var expiryLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// FormatExpiry renders the expiry as an absolute local timestamp. An
// unrecognized value passes through untouched rather than disappearing.
func FormatExpiry(raw string) string {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Local().Format("Jan 2, 2006 3:04 PM")
		}
	}
	return raw
}
