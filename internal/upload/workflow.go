// Package upload tracks a single file submission from selection to its
// terminal success or failure state.
package upload

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"perfview/internal/ids"
)

type State int

const (
	Idle State = iota
	InProgress
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InProgress:
		return "in_progress"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ErrInFlight rejects a second submission while one is running. The
// upload control is disabled during InProgress, so hitting this means
// a request bypassed the form.
var ErrInFlight = errors.New("an upload is already in progress")

// Outcome is a snapshot of the workflow. Scores is set after a student
// success, Topics after a teacher success; both are nil otherwise.
type Outcome struct {
	State   State
	Message string
	Scores  map[string]float64
	Topics  []string
}

// Workflow is the state machine behind one dashboard's upload control.
// Transitions are strictly Idle→InProgress→{Succeeded|Failed}; a new
// Begin from Idle or a terminal state restarts the cycle and wipes
// whatever the previous one displayed.
type Workflow struct {
	name string
	log  zerolog.Logger

	mu      sync.Mutex
	id      string
	state   State
	message string
	scores  map[string]float64
	topics  []string
}

func New(name string, log zerolog.Logger) *Workflow {
	return &Workflow{name: name, log: log}
}

// Begin moves to InProgress and clears the prior message and payload.
func (w *Workflow) Begin(filename string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == InProgress {
		return ErrInFlight
	}

	w.id = ids.New()
	w.state = InProgress
	w.message = ""
	w.scores = nil
	w.topics = nil
	w.log.Info().Str("upload_id", w.id).Str("workflow", w.name).
		Str("filename", filename).Msg("upload started")
	return nil
}

// SucceedScores settles a student upload. Every score must sit in
// [0,100]; the service guarantees the range, so a violation is bad
// data and settles the upload as Failed instead of drawing a bar
// that lies.
func (w *Workflow) SucceedScores(message string, scores map[string]float64) error {
	for topic, score := range scores {
		if score < 0 || score > 100 {
			err := fmt.Errorf("score %.2f for topic %q is outside 0-100", score, topic)
			w.Fail("Received invalid score data from the server")
			return err
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.settle(Succeeded, message)
	w.scores = scores
	return nil
}

// SucceedTopics settles a teacher syllabus upload.
func (w *Workflow) SucceedTopics(message string, topics []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settle(Succeeded, message)
	w.topics = topics
}

// Fail settles the upload with a user-facing message. Prior scores are
// already gone since Begin; a failed re-upload never leaves stale
// success data visible.
func (w *Workflow) Fail(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settle(Failed, message)
}

func (w *Workflow) settle(state State, message string) {
	w.state = state
	w.message = message
	event := w.log.Info()
	if state == Failed {
		event = w.log.Warn()
	}
	event.Str("upload_id", w.id).Str("workflow", w.name).
		Str("result", state.String()).Str("message", message).Msg("upload settled")
}

// Reset puts the workflow back to Idle and drops whatever the last
// upload displayed. Logout goes through here so the next user never
// sees the previous user's scores or messages.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.id = ""
	w.state = Idle
	w.message = ""
	w.scores = nil
	w.topics = nil
}

func (w *Workflow) Snapshot() Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := Outcome{State: w.state, Message: w.message}
	if w.scores != nil {
		out.Scores = make(map[string]float64, len(w.scores))
		for k, v := range w.scores {
			out.Scores[k] = v
		}
	}
	if w.topics != nil {
		out.Topics = append([]string(nil), w.topics...)
	}
	return out
}
