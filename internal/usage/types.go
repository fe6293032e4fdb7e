package usage

import (
	"time"

	"github.com/zsprackett/usagebar/internal/quota"
)

// Kind classifies how a fetch attempt ended.
type Kind string

const (
	KindSuccess        Kind = "success"
	KindBinaryNotFound Kind = "binary_not_found"
	KindPTYFailed      Kind = "pty_failed"
	KindTimeout        Kind = "timeout"
	KindParseFailed    Kind = "parse_failed"
	KindError          Kind = "error"
)

// Snapshot is the last successful reading. SessionFraction and
// WeeklyFraction are the fraction of each quota already used, 0 to 1: a
// screen showing "73% left" gives 0.27.
type Snapshot struct {
	AttemptID       string        `json:"attempt_id,omitempty"`
	SessionFraction float64       `json:"session_fraction"`
	WeeklyFraction  float64       `json:"weekly_fraction"`
	Quotas          []quota.Quota `json:"quotas,omitempty"`
	HasData         bool          `json:"has_data"`
	RawOutput       string        `json:"raw_output,omitempty"`
	CapturedAt      time.Time     `json:"captured_at"`
}

// Alerting reports whether either headline quota is above threshold.
func (s Snapshot) Alerting(threshold float64) bool {
	return s.HasData && (s.SessionFraction > threshold || s.WeeklyFraction > threshold)
}

// Failure describes the most recent failed fetch. Output is whatever the
// tool printed before giving up, if anything.
type Failure struct {
	AttemptID string    `json:"attempt_id,omitempty"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Output    string    `json:"output,omitempty"`
	At        time.Time `json:"at"`
}

// State is everything a poller publishes. It is replaced as a whole.
type State struct {
	Snapshot  Snapshot `json:"snapshot"`
	LastError *Failure `json:"last_error,omitempty"`
	Started   bool     `json:"started"`
	InFlight  bool     `json:"in_flight"`
}

// Diagnostic returns the raw output most useful for explaining the current
// state: the failed attempt's output when there is one, else the last
// successful capture.
func (s State) Diagnostic() string {
	if s.LastError != nil && s.LastError.Output != "" {
		return s.LastError.Output
	}
	return s.Snapshot.RawOutput
}
