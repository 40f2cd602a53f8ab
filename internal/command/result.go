package command

import "time"

// Outcome classifies how a command ended.
type Outcome int

const (
	// OutcomeSkipped means no request was sent (no session, nothing to merge).
	OutcomeSkipped Outcome = iota
	// OutcomeApplied means the backend accepted the command.
	OutcomeApplied
	// OutcomeFailed means validation, transport or the backend rejected it.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeApplied:
		return "applied"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes one dispatched command.
type Result struct {
	CommandID string
	Type      Type
	SessionID string
	Outcome   Outcome
	Err       error
	Duration  time.Duration
}

// Applied reports whether the backend accepted the command.
func (r *Result) Applied() bool {
	return r != nil && r.Outcome == OutcomeApplied
}

func newResult(cmd Command, outcome Outcome, err error) *Result {
	return &Result{
		CommandID: cmd.ID(),
		Type:      cmd.Type(),
		SessionID: cmd.SessionID(),
		Outcome:   outcome,
		Err:       err,
	}
}
