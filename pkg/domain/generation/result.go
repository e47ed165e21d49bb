package generation

import (
	"github.com/felixgeelhaar/qualify/pkg/domain/questions"
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeSatisfied Outcome = StateSatisfied
	OutcomeExhausted Outcome = StateExhausted
)

// Result is what a run reports. Records come from the last attempt; when
// Outcome is exhausted their count differs from Requested.
type Result struct {
	RunID        string             `json:"run_id"`
	Template     string             `json:"template"`
	Requested    int                `json:"requested"`
	Records      []questions.Record `json:"records"`
	AttemptsUsed int                `json:"attempts_used"`
	Outcome      Outcome            `json:"outcome"`
}

// Satisfied reports whether the requested count was met.
func (r *Result) Satisfied() bool {
	return r.Outcome == OutcomeSatisfied
}

// Shortfall is the requested count minus the records obtained. It is
// negative when the model returned more than asked for.
func (r *Result) Shortfall() int {
	return r.Requested - len(r.Records)
}
