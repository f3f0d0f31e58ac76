package workflow

import "github.com/linkgrove/linkgrove/internal/profile"

// Workflow step names, reported on failure so the caller can render a
// specific retry affordance.
const (
	StepAuthenticate  = "authenticate"
	StepVerify        = "verify"
	StepUpsertProfile = "upsert_profile"
	StepSelectPlan    = "select_plan"
	StepPayment       = "payment"
	StepEntitle       = "entitle"
	StepComplete      = "complete"
)

// Result is the outcome of a workflow run.
type Result struct {
	Success    bool
	Step       string
	User       profile.Record
	IsNewUser  bool
	FailedStep string
	Err        error
}

func failure(step string, err error) Result {
	return Result{Step: step, FailedStep: step, Err: err}
}

// StepError names the workflow step a resumption failure occurred in, the
// counterpart of Result.FailedStep for Run. errors.Is/As see through it to
// the underlying cause.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepFailure(step string, err error) error {
	return &StepError{Step: step, Err: err}
}
