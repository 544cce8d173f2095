// api/schemas/results.go
package schemas

// -- Result Schemas --

// StepStatus is the outcome of executing one action.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// ScenarioStatus is the aggregated outcome of one scenario.
type ScenarioStatus string

const (
	ScenarioCompleted ScenarioStatus = "completed"
	ScenarioFailed    ScenarioStatus = "failed"
	ScenarioAborted   ScenarioStatus = "aborted"
)

// ErrorCode classifies step failures for structured reporting.
type ErrorCode string

const (
	ErrCodeTargetNotFound   ErrorCode = "TARGET_NOT_FOUND"
	ErrCodeExecutionFailure ErrorCode = "EXECUTION_FAILURE"
	ErrCodeAssertionFailed  ErrorCode = "ASSERTION_FAILED"
	ErrCodeNavigationError  ErrorCode = "NAVIGATION_ERROR"
	ErrCodeUnrecognizedStep ErrorCode = "UNRECOGNIZED_STEP"
	ErrCodeInvalidAction    ErrorCode = "INVALID_ACTION"
	ErrCodeExecutorPanic    ErrorCode = "EXECUTOR_PANIC"
	ErrCodeCanceled         ErrorCode = "CANCELED"
)

// StepResult records the outcome of one interpreted step.
type StepResult struct {
	// Sequence is monotonic within a scenario and starts at 1.
	Sequence   int        `json:"sequence"`
	Step       string     `json:"step"`
	Action     Action     `json:"action"`
	Status     StepStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	ErrorCode  ErrorCode  `json:"error_code,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}

// ScenarioResult aggregates the step results of one scenario.
type ScenarioResult struct {
	ScenarioTitle string         `json:"scenario_title"`
	OverallStatus ScenarioStatus `json:"overall_status"`
	Steps         []StepResult   `json:"steps"`
	// Screenshot is the PNG captured at scenario end, if any.
	Screenshot []byte `json:"screenshot,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StatusFromSteps derives the overall status: failed if any step failed,
// completed otherwise (including an empty step list).
func StatusFromSteps(steps []StepResult) ScenarioStatus {
	for _, s := range steps {
		if s.Status == StepFailed {
			return ScenarioFailed
		}
	}
	return ScenarioCompleted
}

// RunReport is the payload returned to the caller of a successful run.
type RunReport struct {
	RunID    string           `json:"run_id"`
	Success  bool             `json:"success"`
	TestPlan []Scenario       `json:"testPlan"`
	Results  []ScenarioResult `json:"results"`
	Context  *PageContext     `json:"context,omitempty"`
	Message  string           `json:"message,omitempty"`
	// Saved lists the scenarios persisted after the run when saving was requested.
	Saved []SavedScenario `json:"saved,omitempty"`
}

// ErrorPayload is the body returned for a failed run.
type ErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}
