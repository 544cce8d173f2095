// internal/runner/state.go
package runner

// State is a step of the run lifecycle.
type State string

const (
	StateIdle        State = "idle"
	StateExtracting  State = "extracting"
	StateGenerating  State = "generating"
	StateNoScenarios State = "no_scenarios"
	StateNavigating  State = "navigating"
	StateExecuting   State = "executing"
	StateCapturing   State = "capturing"
	StateCompleted   State = "completed"
	StateClosed      State = "closed"
)

// Transition describes one state change. Scenario is the 0-based index of the
// scenario being run, or -1 outside the per-scenario states.
type Transition struct {
	RunID    string
	From     State
	To       State
	Scenario int
}

// Observer receives every transition of a run, in order, on the run's goroutine.
type Observer func(Transition)

// machine tracks the current state and reports transitions.
type machine struct {
	runID    string
	state    State
	scenario int
	observe  Observer
}

func newMachine(runID string, observe Observer) *machine {
	return &machine{runID: runID, state: StateIdle, scenario: -1, observe: observe}
}

func (m *machine) to(next State) {
	t := Transition{RunID: m.runID, From: m.state, To: next, Scenario: m.scenario}
	m.state = next
	if m.observe != nil {
		m.observe(t)
	}
}

func (m *machine) enterScenario(i int) {
	m.scenario = i
	m.to(StateNavigating)
}

func (m *machine) leaveScenarios() {
	m.scenario = -1
}
