package github

// State is a commit or check state as reported by the API.
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailure State = "failure"
	StateError   State = "error"
	// StateAbsent means no status or check-run was reported at all.
	StateAbsent State = ""
)

// Check is one named sub-result of a commit status report.
type Check struct {
	Context   string
	State     State
	TargetURL string
}

// CommitStatus is the combined status snapshot for a ref.
type CommitStatus struct {
	State  State
	Checks []Check
}

// CheckRun is a check-run as returned by the checks API.
type CheckRun struct {
	Name       string
	Status     string
	Conclusion string
	HTMLURL    string
}

// State maps the check-run lifecycle onto the commit status states.
func (c CheckRun) State() State {
	if c.Status != "" && c.Status != "completed" {
		return StatePending
	}
	switch c.Conclusion {
	case "success", "neutral", "skipped":
		return StateSuccess
	case "":
		return StatePending
	default:
		// failure, cancelled, timed_out, action_required, stale
		return StateFailure
	}
}

// Check converts the check-run into a status check entry.
func (c CheckRun) Check() Check {
	return Check{Context: c.Name, State: c.State(), TargetURL: c.HTMLURL}
}

// CombinedState is the merged verdict over statuses and check-runs.
type CombinedState struct {
	State  State
	Checks []Check
}

// Blocking returns the first check whose state matches the overall state.
func (c CombinedState) Blocking() *Check {
	for i := range c.Checks {
		if c.Checks[i].State == c.State {
			return &c.Checks[i]
		}
	}
	return nil
}

var stateRank = map[State]int{
	StateSuccess: 1,
	StatePending: 2,
	StateFailure: 3,
	StateError:   4,
}

// CombineStates merges every status entry and check-run. Overall success
// needs every entry to succeed; error outranks failure, which outranks
// pending. The top-level status field is ignored because the API reports
// "pending" for refs that have no statuses at all.
func CombineStates(status *CommitStatus, runs []CheckRun) CombinedState {
	var checks []Check
	if status != nil {
		checks = append(checks, status.Checks...)
	}
	for _, r := range runs {
		checks = append(checks, r.Check())
	}

	combined := CombinedState{State: StateAbsent, Checks: checks}
	best := 0
	for _, c := range checks {
		rank, ok := stateRank[c.State]
		if !ok {
			rank = stateRank[StateError]
		}
		if rank > best {
			best = rank
			combined.State = c.State
			if !ok {
				combined.State = StateError
			}
		}
	}
	return combined
}
