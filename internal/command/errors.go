package command

import (
	"errors"
	"fmt"

	"github.com/cexll/gitwrap/internal/github"
)

// GatedError reports a push or merge blocked by the remote commit state.
type GatedError struct {
	Project string
	Ref     string
	SHA     string
	State   github.State
	// Checks holds every check that did not succeed, in report order.
	Checks []github.Check
}

func (e *GatedError) Error() string {
	return fmt.Sprintf("push blocked: commit %s on %s is %s", shortSHA(e.SHA), e.Project, e.State)
}

// Blocking returns the first check whose state matches the overall state.
func (e *GatedError) Blocking() *github.Check {
	return github.CombinedState{State: e.State, Checks: e.Checks}.Blocking()
}

// IsGated reports whether err originated from a blocked gated command.
func IsGated(err error) bool {
	if err == nil {
		return false
	}

	var target *GatedError
	return errors.As(err, &target)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
