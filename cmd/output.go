package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/cexll/gitwrap/internal/command"
	"github.com/cexll/gitwrap/internal/github"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func stateColor(state github.State) string {
	if state == github.StatePending {
		return colorYellow
	}
	return colorRed
}

// printBlocked reports why a push or merge was refused, one line per
// offending check. The check that decided the overall state comes first.
func printBlocked(w io.Writer, gated *command.GatedError, color bool) {
	paint := func(state github.State, s string) string {
		if !color {
			return s
		}
		return stateColor(state) + s + colorReset
	}

	printCheck := func(check github.Check) {
		line := strings.TrimSpace(fmt.Sprintf("%s: %s %s", check.Context, paint(check.State, string(check.State)), check.TargetURL))
		fmt.Fprintf(w, "  %s\n", line)
	}

	fmt.Fprintln(w, paint(gated.State, gated.Error()))

	blocking := gated.Blocking()
	if blocking != nil {
		printCheck(*blocking)
	}
	skipped := false
	for _, check := range gated.Checks {
		if blocking != nil && !skipped && check == *blocking {
			skipped = true
			continue
		}
		printCheck(check)
	}
}
