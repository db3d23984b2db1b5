package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cexll/gitwrap/internal/command"
	"github.com/cexll/gitwrap/internal/github"
	"github.com/cexll/gitwrap/internal/gitrepo"
	"github.com/cexll/gitwrap/internal/hosts"
)

// Exit codes for failures that happen before or instead of running git.
const (
	exitFailure      = 1
	exitGated        = 3
	exitAuthRequired = 4
	exitConfig       = 5
	exitLaunch       = 127
)

var (
	loadDotEnv         = godotenv.Load
	loadGlobalSettings = gitrepo.LoadGlobalSettings
	getwd              = os.Getwd
	newRunner          = func() github.CommandRunner { return &github.RealCommandRunner{} }
)

// errConfig marks configuration failures.
var errConfig = errors.New("configuration error")

// exitStatus carries the underlying git exit code. Git already reported
// whatever went wrong, so nothing more is printed.
type exitStatus struct {
	code int
}

func (e *exitStatus) Error() string {
	return fmt.Sprintf("git exited with status %d", e.code)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// Stay silent unless GITWRAP_VERBOSE turns logging on.
	log.SetOutput(io.Discard)

	root := newRootCmd(stdin, stdout, stderr)
	// cobra falls back to os.Args when given nil
	root.SetArgs(append([]string{}, args...))
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var status *exitStatus
	if errors.As(err, &status) {
		return status.code
	}

	var gated *command.GatedError
	if errors.As(err, &gated) {
		printBlocked(stderr, gated, isTerminal(stderr))
		return exitGated
	}

	fmt.Fprintf(stderr, "gitwrap: %v\n", err)
	return exitCode(err)
}

// exitCode maps wrapper errors to the documented exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case command.IsGated(err):
		return exitGated
	case errors.Is(err, github.ErrAuthRequired):
		return exitAuthRequired
	case errors.Is(err, errConfig), hosts.IsConfigError(err):
		return exitConfig
	case github.IsLaunchError(err):
		return exitLaunch
	default:
		return exitFailure
	}
}
