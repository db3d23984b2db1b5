// Package command classifies git invocations and rewrites the ones gitwrap
// knows how to improve. Everything else is passed through untouched.
package command

import (
	"slices"

	"github.com/cexll/gitwrap/internal/github"
)

// Invocation is one call of the underlying executable. Values are treated as
// read-only: rewrites derive a new Invocation.
type Invocation struct {
	Executable string
	Args       []string
	Dir        string
	// Env holds KEY=VALUE overrides on top of the inherited environment.
	Env []string
}

// Equal reports token-for-token equality.
func (i Invocation) Equal(o Invocation) bool {
	return i.Executable == o.Executable &&
		i.Dir == o.Dir &&
		slices.Equal(i.Args, o.Args) &&
		slices.Equal(i.Env, o.Env)
}

// withArgs returns a copy of i with args replaced.
func (i Invocation) withArgs(args []string) Invocation {
	out := i
	out.Args = args
	out.Env = slices.Clone(i.Env)
	return out
}

// clone returns a deep copy of i.
func (i Invocation) clone() Invocation {
	return i.withArgs(slices.Clone(i.Args))
}

// Cmd converts the invocation into a runner command.
func (i Invocation) Cmd() github.Cmd {
	return github.Cmd{
		Name: i.Executable,
		Args: slices.Clone(i.Args),
		Dir:  i.Dir,
		Env:  slices.Clone(i.Env),
	}
}
