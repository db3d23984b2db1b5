package command

import (
	"io"
	"strings"

	"github.com/spf13/pflag"
)

// Intent is the classified purpose of an invocation.
type Intent int

const (
	Passthrough Intent = iota
	Clone
	RemoteMutate
	PushGated
)

func (i Intent) String() string {
	switch i {
	case Clone:
		return "clone"
	case RemoteMutate:
		return "remote-mutate"
	case PushGated:
		return "push-gated"
	default:
		return "passthrough"
	}
}

// Role names a semantic argument extracted from argv.
type Role string

const (
	RoleURL        Role = "url"
	RoleRemoteName Role = "remoteName"
	RoleRef        Role = "ref"
	RoleSubcommand Role = "subcommand"
	RolePush       Role = "push"
	RolePrivate    Role = "private"
)

// Classification is the result of Classify. Index holds positions in the
// original Invocation.Args for roles backed by a single token.
type Classification struct {
	Intent Intent
	Verb   string
	Args   map[Role]string
	Index  map[Role]int
	// Strip lists argument positions that only gitwrap understands.
	Strip []int
	// Chdir collects -C directories given before the verb, in order.
	Chdir []string
}

func passthrough(verb string) Classification {
	return Classification{Intent: Passthrough, Verb: verb}
}

// optionalValue is stored for flags given without their optional value.
const optionalValue = "\x00"

// flagSpec lists the options of one verb. Entries are "long" or "long,x"
// where x is the single-letter shorthand.
type flagSpec struct {
	bools    []string
	values   []string
	optional []string
}

func (s flagSpec) flagSet(verb string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(verb, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, spec := range s.bools {
		name, short, _ := strings.Cut(spec, ",")
		fs.BoolP(name, short, false, "")
	}
	for _, spec := range s.values {
		name, short, _ := strings.Cut(spec, ",")
		fs.StringP(name, short, "", "")
	}
	for _, spec := range s.optional {
		name, short, _ := strings.Cut(spec, ",")
		fs.StringP(name, short, "", "")
		fs.Lookup(name).NoOptDefVal = optionalValue
	}
	return fs
}

var cloneFlags = flagSpec{
	bools: []string{
		"verbose,v", "quiet,q", "progress", "no-checkout,n", "bare", "mirror",
		"local,l", "no-local", "no-hardlinks", "shared,s", "dissociate",
		"remote-submodules", "no-remote-submodules", "single-branch",
		"no-single-branch", "tags", "no-tags", "shallow-submodules",
		"no-shallow-submodules", "sparse", "reject-shallow", "no-reject-shallow",
		"also-filter-submodules", "ipv4,4", "ipv6,6", "private,p",
	},
	values: []string{
		"branch,b", "depth", "reference", "reference-if-able", "origin,o",
		"config,c", "jobs,j", "upload-pack,u", "separate-git-dir",
		"shallow-exclude", "shallow-since", "template", "filter",
		"server-option", "bundle-uri", "ref-format", "revision",
	},
	optional: []string{"recurse-submodules", "recursive"},
}

var submoduleFlags = flagSpec{
	bools:  []string{"quiet,q", "force,f", "private,p"},
	values: []string{"branch,b", "name", "reference", "depth", "ref-format"},
}

var remoteFlags = flagSpec{
	bools:    []string{"verbose,v", "fetch,f", "tags", "no-tags", "push", "private,p"},
	values:   []string{"track,t", "master,m"},
	optional: []string{"mirror"},
}

var pushFlags = flagSpec{
	bools: []string{
		"all", "branches", "mirror", "tags", "follow-tags", "no-follow-tags",
		"atomic", "no-atomic", "dry-run,n", "force,f", "delete,d", "prune",
		"verbose,v", "quiet,q", "set-upstream,u", "verify", "no-verify",
		"thin", "no-thin", "progress", "no-progress", "porcelain",
		"force-if-includes", "no-force-if-includes", "no-signed",
		"no-force-with-lease", "no-recurse-submodules", "ipv4,4", "ipv6,6",
	},
	values:   []string{"receive-pack", "exec", "repo", "push-option,o", "recurse-submodules"},
	optional: []string{"signed", "force-with-lease"},
}

var mergeFlags = flagSpec{
	bools: []string{
		"no-stat,n", "stat", "summary", "no-summary", "no-log", "squash",
		"no-squash", "commit", "no-commit", "edit,e", "no-edit", "ff", "no-ff",
		"ff-only", "verbose,v", "quiet,q", "progress", "no-progress", "signoff",
		"no-signoff", "allow-unrelated-histories", "no-allow-unrelated-histories",
		"rerere-autoupdate", "no-rerere-autoupdate", "autostash", "no-autostash",
		"verify-signatures", "no-verify-signatures", "overwrite-ignore",
		"no-overwrite-ignore", "verify", "no-verify", "no-gpg-sign",
		"abort", "continue", "quit",
	},
	values:   []string{"strategy,s", "strategy-option,X", "message,m", "file,F", "into-name", "cleanup"},
	optional: []string{"gpg-sign,S", "log"},
}

// Classify inspects argv and never fails: anything it does not specifically
// recognize is Passthrough.
func Classify(inv Invocation) Classification {
	verbIdx, chdir, ok := skipGlobalOptions(inv.Args)
	if !ok {
		return passthrough("")
	}

	verb := inv.Args[verbIdx]
	rest := inv.Args[verbIdx+1:]
	offset := verbIdx + 1

	var c Classification
	switch verb {
	case "clone":
		c = classifyClone(verb, rest, offset)
	case "submodule":
		c = classifySubmodule(verb, rest, offset)
	case "remote":
		c = classifyRemote(verb, rest, offset)
	case "push":
		c = classifyPush(verb, rest, offset)
	case "merge":
		c = classifyMerge(verb, rest, offset)
	default:
		c = passthrough(verb)
	}
	if c.Intent != Passthrough {
		c.Chdir = chdir
	}
	return c
}

// skipGlobalOptions finds the verb after git's own options. Options that
// relocate the repository or only print information are left to git.
func skipGlobalOptions(args []string) (int, []string, bool) {
	var chdir []string
	for i := 0; i < len(args); i++ {
		tok := args[i]
		if !strings.HasPrefix(tok, "-") {
			return i, chdir, true
		}
		name, _, hasValue := strings.Cut(tok, "=")
		switch name {
		case "-C":
			if i+1 >= len(args) {
				return 0, nil, false
			}
			chdir = append(chdir, args[i+1])
			i++
		case "-c", "--namespace", "--config-env", "--super-prefix":
			if !hasValue {
				i++
			}
		case "--exec-path":
			if !hasValue {
				return 0, nil, false
			}
		case "--git-dir", "--work-tree", "--version", "-v", "--help", "-h",
			"--html-path", "--man-path", "--info-path", "--list-cmds", "--":
			return 0, nil, false
		}
	}
	return 0, nil, false
}

// parsedArgs is the outcome of parsing one verb's arguments.
type parsedArgs struct {
	fs *pflag.FlagSet
	// positionals are indices into the full argv.
	positionals []int
	// private are indices of standalone -p tokens.
	private []int
}

func (p *parsedArgs) changed(names ...string) bool {
	for _, name := range names {
		if p.fs.Changed(name) {
			return true
		}
	}
	return false
}

// parseVerbArgs validates args against the verb's flags and locates
// positionals. Any unknown option makes the whole invocation unrecognized.
func parseVerbArgs(verb string, flags flagSpec, args []string, offset int) (*parsedArgs, bool) {
	fs := flags.flagSet(verb)
	if err := fs.Parse(args); err != nil {
		return nil, false
	}

	p := &parsedArgs{fs: fs}
	privateTokens := 0
	for i := 0; i < len(args); i++ {
		tok := args[i]
		switch {
		case tok == "--":
			for j := i + 1; j < len(args); j++ {
				p.positionals = append(p.positionals, offset+j)
			}
			i = len(args)
		case strings.HasPrefix(tok, "--"):
			name, _, hasValue := strings.Cut(tok[2:], "=")
			f := fs.Lookup(name)
			if f == nil {
				return nil, false
			}
			if f.Name == "private" {
				privateTokens++
			}
			if !hasValue && f.NoOptDefVal == "" {
				i++
			}
		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			shorts := tok[1:]
			for k := 0; k < len(shorts); k++ {
				f := fs.ShorthandLookup(shorts[k : k+1])
				if f == nil {
					return nil, false
				}
				if f.Name == "private" {
					privateTokens++
					if tok == "-p" {
						p.private = append(p.private, offset+i)
					}
				}
				if f.NoOptDefVal == "" {
					// The rest of the group, or the next token, is the value.
					if k == len(shorts)-1 {
						i++
					}
					break
				}
			}
		default:
			p.positionals = append(p.positionals, offset+i)
		}
	}

	// -p is stripped before git runs, so it must be a standalone token.
	if privateTokens != len(p.private) {
		return nil, false
	}
	return p, true
}

func newClassification(intent Intent, verb string) Classification {
	return Classification{
		Intent: intent,
		Verb:   verb,
		Args:   make(map[Role]string),
		Index:  make(map[Role]int),
	}
}

func (c *Classification) set(role Role, value string, index int) {
	c.Args[role] = value
	if index >= 0 {
		c.Index[role] = index
	}
}

func (c *Classification) markPrivate(p *parsedArgs) {
	if len(p.private) > 0 {
		c.Args[RolePrivate] = "true"
		c.Strip = append(c.Strip, p.private...)
	}
}

func classifyClone(verb string, args []string, offset int) Classification {
	p, ok := parseVerbArgs(verb, cloneFlags, args, offset)
	if !ok || len(p.positionals) == 0 {
		return passthrough(verb)
	}

	c := newClassification(Clone, verb)
	idx := p.positionals[0]
	c.set(RoleURL, args[idx-offset], idx)
	c.markPrivate(p)
	return c
}

func classifySubmodule(verb string, args []string, offset int) Classification {
	p, ok := parseVerbArgs(verb, submoduleFlags, args, offset)
	if !ok || len(p.positionals) < 2 || args[p.positionals[0]-offset] != "add" {
		return passthrough(verb)
	}

	c := newClassification(Clone, verb)
	c.set(RoleSubcommand, "add", p.positionals[0])
	idx := p.positionals[1]
	c.set(RoleURL, args[idx-offset], idx)
	c.markPrivate(p)
	return c
}

func classifyRemote(verb string, args []string, offset int) Classification {
	p, ok := parseVerbArgs(verb, remoteFlags, args, offset)
	if !ok || len(p.positionals) < 2 {
		return passthrough(verb)
	}

	pos := func(n int) (string, int) {
		idx := p.positionals[n]
		return args[idx-offset], idx
	}

	sub, subIdx := pos(0)
	c := newClassification(RemoteMutate, verb)
	c.set(RoleSubcommand, sub, subIdx)

	switch sub {
	case "add":
		if p.changed("push") || len(p.positionals) > 3 {
			return passthrough(verb)
		}
	case "set-url":
		if p.changed("track", "master", "fetch", "tags", "no-tags", "mirror") || len(p.positionals) < 3 || len(p.positionals) > 4 {
			return passthrough(verb)
		}
		if p.changed("push") {
			c.set(RolePush, "true", -1)
		}
	default:
		return passthrough(verb)
	}

	name, nameIdx := pos(1)
	c.set(RoleRemoteName, name, nameIdx)
	if len(p.positionals) >= 3 {
		url, urlIdx := pos(2)
		c.set(RoleURL, url, urlIdx)
	}
	c.markPrivate(p)
	return c
}

func classifyPush(verb string, args []string, offset int) Classification {
	p, ok := parseVerbArgs(verb, pushFlags, args, offset)
	if !ok || len(p.positionals) > 2 {
		return passthrough(verb)
	}
	// Bulk, destructive, dry-run and hook-bypassing pushes are not gated.
	if p.changed("all", "branches", "mirror", "tags", "delete", "prune", "dry-run", "no-verify", "repo") {
		return passthrough(verb)
	}

	c := newClassification(PushGated, verb)
	if len(p.positionals) >= 1 {
		idx := p.positionals[0]
		c.set(RoleRemoteName, args[idx-offset], idx)
	}
	if len(p.positionals) == 2 {
		idx := p.positionals[1]
		src, ok := refspecSource(args[idx-offset])
		if !ok {
			return passthrough(verb)
		}
		c.set(RoleRef, src, idx)
	}
	return c
}

// refspecSource returns the local side of a push refspec.
func refspecSource(refspec string) (string, bool) {
	src, _, _ := strings.Cut(strings.TrimPrefix(refspec, "+"), ":")
	if src == "" || strings.Contains(src, "*") {
		return "", false
	}
	return src, true
}

func classifyMerge(verb string, args []string, offset int) Classification {
	p, ok := parseVerbArgs(verb, mergeFlags, args, offset)
	if !ok || len(p.positionals) != 1 {
		return passthrough(verb)
	}
	if p.changed("abort", "continue", "quit", "no-verify") {
		return passthrough(verb)
	}

	c := newClassification(PushGated, verb)
	idx := p.positionals[0]
	c.set(RoleRef, args[idx-offset], idx)
	return c
}
