package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cexll/gitwrap/internal/github"
	"github.com/cexll/gitwrap/internal/gitrepo"
	"github.com/cexll/gitwrap/internal/hosts"
)

// Decision describes what Rewrite did with an invocation.
type Decision int

const (
	// DecisionPassthrough means the invocation is returned unchanged.
	DecisionPassthrough Decision = iota
	// DecisionRewrite means arguments were expanded or stripped.
	DecisionRewrite
	// DecisionProceed means a gated command passed its status check.
	DecisionProceed
)

func (d Decision) String() string {
	switch d {
	case DecisionRewrite:
		return "rewrite"
	case DecisionProceed:
		return "proceed"
	default:
		return "passthrough"
	}
}

// Repository is the local repository state the engine reads.
type Repository interface {
	Remotes() ([]gitrepo.Remote, error)
	Remote(name string) (*gitrepo.Remote, error)
	HasRemote(name string) bool
	ResolveRef(rev string) (string, error)
	CurrentBranch() (string, error)
	UpstreamRemote(branch string) (string, bool)
}

// RepoOpener opens the repository containing dir.
type RepoOpener func(dir string) (Repository, error)

func openGitRepo(dir string) (Repository, error) {
	repo, err := gitrepo.Open(dir)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// Options tunes protocol choice and the gating policy.
type Options struct {
	// EnvProtocol comes from GITWRAP_PROTOCOL.
	EnvProtocol hosts.Protocol
	// ConfigProtocol comes from git config hub.protocol.
	ConfigProtocol hosts.Protocol
	// APIRetries is how many times a network failure is retried.
	APIRetries int
	// PermissiveOnTimeout lets gated commands proceed when the status
	// cannot be fetched because of a network failure.
	PermissiveOnTimeout bool
}

// Engine rewrites invocations and runs them. One Engine serves one
// invocation; status lookups are memoized for its lifetime.
type Engine struct {
	store    *hosts.Store
	client   github.RemoteAPIClient
	runner   github.CommandRunner
	openRepo RepoOpener
	opts     Options

	states map[string]github.CombinedState
}

// New creates an engine backed by the local git repository.
func New(store *hosts.Store, client github.RemoteAPIClient, runner github.CommandRunner, opts Options) *Engine {
	return NewWithRepoOpener(store, client, runner, opts, openGitRepo)
}

// NewWithRepoOpener creates an engine with a custom repository opener (useful for testing)
func NewWithRepoOpener(store *hosts.Store, client github.RemoteAPIClient, runner github.CommandRunner, opts Options, open RepoOpener) *Engine {
	return &Engine{
		store:    store,
		client:   client,
		runner:   runner,
		openRepo: open,
		opts:     opts,
		states:   make(map[string]github.CombinedState),
	}
}

// Streams wires the child process to the caller's terminal. Nil fields are
// captured into the Result instead.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Execute rewrites inv and runs the result. Blocked commands never reach the
// runner.
func (e *Engine) Execute(ctx context.Context, inv Invocation, streams Streams) (*github.Result, error) {
	final, decision, err := e.Rewrite(ctx, inv)
	if err != nil {
		return nil, err
	}

	log.Printf("[Engine] %s: %s %s", decision, final.Executable, strings.Join(final.Args, " "))

	cmd := final.Cmd()
	cmd.Stdin = streams.In
	cmd.Stdout = streams.Out
	cmd.Stderr = streams.Err
	return e.runner.Run(ctx, cmd)
}

// Rewrite derives the invocation to run. The input is never modified.
func (e *Engine) Rewrite(ctx context.Context, inv Invocation) (Invocation, Decision, error) {
	c := Classify(inv)
	log.Printf("[Engine] Classified %q as %s", c.Verb, c.Intent)

	switch c.Intent {
	case Clone:
		return e.rewriteClone(ctx, inv, c)
	case RemoteMutate:
		return e.rewriteRemote(ctx, inv, c)
	case PushGated:
		return e.gate(ctx, inv, c)
	default:
		return inv.clone(), DecisionPassthrough, nil
	}
}

// workDir applies -C options to the invocation directory.
func workDir(inv Invocation, c Classification) string {
	dir := inv.Dir
	if dir == "" {
		dir = "."
	}
	for _, d := range c.Chdir {
		if filepath.IsAbs(d) {
			dir = d
		} else {
			dir = filepath.Join(dir, d)
		}
	}
	return dir
}

// replaceArgs copies args, substituting replace[i] for position i, inserting
// insertAfter[i] right after position i, and dropping positions in strip.
func replaceArgs(args []string, replace map[int]string, insertAfter map[int]string, strip []int) []string {
	drop := make(map[int]bool, len(strip))
	for _, i := range strip {
		drop[i] = true
	}

	out := make([]string, 0, len(args)+len(insertAfter))
	for i, a := range args {
		if drop[i] {
			continue
		}
		if r, ok := replace[i]; ok {
			a = r
		}
		out = append(out, a)
		if extra, ok := insertAfter[i]; ok {
			out = append(out, extra)
		}
	}
	return out
}

// stripOnly removes gitwrap-only flags and otherwise keeps inv intact.
func stripOnly(inv Invocation, c Classification) (Invocation, Decision, error) {
	if len(c.Strip) == 0 {
		return inv.clone(), DecisionPassthrough, nil
	}
	return inv.withArgs(replaceArgs(inv.Args, nil, nil, c.Strip)), DecisionRewrite, nil
}

// isShorthand reports whether target should be expanded into a URL rather
// than handed to git as a URL or local path.
func isShorthand(target, dir string) bool {
	if !github.IsNameWithOwner(target) || github.IsURL(target) {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, target))
	return err != nil
}

func (e *Engine) rewriteClone(ctx context.Context, inv Invocation, c Classification) (Invocation, Decision, error) {
	target := c.Args[RoleURL]
	if !isShorthand(target, workDir(inv, c)) {
		return stripOnly(inv, c)
	}

	private := c.Args[RolePrivate] != ""
	url, err := e.expandShorthand(ctx, target, private, c.Verb != "submodule")
	if err != nil {
		return Invocation{}, DecisionPassthrough, err
	}

	log.Printf("[Engine] Expanded %s to %s", target, url)
	args := replaceArgs(inv.Args, map[int]string{c.Index[RoleURL]: url}, nil, c.Strip)
	return inv.withArgs(args), DecisionRewrite, nil
}

// protocolFor picks the protocol for host. The boolean is false when nothing
// expresses a preference.
func (e *Engine) protocolFor(host string, private bool) (hosts.Protocol, bool) {
	if private {
		return hosts.ProtocolSSH, true
	}
	if e.opts.EnvProtocol != "" {
		return e.opts.EnvProtocol, true
	}
	if e.opts.ConfigProtocol != "" {
		return e.opts.ConfigProtocol, true
	}
	if id, err := e.store.Resolve(host); err == nil && id.Protocol != "" {
		return id.Protocol, true
	}
	return "", false
}

// expandShorthand turns "owner/repo" or "repo" into a clone URL on the
// default host. Without a protocol preference the repository is looked up
// and private or pushable repositories use ssh when allowSSH is set.
func (e *Engine) expandShorthand(ctx context.Context, nameWithOwner string, private, allowSSH bool) (string, error) {
	host := e.store.DefaultHost()
	if !strings.Contains(nameWithOwner, "/") {
		id, err := e.store.Resolve(host)
		if err != nil {
			return "", &hosts.ConfigError{Host: host, Reason: fmt.Sprintf("no user configured to expand %q", nameWithOwner)}
		}
		nameWithOwner = id.User + "/" + nameWithOwner
	}

	project, err := github.ParseProject(nameWithOwner, host)
	if err != nil {
		return "", err
	}
	wiki := strings.HasSuffix(project.Name, ".wiki")
	project.Name = strings.TrimSuffix(project.Name, ".wiki")

	protocol, explicit := e.protocolFor(host, private)
	if !explicit && allowSSH {
		info, err := e.client.GetRepository(ctx, project)
		switch {
		case err == nil:
			if info.Owner != "" && info.Name != "" {
				project.Owner, project.Name = info.Owner, info.Name
			}
			if wiki && !info.HasWiki {
				return "", fmt.Errorf("%s doesn't have a wiki", project.NameWithOwner())
			}
			if info.Private || info.CanPush {
				protocol = hosts.ProtocolSSH
			}
		case errors.Is(err, github.ErrNotFound):
			return "", fmt.Errorf("repository %s doesn't exist", project.NameWithOwner())
		default:
			log.Printf("[Engine] Repository lookup for %s failed, using git protocol: %v", project, err)
		}
	}

	if wiki {
		project.Name += ".wiki"
	}
	return project.GitURL(protocol), nil
}

func (e *Engine) rewriteRemote(ctx context.Context, inv Invocation, c Classification) (Invocation, Decision, error) {
	dir := workDir(inv, c)
	private := c.Args[RolePrivate] != ""
	name := c.Args[RoleRemoteName]

	if c.Args[RoleSubcommand] == "set-url" {
		if repo, err := e.openRepo(dir); err == nil && !repo.HasRemote(name) {
			log.Printf("[Engine] Remote %s does not exist, leaving set-url to git", name)
			return inv.clone(), DecisionPassthrough, nil
		}
	}

	url, hasURL := c.Args[RoleURL]
	if !hasURL {
		// "remote add NAME": NAME is the owner of a fork of the current repo.
		remoteURL, ok := e.forkURL(dir, name, private)
		if !ok {
			return stripOnly(inv, c)
		}
		log.Printf("[Engine] Remote %s points at %s", name, remoteURL)
		args := replaceArgs(inv.Args, nil, map[int]string{c.Index[RoleRemoteName]: remoteURL}, c.Strip)
		return inv.withArgs(args), DecisionRewrite, nil
	}

	if !strings.Contains(url, "/") || !isShorthand(url, dir) {
		return stripOnly(inv, c)
	}

	expanded, err := e.expandShorthand(ctx, url, private, true)
	if err != nil {
		return Invocation{}, DecisionPassthrough, err
	}

	log.Printf("[Engine] Expanded remote URL %s to %s", url, expanded)
	args := replaceArgs(inv.Args, map[int]string{c.Index[RoleURL]: expanded}, nil, c.Strip)
	return inv.withArgs(args), DecisionRewrite, nil
}

// forkURL builds the URL of owner's copy of the repository in dir. The
// repository name comes from the main remote, or the directory name without
// one.
func (e *Engine) forkURL(dir, owner string, private bool) (string, bool) {
	if !github.IsNameWithOwner(owner) || strings.Contains(owner, "/") {
		return "", false
	}

	host := e.store.DefaultHost()
	repoName := filepath.Base(mustAbs(dir))
	if repo, err := e.openRepo(dir); err == nil {
		if project, ok := mainProject(repo); ok {
			repoName = project.Name
			if e.store.IsKnownHost(project.Host) {
				host = project.Host
			}
		}
	}

	id, idErr := e.store.Resolve(host)
	if owner == "origin" {
		if idErr != nil {
			return "", false
		}
		owner = id.User
	}

	// Own repositories use ssh unless an http transport was asked for.
	protocol, _ := e.protocolFor(host, private)
	if idErr == nil && strings.EqualFold(owner, id.User) &&
		protocol != hosts.ProtocolHTTPS && protocol != hosts.ProtocolHTTP {
		protocol = hosts.ProtocolSSH
	}

	project := &github.Project{Owner: owner, Name: repoName, Host: host}
	return project.GitURL(protocol), true
}

// mainProject returns the project behind origin, falling back to the first
// remote that points at a hosted project.
func mainProject(repo Repository) (*github.Project, bool) {
	if origin, err := repo.Remote("origin"); err == nil {
		if project, err := github.ProjectFromURL(origin.FetchURL); err == nil {
			return project, true
		}
	}

	remotes, err := repo.Remotes()
	if err != nil {
		log.Printf("[Engine] Cannot list remotes: %v", err)
		return nil, false
	}
	for _, remote := range remotes {
		if project, err := github.ProjectFromURL(remote.FetchURL); err == nil {
			return project, true
		}
	}
	return nil, false
}

func mustAbs(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// gate checks the remote commit state of the ref a push or merge refers to.
// Anything that cannot be resolved locally proceeds unchanged.
func (e *Engine) gate(ctx context.Context, inv Invocation, c Classification) (Invocation, Decision, error) {
	repo, err := e.openRepo(workDir(inv, c))
	if err != nil {
		log.Printf("[Engine] No repository for %s: %v", c.Verb, err)
		return inv.clone(), DecisionPassthrough, nil
	}

	ref := c.Args[RoleRef]
	if ref == "" {
		ref = "HEAD"
	}

	project, ok := e.targetProject(repo, c.Verb, c.Args[RoleRemoteName], ref)
	if !ok {
		return inv.clone(), DecisionPassthrough, nil
	}
	if !e.store.IsKnownHost(project.Host) {
		log.Printf("[Engine] Host %s is not trusted, skipping status check", project.Host)
		return inv.clone(), DecisionPassthrough, nil
	}

	sha, err := repo.ResolveRef(ref)
	if err != nil {
		log.Printf("[Engine] Cannot resolve %s locally: %v", ref, err)
		return inv.clone(), DecisionPassthrough, nil
	}

	combined, err := e.commitState(ctx, project, sha)
	if err != nil {
		// An interrupted lookup never counts as a timeout.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Invocation{}, DecisionPassthrough, ctxErr
		}
		if errors.Is(err, github.ErrNetwork) && e.opts.PermissiveOnTimeout {
			log.Printf("[Engine] Status of %s unavailable, proceeding: %v", shortSHA(sha), err)
			return inv.clone(), DecisionProceed, nil
		}
		if errors.Is(err, github.ErrAuthRequired) {
			return Invocation{}, DecisionPassthrough, err
		}
		return Invocation{}, DecisionPassthrough, fmt.Errorf("failed to verify commit status of %s on %s: %w", shortSHA(sha), project.NameWithOwner(), err)
	}

	switch combined.State {
	case github.StateSuccess, github.StateAbsent:
		log.Printf("[Engine] Commit %s on %s is %q, proceeding", shortSHA(sha), project.NameWithOwner(), combined.State)
		return inv.clone(), DecisionProceed, nil
	}

	var failing []github.Check
	for _, check := range combined.Checks {
		if check.State != github.StateSuccess {
			failing = append(failing, check)
		}
	}
	return Invocation{}, DecisionPassthrough, &GatedError{
		Project: project.NameWithOwner(),
		Ref:     ref,
		SHA:     sha,
		State:   combined.State,
		Checks:  failing,
	}
}

// targetProject finds the project a push or merge talks to: the named
// remote, the remote a merged "remote/branch" belongs to, the current
// branch's upstream, then origin.
func (e *Engine) targetProject(repo Repository, verb, remoteName, ref string) (*github.Project, bool) {
	if remoteName == "" && verb == "merge" {
		if prefix, _, ok := strings.Cut(ref, "/"); ok && repo.HasRemote(prefix) {
			remoteName = prefix
		}
	}
	if remoteName == "" {
		remoteName = "origin"
		if branch, err := repo.CurrentBranch(); err == nil {
			if upstream, ok := repo.UpstreamRemote(branch); ok {
				remoteName = upstream
			}
		}
	}

	pushURL := remoteName
	if !github.IsURL(remoteName) {
		remote, err := repo.Remote(remoteName)
		if err != nil {
			log.Printf("[Engine] %v", err)
			return nil, false
		}
		pushURL = remote.EffectivePushURL()
	}

	project, err := github.ProjectFromURL(pushURL)
	if err != nil {
		log.Printf("[Engine] Remote %s is not a hosted project: %v", remoteName, err)
		return nil, false
	}
	return project, true
}

// commitState fetches and combines statuses and check-runs once per
// (project, sha). NotFound and Unsupported count as no data.
func (e *Engine) commitState(ctx context.Context, project *github.Project, sha string) (github.CombinedState, error) {
	key := project.String() + "@" + sha
	if cached, ok := e.states[key]; ok {
		return cached, nil
	}

	if !e.store.IsDefaultHost(project.Host) {
		if id, err := e.store.Resolve(project.Host); err != nil || !id.HasToken() {
			return github.CombinedState{}, &github.APIError{
				Op:      "check commit status",
				Project: project.String(),
				Ref:     sha,
				Kind:    github.ErrAuthRequired,
				Err:     fmt.Errorf("no OAuth token configured for %s", project.Host),
			}
		}
	}

	var status *github.CommitStatus
	err := github.RetryWithBackoff(ctx, e.opts.APIRetries, func() error {
		var err error
		status, err = e.client.GetCommitStatus(ctx, project, sha)
		return err
	})
	if err != nil && !isNoData(err) {
		return github.CombinedState{}, err
	}

	var runs []github.CheckRun
	err = github.RetryWithBackoff(ctx, e.opts.APIRetries, func() error {
		var err error
		runs, err = e.client.GetCheckRuns(ctx, project, sha)
		return err
	})
	if err != nil && !isNoData(err) {
		return github.CombinedState{}, err
	}

	combined := github.CombineStates(status, runs)
	e.states[key] = combined
	return combined, nil
}

func isNoData(err error) bool {
	return errors.Is(err, github.ErrNotFound) || errors.Is(err, github.ErrUnsupported)
}
