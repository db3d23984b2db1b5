// Package gitrepo reads local repository state (remotes, refs and the hub.*
// settings) without spawning git.
package gitrepo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	format "github.com/go-git/go-git/v5/plumbing/format/config"
)

var (
	// ErrNotRepository is returned when dir is not inside a git repository.
	ErrNotRepository = errors.New("not a git repository")
	// ErrRemoteNotFound is returned for an unknown remote name.
	ErrRemoteNotFound = errors.New("remote not found")
	// ErrDetachedHead is returned when HEAD does not point at a branch.
	ErrDetachedHead = errors.New("HEAD is detached")
)

// Remote is a configured remote. An empty PushURL means pushes go to
// FetchURL.
type Remote struct {
	Name     string
	FetchURL string
	PushURL  string
}

// EffectivePushURL returns the URL pushes are sent to.
func (r Remote) EffectivePushURL() string {
	if r.PushURL != "" {
		return r.PushURL
	}
	return r.FetchURL
}

// Repo wraps a go-git repository opened from a working directory.
type Repo struct {
	repo *git.Repository
}

// Open finds the repository containing dir.
func Open(dir string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNotRepository
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return &Repo{repo: repo}, nil
}

// Remotes lists remotes sorted by name.
func (r *Repo) Remotes() ([]Remote, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return nil, fmt.Errorf("failed to read repo config: %w", err)
	}

	names := make([]string, 0, len(cfg.Remotes))
	for name := range cfg.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)

	remotes := make([]Remote, 0, len(names))
	for _, name := range names {
		remotes = append(remotes, remoteFromConfig(cfg, name))
	}
	return remotes, nil
}

// Remote returns the named remote.
func (r *Repo) Remote(name string) (*Remote, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return nil, fmt.Errorf("failed to read repo config: %w", err)
	}
	if _, ok := cfg.Remotes[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRemoteNotFound, name)
	}
	remote := remoteFromConfig(cfg, name)
	return &remote, nil
}

// HasRemote reports whether the named remote exists.
func (r *Repo) HasRemote(name string) bool {
	_, err := r.Remote(name)
	return err == nil
}

func remoteFromConfig(cfg *config.Config, name string) Remote {
	remote := Remote{Name: name}
	if rc := cfg.Remotes[name]; rc != nil && len(rc.URLs) > 0 {
		remote.FetchURL = rc.URLs[0]
	}
	if cfg.Raw != nil && cfg.Raw.Section("remote").HasSubsection(name) {
		remote.PushURL = cfg.Raw.Section("remote").Subsection(name).Option("pushurl")
	}
	return remote
}

// ResolveRef resolves a revision (branch, tag, SHA, HEAD) to a full SHA.
func (r *Repo) ResolveRef(rev string) (string, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	return hash.String(), nil
}

// CurrentBranch returns the short name of the checked-out branch.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}
	return head.Name().Short(), nil
}

// UpstreamRemote returns branch.<name>.remote, if set to a named remote.
func (r *Repo) UpstreamRemote(branch string) (string, bool) {
	cfg, err := r.repo.Config()
	if err != nil {
		return "", false
	}
	b, ok := cfg.Branches[branch]
	if !ok || b.Remote == "" || b.Remote == "." {
		return "", false
	}
	return b.Remote, true
}

// Settings returns the hub.* settings from the repository config.
func (r *Repo) Settings() (Settings, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read repo config: %w", err)
	}
	return settingsFromRaw(cfg.Raw), nil
}

// Settings are the hub.* git config values the wrapper honors.
type Settings struct {
	// Protocol is hub.protocol.
	Protocol string
	// Hosts are the hub.host entries (enterprise whitelist).
	Hosts []string
}

// Merge overlays o onto s: a non-empty protocol replaces, hosts accumulate.
func (s Settings) Merge(o Settings) Settings {
	out := Settings{Protocol: s.Protocol, Hosts: append([]string(nil), s.Hosts...)}
	if o.Protocol != "" {
		out.Protocol = o.Protocol
	}
	out.Hosts = append(out.Hosts, o.Hosts...)
	return out
}

// LoadGlobalSettings reads hub.* from the user's global git config.
func LoadGlobalSettings() (Settings, error) {
	cfg, err := config.LoadConfig(config.GlobalScope)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load global git config: %w", err)
	}
	return settingsFromRaw(cfg.Raw), nil
}

func settingsFromRaw(raw *format.Config) Settings {
	if raw == nil || !raw.HasSection("hub") {
		return Settings{}
	}
	section := raw.Section("hub")
	var hostList []string
	for _, h := range section.Options.GetAll("host") {
		if h = strings.TrimSpace(h); h != "" {
			hostList = append(hostList, h)
		}
	}
	return Settings{
		Protocol: strings.TrimSpace(section.Options.Get("protocol")),
		Hosts:    hostList,
	}
}
