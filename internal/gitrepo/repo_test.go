package gitrepo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	format "github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a repository with one empty commit on master.
func initRepo(t *testing.T) (string, *git.Repository, string) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	hash, err := wt.Commit("empty", &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	return dir, repo, hash.String()
}

func TestOpen_NotRepository(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestOpen_FromSubdirectory(t *testing.T) {
	dir, _, _ := initRepo(t)
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	r, err := Open(sub)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestRemotes_PushURLDefaultsToFetchURL(t *testing.T) {
	dir, repo, _ := initRepo(t)

	_, err := repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{"git://github.com/mislav/dotfiles.git"}})
	require.NoError(t, err)
	_, err = repo.CreateRemote(&config.RemoteConfig{Name: "fork", URLs: []string{"https://github.com/alice/dotfiles.git"}})
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.Raw.Section("remote").Subsection("origin").SetOption("pushurl", "git@github.com:mislav/dotfiles.git")
	require.NoError(t, repo.SetConfig(cfg))

	r, err := Open(dir)
	require.NoError(t, err)

	remotes, err := r.Remotes()
	require.NoError(t, err)
	require.Len(t, remotes, 2)
	assert.Equal(t, "fork", remotes[0].Name)
	assert.Equal(t, "https://github.com/alice/dotfiles.git", remotes[0].EffectivePushURL())

	origin, err := r.Remote("origin")
	require.NoError(t, err)
	assert.Equal(t, "git://github.com/mislav/dotfiles.git", origin.FetchURL)
	assert.Equal(t, "git@github.com:mislav/dotfiles.git", origin.EffectivePushURL())

	_, err = r.Remote("upstream")
	assert.ErrorIs(t, err, ErrRemoteNotFound)
	assert.False(t, r.HasRemote("upstream"))
	assert.True(t, r.HasRemote("fork"))
}

func TestResolveRefAndCurrentBranch(t *testing.T) {
	dir, _, head := initRepo(t)

	r, err := Open(dir)
	require.NoError(t, err)

	sha, err := r.ResolveRef("HEAD")
	require.NoError(t, err)
	assert.Equal(t, head, sha)

	branch, err := r.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "master", branch)

	_, err = r.ResolveRef("no-such-branch")
	assert.Error(t, err)
}

func TestCurrentBranch_Detached(t *testing.T) {
	dir, repo, head := initRepo(t)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(head)}))

	r, err := Open(dir)
	require.NoError(t, err)
	_, err = r.CurrentBranch()
	assert.ErrorIs(t, err, ErrDetachedHead)
}

func TestUpstreamRemote(t *testing.T) {
	dir, repo, _ := initRepo(t)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.Branches["master"] = &config.Branch{Name: "master", Remote: "upstream", Merge: "refs/heads/master"}
	cfg.Branches["local"] = &config.Branch{Name: "local", Remote: ".", Merge: "refs/heads/master"}
	require.NoError(t, repo.SetConfig(cfg))

	r, err := Open(dir)
	require.NoError(t, err)

	remote, ok := r.UpstreamRemote("master")
	assert.True(t, ok)
	assert.Equal(t, "upstream", remote)

	_, ok = r.UpstreamRemote("local")
	assert.False(t, ok, "branch tracking a local branch has no upstream remote")

	_, ok = r.UpstreamRemote("missing")
	assert.False(t, ok)
}

func TestSettings(t *testing.T) {
	dir, repo, _ := initRepo(t)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.Raw.Section("hub").SetOption("protocol", "https")
	cfg.Raw.Section("hub").AddOption("host", "git.my.org")
	cfg.Raw.Section("hub").AddOption("host", "ghe.corp.example")
	require.NoError(t, repo.SetConfig(cfg))

	r, err := Open(dir)
	require.NoError(t, err)

	settings, err := r.Settings()
	require.NoError(t, err)
	assert.Equal(t, "https", settings.Protocol)
	assert.Equal(t, []string{"git.my.org", "ghe.corp.example"}, settings.Hosts)
}

func TestSettingsFromRaw_Missing(t *testing.T) {
	assert.Equal(t, Settings{}, settingsFromRaw(nil))
	assert.Equal(t, Settings{}, settingsFromRaw(format.New()))
}

func TestSettings_Merge(t *testing.T) {
	global := Settings{Protocol: "ssh", Hosts: []string{"a.example"}}
	local := Settings{Hosts: []string{"b.example"}}

	merged := global.Merge(local)
	assert.Equal(t, "ssh", merged.Protocol)
	assert.Equal(t, []string{"a.example", "b.example"}, merged.Hosts)

	merged = merged.Merge(Settings{Protocol: "https"})
	assert.Equal(t, "https", merged.Protocol)
	assert.Equal(t, []string{"a.example"}, global.Hosts, "Merge must not mutate the receiver")
}
