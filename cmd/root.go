package main

import (
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cexll/gitwrap/internal/command"
	"github.com/cexll/gitwrap/internal/config"
	"github.com/cexll/gitwrap/internal/github"
	"github.com/cexll/gitwrap/internal/gitrepo"
	"github.com/cexll/gitwrap/internal/hosts"
)

const envFileName = "gitwrap.env"

const usage = `gitwrap [git arguments...]

Runs git, expanding owner/repo shorthands for clone, submodule add and
remote add/set-url, and refusing to push or merge commits whose CI status
is pending or failing. Everything else is passed to git unchanged.`

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gitwrap",
		Short: "git wrapper that knows about GitHub",
		Long:  usage,
		// Every flag belongs to git.
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		// run() prints errors and picks exit codes
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGit(cmd, args, command.Streams{In: stdin, Out: stdout, Err: stderr})
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}

func runGit(cmd *cobra.Command, args []string, streams command.Streams) error {
	// Only the per-user env file is read, never one from the working directory.
	if path := envFilePath(); path != "" {
		_ = loadDotEnv(path)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	if cfg.Verbose {
		log.SetOutput(streams.Err)
	}

	dir, err := getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	engine, err := newEngine(cfg, dir)
	if err != nil {
		return err
	}

	inv := command.Invocation{Executable: cfg.GitExecutable, Args: args, Dir: dir}
	result, err := engine.Execute(cmd.Context(), inv, streams)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return &exitStatus{code: result.ExitCode}
	}
	return nil
}

// envFilePath returns the per-user env file, e.g. ~/.config/gitwrap.env.
func envFilePath() string {
	dir := hosts.ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, envFileName)
}

// newEngine assembles the host store, API client and runner for one run.
func newEngine(cfg *config.Config, dir string) (*command.Engine, error) {
	settings := loadSettings(dir)

	configProtocol, err := hosts.ParseProtocol(settings.Protocol)
	if err != nil {
		return nil, &hosts.ConfigError{Reason: "hub.protocol: " + err.Error()}
	}
	envProtocol, err := hosts.ParseProtocol(cfg.Protocol)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	entries, err := hosts.LoadFile(cfg.HostsFile)
	if err != nil {
		return nil, err
	}
	entries = append(entries, cfg.EnvOverlay()...)

	whitelist := append(append([]string(nil), cfg.ExtraHosts...), settings.Hosts...)
	store, err := hosts.NewStore(cfg.DefaultHost, entries, whitelist)
	if err != nil {
		return nil, err
	}
	log.Printf("[Config] Default host %s, %d identities, %d whitelisted hosts", store.DefaultHost(), len(store.Hosts()), len(whitelist))

	client := github.NewClient(store, github.ClientOptions{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
	})

	return command.New(store, client, newRunner(), command.Options{
		EnvProtocol:         envProtocol,
		ConfigProtocol:      configProtocol,
		APIRetries:          cfg.APIRetries,
		PermissiveOnTimeout: cfg.PermissiveOnTimeout,
	}), nil
}

// loadSettings merges hub.* from the global git config and, when dir is in a
// repository, from the repository config.
func loadSettings(dir string) gitrepo.Settings {
	settings, err := loadGlobalSettings()
	if err != nil {
		log.Printf("[Config] Ignoring global git config: %v", err)
		settings = gitrepo.Settings{}
	}

	repo, err := gitrepo.Open(dir)
	if err != nil {
		return settings
	}
	local, err := repo.Settings()
	if err != nil {
		log.Printf("[Config] Ignoring repository git config: %v", err)
		return settings
	}
	return settings.Merge(local)
}
