package hosts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// fileEntry mirrors one record of the hosts file:
//
//	github.com:
//	- user: mislav
//	  oauth_token: OTOKEN
//	  protocol: https
type fileEntry struct {
	User       string `yaml:"user"`
	OAuthToken string `yaml:"oauth_token,omitempty"`
	Protocol   string `yaml:"protocol,omitempty"`
}

// ConfigDir returns $XDG_CONFIG_HOME, falling back to ~/.config. It is empty
// when neither can be determined.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}

// DefaultPath returns the hosts file location: $XDG_CONFIG_HOME/hub, falling
// back to ~/.config/hub.
func DefaultPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "hub")
}

// LoadFile reads overlay entries from path. A missing file yields no entries.
// Hosts are emitted in sorted order; within a host, later records win when
// passed to NewStore.
func LoadFile(path string) ([]Entry, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read hosts file: %w", err)
	}

	var raw map[string][]fileEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}

	hostNames := make([]string, 0, len(raw))
	for h := range raw {
		hostNames = append(hostNames, h)
	}
	sort.Strings(hostNames)

	var entries []Entry
	for _, h := range hostNames {
		for _, fe := range raw[h] {
			entries = append(entries, Entry{
				Host:       h,
				User:       fe.User,
				OAuthToken: fe.OAuthToken,
				Protocol:   fe.Protocol,
			})
		}
	}
	return entries, nil
}
