package hosts

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultHost is the public service host used when GITHUB_HOST is unset.
const DefaultHost = "github.com"

// Protocol is the transport preference for a host.
type Protocol string

const (
	ProtocolHTTPS Protocol = "https"
	ProtocolSSH   Protocol = "ssh"
	ProtocolGit   Protocol = "git"
	ProtocolHTTP  Protocol = "http"
)

// ParseProtocol validates a protocol name. The empty string is allowed and
// means "no preference".
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ProtocolHTTPS, ProtocolSSH, ProtocolGit, ProtocolHTTP:
		return p, nil
	default:
		return "", fmt.Errorf("unknown protocol %q", s)
	}
}

var (
	// ErrNotFound is returned when no identity is configured for a host.
	ErrNotFound = errors.New("host not configured")
)

// ConfigError reports a malformed or incomplete host entry.
type ConfigError struct {
	Host   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Host == "" {
		return "invalid host config: " + e.Reason
	}
	return fmt.Sprintf("invalid host config for %s: %s", e.Host, e.Reason)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// Entry is one overlay record as persisted or derived from the environment.
type Entry struct {
	Host       string
	User       string
	OAuthToken string
	Protocol   string
}

// Identity is the resolved, immutable credential set for a host.
type Identity struct {
	Host       string
	User       string
	OAuthToken string
	Protocol   Protocol
}

// HasToken reports whether an OAuth token is configured.
func (i Identity) HasToken() bool {
	return i.OAuthToken != ""
}

// Store is a read-only snapshot of host identities and the enterprise
// whitelist. Build it once per invocation with NewStore.
type Store struct {
	defaultHost string
	identities  map[string]Identity
	whitelist   map[string]bool
}

// NewStore merges overlays in order into a snapshot. Later entries for the
// same host replace earlier ones.
func NewStore(defaultHost string, overlays []Entry, whitelist []string) (*Store, error) {
	defaultHost = normalizeHost(defaultHost)
	if defaultHost == "" {
		defaultHost = DefaultHost
	}

	s := &Store{
		defaultHost: defaultHost,
		identities:  make(map[string]Identity, len(overlays)),
		whitelist:   make(map[string]bool, len(whitelist)),
	}

	for _, e := range overlays {
		host := normalizeHost(e.Host)
		if host == "" {
			return nil, &ConfigError{Reason: "entry without host"}
		}
		if strings.TrimSpace(e.User) == "" {
			return nil, &ConfigError{Host: host, Reason: "missing user"}
		}
		proto, err := ParseProtocol(e.Protocol)
		if err != nil {
			return nil, &ConfigError{Host: host, Reason: err.Error()}
		}
		s.identities[host] = Identity{
			Host:       host,
			User:       strings.TrimSpace(e.User),
			OAuthToken: strings.TrimSpace(e.OAuthToken),
			Protocol:   proto,
		}
	}

	for _, h := range whitelist {
		if host := normalizeHost(h); host != "" {
			s.whitelist[host] = true
		}
	}

	return s, nil
}

// Resolve returns the identity configured for host.
func (s *Store) Resolve(host string) (Identity, error) {
	id, ok := s.identities[normalizeHost(host)]
	if !ok {
		return Identity{}, fmt.Errorf("%w: %s", ErrNotFound, host)
	}
	return id, nil
}

// IsEnterpriseWhitelisted reports whether host was explicitly whitelisted.
func (s *Store) IsEnterpriseWhitelisted(host string) bool {
	return s.whitelist[normalizeHost(host)]
}

// IsKnownHost reports whether API calls may be made against host.
func (s *Store) IsKnownHost(host string) bool {
	h := normalizeHost(host)
	return h == s.defaultHost || s.whitelist[h]
}

// IsDefaultHost reports whether host is the public default host.
func (s *Store) IsDefaultHost(host string) bool {
	return normalizeHost(host) == s.defaultHost
}

// DefaultHost returns the host used for shorthand expansion.
func (s *Store) DefaultHost() string {
	return s.defaultHost
}

// Hosts returns the configured identity hosts, unordered.
func (s *Store) Hosts() []string {
	out := make([]string, 0, len(s.identities))
	for h := range s.identities {
		out = append(out, h)
	}
	return out
}

// normalizeHost case-folds and strips any scheme or trailing slash.
func normalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	return strings.TrimSuffix(host, "/")
}
