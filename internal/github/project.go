package github

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/cexll/gitwrap/internal/hosts"
)

const (
	ownerPattern = `[a-zA-Z0-9][a-zA-Z0-9-]*`
	namePattern  = `[\w.-]+`
)

var (
	// nameWithOwnerRe matches "repo" or "owner/repo" shorthands.
	nameWithOwnerRe = regexp.MustCompile(`^` + ownerPattern + `(?:/` + namePattern + `)?$`)
	scpLikeURLRe    = regexp.MustCompile(`^(?:[\w.-]+@)?([\w.-]+):(.+)$`)
)

// Project identifies a repository on a host.
type Project struct {
	Owner string
	Name  string
	Host  string
}

// String returns "owner/name" for the default host and "host/owner/name"
// otherwise. Host is omitted when empty.
func (p *Project) String() string {
	if p.Host == "" {
		return p.Owner + "/" + p.Name
	}
	return p.Host + "/" + p.Owner + "/" + p.Name
}

// NameWithOwner returns "owner/name".
func (p *Project) NameWithOwner() string {
	return p.Owner + "/" + p.Name
}

// IsNameWithOwner reports whether s is a "repo" or "owner/repo" shorthand.
func IsNameWithOwner(s string) bool {
	return nameWithOwnerRe.MatchString(s)
}

// ParseProject parses "owner/repo" or "host/owner/repo". Host defaults to
// defaultHost.
func ParseProject(s, defaultHost string) (*Project, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			break
		}
		return &Project{Owner: parts[0], Name: strings.TrimSuffix(parts[1], ".git"), Host: strings.ToLower(defaultHost)}, nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			break
		}
		return &Project{Owner: parts[1], Name: strings.TrimSuffix(parts[2], ".git"), Host: strings.ToLower(parts[0])}, nil
	}
	return nil, fmt.Errorf("invalid project %q (expected [host/]owner/repo)", s)
}

// ProjectFromURL extracts the project from a git remote URL. Supported forms
// are scheme URLs (https, http, git, ssh) and scp-like "git@host:owner/repo".
func ProjectFromURL(raw string) (*Project, error) {
	host, path, err := splitRemoteURL(raw)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid GitHub URL: %s", raw)
	}

	return &Project{
		Owner: parts[0],
		Name:  strings.TrimSuffix(parts[1], ".git"),
		Host:  strings.ToLower(host),
	}, nil
}

func splitRemoteURL(raw string) (string, string, error) {
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", "", fmt.Errorf("invalid URL %q: %w", raw, err)
		}
		if u.Scheme == "file" || u.Hostname() == "" {
			return "", "", fmt.Errorf("not a remote URL: %s", raw)
		}
		return u.Hostname(), u.Path, nil
	}

	if m := scpLikeURLRe.FindStringSubmatch(raw); m != nil && !strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, ".") {
		return m[1], m[2], nil
	}

	return "", "", fmt.Errorf("not a remote URL: %s", raw)
}

// IsURL reports whether s is a scheme or scp-like remote URL.
func IsURL(s string) bool {
	_, _, err := splitRemoteURL(s)
	return err == nil
}

// GitURL builds the clone URL for the project using protocol. An empty
// protocol means the git protocol.
func (p *Project) GitURL(protocol hosts.Protocol) string {
	switch protocol {
	case hosts.ProtocolHTTPS, hosts.ProtocolHTTP:
		return fmt.Sprintf("%s://%s/%s/%s.git", protocol, p.Host, p.Owner, p.Name)
	case hosts.ProtocolSSH:
		return fmt.Sprintf("git@%s:%s/%s.git", p.Host, p.Owner, p.Name)
	default:
		return fmt.Sprintf("git://%s/%s/%s.git", p.Host, p.Owner, p.Name)
	}
}
