package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cexll/gitwrap/internal/hosts"
)

// Config holds all configuration for the gitwrap command
type Config struct {
	// Underlying executable
	GitExecutable string

	// Host identity settings
	HostsFile   string
	DefaultHost string
	GitHubUser  string
	GitHubToken string
	ExtraHosts  []string

	// Protocol preference; empty means no global preference
	Protocol string

	// Remote API settings
	APIBaseURL          string
	APITimeout          time.Duration
	APIRetries          int
	PermissiveOnTimeout bool

	// Diagnostics
	Verbose bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		GitExecutable:       getEnv("GITWRAP_GIT", "git"),
		HostsFile:           getEnv("GITWRAP_CONFIG", hosts.DefaultPath()),
		DefaultHost:         getEnv("GITHUB_HOST", hosts.DefaultHost),
		GitHubUser:          os.Getenv("GITHUB_USER"),
		GitHubToken:         os.Getenv("GITHUB_TOKEN"),
		ExtraHosts:          splitList(os.Getenv("GITWRAP_HOSTS")),
		Protocol:            strings.ToLower(strings.TrimSpace(os.Getenv("GITWRAP_PROTOCOL"))),
		APIBaseURL:          strings.TrimSpace(os.Getenv("GITWRAP_API_URL")),
		APITimeout:          getEnvDuration("GITWRAP_API_TIMEOUT", 10*time.Second),
		APIRetries:          getEnvInt("GITWRAP_API_RETRIES", 0),
		PermissiveOnTimeout: getEnvBool("GITWRAP_PERMISSIVE_ON_TIMEOUT", false),
		Verbose:             getEnvBool("GITWRAP_VERBOSE", false),
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that the configuration is usable
func (c *Config) validate() error {
	if strings.TrimSpace(c.GitExecutable) == "" {
		return fmt.Errorf("GITWRAP_GIT must not be empty")
	}
	if _, err := hosts.ParseProtocol(c.Protocol); err != nil {
		return fmt.Errorf("GITWRAP_PROTOCOL: %w", err)
	}
	if c.APIBaseURL != "" {
		u, err := url.Parse(c.APIBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("GITWRAP_API_URL must be an absolute URL, got %q", c.APIBaseURL)
		}
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("GITWRAP_API_TIMEOUT must be greater than 0")
	}
	if c.APIRetries < 0 {
		return fmt.Errorf("GITWRAP_API_RETRIES must be >= 0")
	}
	return nil
}

// EnvOverlay returns the identity derived from GITHUB_USER/GITHUB_TOKEN for
// the default host, if any. It is applied after the hosts file.
func (c *Config) EnvOverlay() []hosts.Entry {
	if c.GitHubUser == "" {
		return nil
	}
	return []hosts.Entry{{
		Host:       c.DefaultHost,
		User:       c.GitHubUser,
		OAuthToken: c.GitHubToken,
	}}
}

// getEnv gets environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5s") or plain seconds ("5").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
