package github

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v66/github"

	"github.com/cexll/gitwrap/internal/hosts"
)

const (
	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 10 * time.Second
)

// RemoteAPIClient is the subset of the hosting API the engine consumes.
// Implementations never retry; retry policy belongs to the caller.
type RemoteAPIClient interface {
	// GetCommitStatus returns the combined commit status for ref.
	GetCommitStatus(ctx context.Context, project *Project, ref string) (*CommitStatus, error)

	// GetCheckRuns returns check-runs for ref. Hosts without the checks
	// API yield ErrUnsupported.
	GetCheckRuns(ctx context.Context, project *Project, ref string) ([]CheckRun, error)

	// GetRepository returns visibility details used to pick a clone protocol.
	GetRepository(ctx context.Context, project *Project) (*RepoInfo, error)
}

// RepoInfo is the repository metadata used for clone URL decisions.
type RepoInfo struct {
	Owner   string
	Name    string
	Private bool
	HasWiki bool
	// CanPush is set when the authenticated user has push access.
	CanPush bool
}

// ClientOptions configures the REST client.
type ClientOptions struct {
	// BaseURL overrides scheme and authority of every request, e.g. a local
	// test server. Enterprise hosts still get the /api/v3 prefix.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the hosting REST API through go-github, one underlying
// client per host.
type Client struct {
	store   *hosts.Store
	opts    ClientOptions
	mu      sync.Mutex
	clients map[string]*gh.Client
}

// NewClient creates a client that authenticates with identities from store.
func NewClient(store *hosts.Store, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{
		store:   store,
		opts:    opts,
		clients: make(map[string]*gh.Client),
	}
}

// GetCommitStatus fetches GET /repos/{owner}/{repo}/commits/{ref}/status,
// following every page of statuses.
func (c *Client) GetCommitStatus(ctx context.Context, project *Project, ref string) (*CommitStatus, error) {
	client, err := c.forHost(project.Host)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var status *CommitStatus
	opts := &gh.ListOptions{PerPage: 100}
	for {
		combined, resp, err := client.Repositories.GetCombinedStatus(ctx, project.Owner, project.Name, ref, opts)
		if err != nil {
			return nil, classifyError("fetch commit status", project, ref, resp, err)
		}

		if status == nil {
			status = &CommitStatus{State: State(combined.GetState())}
		}
		for _, s := range combined.Statuses {
			status.Checks = append(status.Checks, Check{
				Context:   s.GetContext(),
				State:     State(s.GetState()),
				TargetURL: s.GetTargetURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return status, nil
}

// GetCheckRuns fetches GET /repos/{owner}/{repo}/commits/{ref}/check-runs,
// following every page.
func (c *Client) GetCheckRuns(ctx context.Context, project *Project, ref string) ([]CheckRun, error) {
	client, err := c.forHost(project.Host)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var runs []CheckRun
	opts := &gh.ListCheckRunsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		result, resp, err := client.Checks.ListCheckRunsForRef(ctx, project.Owner, project.Name, ref, opts)
		if err != nil {
			return nil, classifyError("fetch check runs", project, ref, resp, err)
		}

		for _, r := range result.CheckRuns {
			runs = append(runs, CheckRun{
				Name:       r.GetName(),
				Status:     r.GetStatus(),
				Conclusion: r.GetConclusion(),
				HTMLURL:    r.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return runs, nil
}

// GetRepository fetches GET /repos/{owner}/{repo}.
func (c *Client) GetRepository(ctx context.Context, project *Project) (*RepoInfo, error) {
	client, err := c.forHost(project.Host)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	repo, resp, err := client.Repositories.Get(ctx, project.Owner, project.Name)
	if err != nil {
		return nil, classifyError("fetch repository", project, "", resp, err)
	}

	return &RepoInfo{
		Owner:   repo.GetOwner().GetLogin(),
		Name:    repo.GetName(),
		Private: repo.GetPrivate(),
		HasWiki: repo.GetHasWiki(),
		CanPush: repo.GetPermissions()["push"],
	}, nil
}

// forHost returns the cached go-github client for host, building it on first
// use. The default host talks to the public API root; every other host is
// treated as Enterprise and gets the /api/v3 prefix.
func (c *Client) forHost(host string) (*gh.Client, error) {
	host = strings.ToLower(host)

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[host]; ok {
		return client, nil
	}

	client := gh.NewClient(c.opts.HTTPClient)

	if id, err := c.store.Resolve(host); err == nil && id.HasToken() {
		client = client.WithAuthToken(id.OAuthToken)
	} else {
		log.Printf("[GitHub] No OAuth token for %s, sending unauthenticated requests", host)
	}

	if c.store.IsDefaultHost(host) {
		if c.opts.BaseURL != "" {
			base, err := url.Parse(strings.TrimSuffix(c.opts.BaseURL, "/") + "/")
			if err != nil {
				return nil, fmt.Errorf("invalid API base URL: %w", err)
			}
			client.BaseURL = base
		}
	} else {
		base := "https://" + host
		if c.opts.BaseURL != "" {
			base = c.opts.BaseURL
		}
		enterprise, err := client.WithEnterpriseURLs(base, base)
		if err != nil {
			return nil, fmt.Errorf("invalid enterprise URL for %s: %w", host, err)
		}
		client = enterprise
	}

	c.clients[host] = client
	return client, nil
}

// classifyError maps a go-github failure onto the sentinel taxonomy.
func classifyError(op string, project *Project, ref string, resp *gh.Response, err error) error {
	apiErr := &APIError{Op: op, Project: project.String(), Ref: ref, Kind: ErrNetwork, Err: err}

	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		// throttling is transient; let the caller decide whether to retry
		return apiErr
	}

	if resp == nil || resp.Response == nil {
		return apiErr
	}

	switch code := resp.StatusCode; {
	case code == http.StatusNotFound:
		apiErr.Kind = ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		apiErr.Kind = ErrAuthRequired
	case code == http.StatusUnprocessableEntity:
		apiErr.Kind = ErrUnsupported
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500:
		apiErr.Kind = ErrNetwork
	case code >= 400:
		apiErr.Kind = ErrUnexpected
	}
	return apiErr
}
