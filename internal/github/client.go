// Package github is a small REST client for the repository search, README
// and commit endpoints.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/originality/internal/cache"
	"github.com/ppiankov/originality/internal/model"
	"github.com/ppiankov/originality/internal/util"
	"github.com/ppiankov/originality/internal/worker"
)

const (
	defaultAPIURL  = "https://api.github.com"
	maxRetries     = 3
	commitsPerPage = 100
	maxCommitPages = 50
	maxBodyBytes   = 10 << 20
)

// ErrRateLimited is returned when the API refuses requests until a reset time
var ErrRateLimited = errors.New("github API rate limit exceeded")

// ErrNotFound is returned for 404 responses
var ErrNotFound = errors.New("github resource not found")

// sleepFunc is the sleep function used between retries (injectable for tests)
var sleepFunc = time.Sleep

// Client talks to the GitHub REST API
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
	limiter    *worker.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewClient creates a client. limiter and c may be nil.
func NewClient(gh model.GitHubConfig, httpCfg model.HTTPConfig, limiter *worker.Limiter, c cache.Cache, cacheTTL time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := gh.APIURL
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      gh.Token,
		userAgent:  httpCfg.UserAgent,
		httpClient: util.NewHTTPClient(httpCfg, 0),
		limiter:    limiter,
		cache:      c,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// SearchOptions tunes a repository search
type SearchOptions struct {
	Sort    string // stars, forks, updated or "" for best match
	PerPage int
}

type searchResponse struct {
	Items []struct {
		FullName    string `json:"full_name"`
		Name        string `json:"name"`
		HTMLURL     string `json:"html_url"`
		Description string `json:"description"`
		Stars       int    `json:"stargazers_count"`
	} `json:"items"`
}

// SearchRepositories runs a repository search, ordered descending by the
// sort key. An empty description falls back to the repository name.
func (c *Client) SearchRepositories(ctx context.Context, query string, opts SearchOptions) ([]model.Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	if opts.Sort != "" {
		params.Set("sort", opts.Sort)
		params.Set("order", "desc")
	}
	if opts.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(opts.PerPage))
	}

	body, _, err := c.get(ctx, "/search/repositories?"+params.Encode(), "application/vnd.github+json", true)
	if err != nil {
		return nil, fmt.Errorf("search repositories: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	candidates := make([]model.Candidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		desc := strings.TrimSpace(item.Description)
		if desc == "" {
			desc = item.Name
		}
		candidates = append(candidates, model.Candidate{
			Name:        item.FullName,
			URL:         item.HTMLURL,
			Description: desc,
			Stars:       item.Stars,
		})
	}
	return candidates, nil
}

// Readme returns the raw README of owner/name
func (c *Client) Readme(ctx context.Context, fullName string) (string, error) {
	body, _, err := c.get(ctx, "/repos/"+fullName+"/readme", "application/vnd.github.raw", true)
	if err != nil {
		return "", fmt.Errorf("readme %s: %w", fullName, err)
	}
	return string(body), nil
}

type commitItem struct {
	Commit struct {
		Author struct {
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// CommitDates pages through the commit list of owner/name and returns the
// author dates, newest first
func (c *Client) CommitDates(ctx context.Context, fullName string) ([]time.Time, error) {
	var dates []time.Time
	for page := 1; page <= maxCommitPages; page++ {
		path := fmt.Sprintf("/repos/%s/commits?per_page=%d&page=%d", fullName, commitsPerPage, page)
		body, header, err := c.get(ctx, path, "application/vnd.github+json", false)
		if err != nil {
			if page == 1 && errors.Is(err, errEmptyRepository) {
				return nil, nil
			}
			return nil, fmt.Errorf("commits %s: %w", fullName, err)
		}

		var items []commitItem
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode commits: %w", err)
		}
		for _, item := range items {
			dates = append(dates, item.Commit.Author.Date)
		}

		if len(items) < commitsPerPage || !strings.Contains(header.Get("Link"), `rel="next"`) {
			return dates, nil
		}
	}
	c.logger.Warn("commit history truncated", "repo", fullName, "pages", maxCommitPages)
	return dates, nil
}

// Commits adapts the client to a single repository's commit history
func (c *Client) Commits(fullName string) *CommitHistory {
	return &CommitHistory{client: c, fullName: fullName}
}

// CommitHistory reads one repository's commit dates over the API
type CommitHistory struct {
	client   *Client
	fullName string
}

// CommitDates returns the author dates of the repository's commits
func (h *CommitHistory) CommitDates(ctx context.Context) ([]time.Time, error) {
	return h.client.CommitDates(ctx, h.fullName)
}

// errEmptyRepository is the 409 GitHub answers for a repository without commits
var errEmptyRepository = errors.New("repository is empty")

// statusError carries an unexpected HTTP status
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.code, e.body)
}

// get issues a GET with retry. Successful responses of cacheable requests
// are stored in the response cache.
func (c *Client) get(ctx context.Context, path, accept string, cacheable bool) ([]byte, http.Header, error) {
	fullURL := c.baseURL + path

	key := cache.Key("github", accept, fullURL)
	if cacheable && c.cache != nil {
		if data, ok := c.cache.Get(key); ok {
			return data, http.Header{}, nil
		}
	}

	var (
		body   []byte
		header http.Header
		err    error
	)
	for attempt := 0; attempt < maxRetries; attempt++ {
		body, header, err = c.do(ctx, fullURL, accept)
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			c.logger.Debug("retrying GitHub request", "url", fullURL, "attempt", attempt+1, "backoff", backoff, "error", err)
			sleepFunc(backoff)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	if cacheable && c.cache != nil {
		if cerr := c.cache.Set(key, body, c.cacheTTL); cerr != nil {
			c.logger.Debug("cache write failed", "error", cerr)
		}
	}
	return body, header, nil
}

func (c *Client) do(ctx context.Context, fullURL, accept string) ([]byte, http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, fullURL); err != nil {
			return nil, nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, resp.Header, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil, ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return nil, nil, errEmptyRepository
	case isRateLimited(resp):
		if c.limiter != nil {
			c.limiter.Backoff(fullURL, resetDelay(resp.Header))
		}
		return nil, nil, fmt.Errorf("%w (status %d)", ErrRateLimited, resp.StatusCode)
	default:
		return nil, nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
}

// isRateLimited reports primary (403 with no remaining quota) and secondary
// (429) rate limit responses
func isRateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// resetDelay reads Retry-After or X-RateLimit-Reset
func resetDelay(h http.Header) time.Duration {
	if s := h.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	if s := h.Get("X-RateLimit-Reset"); s != "" {
		if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Until(time.Unix(epoch, 0))
		}
	}
	return 0
}

// isRetryable returns true for transient failures: 5xx, secondary rate
// limits and network errors
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 && se.code < 600
	}
	if errors.Is(err, ErrRateLimited) {
		return strings.Contains(err.Error(), "status 429")
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
