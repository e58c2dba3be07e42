// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_primary_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_secondary_ratelimit"

	"github.com/naka-gawa/portfolio-core/internal/domain"
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	FetchContributionYears(ctx context.Context, login string) ([]int, error)
	FetchYearContributions(ctx context.Context, login string, year int) (int, error)
	FetchRepositories(ctx context.Context, login string) ([]domain.Repository, error)
	FetchLanguages(ctx context.Context, languagesURL string) ([]string, error)
}

// Compile-time interface satisfaction check.
var _ Fetcher = (*GitHubGateway)(nil)

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *slog.Logger
}

// Options configures the endpoints and credential of a GitHubGateway.
// Empty URLs select the public github.com endpoints.
type Options struct {
	Token      string
	APIURL     string
	GraphQLURL string
}

// contributionYearsQuery lists the calendar years in which the user has recorded activity.
type contributionYearsQuery struct {
	User struct {
		ContributionsCollection struct {
			ContributionYears []int
		}
	} `graphql:"user(login: $login)"`
}

// yearContributionsQuery asks for the commit contribution total inside an explicit window.
type yearContributionsQuery struct {
	User struct {
		ContributionsCollection struct {
			TotalCommitContributions int
		} `graphql:"contributionsCollection(from: $from, to: $to)"`
	} `graphql:"user(login: $login)"`
}

// NewGitHubGateway creates a gateway with the following transport stack, shared by REST and GraphQL:
//  1. oauth2 (bearer token)
//  2. go-github-ratelimit (primary limit guard; secondary limits are passed through, never slept on)
//  3. httpcache (ETag-based conditional request caching, process lifetime only)
func NewGitHubGateway(opts Options, logger *slog.Logger) (*GitHubGateway, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport,
		github_secondary_ratelimit.WithSingleSleepLimit(0, func(cc *github_secondary_ratelimit.CallbackContext) {
			logger.Warn("github secondary rate limit hit", "url", cc.Request.URL.String(), "reset_at", cc.ResetTime)
		}),
	)
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitClient.Transport,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
		},
	}
	return newGateway(httpClient, opts.APIURL, opts.GraphQLURL, logger)
}

// newGateway wires both clients onto httpClient. It is also the seam used by tests.
func newGateway(httpClient *http.Client, apiURL, graphqlURL string, logger *slog.Logger) (*GitHubGateway, error) {
	restClient := github.NewClient(httpClient)
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		u, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("parsing API URL: %w", err)
		}
		restClient.BaseURL = u
	}

	graphqlClient := githubv4.NewClient(httpClient)
	if graphqlURL != "" {
		graphqlClient = githubv4.NewEnterpriseClient(graphqlURL, httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
	}, nil
}

// YearWindow returns the UTC window used to scope a single year's contribution query.
func YearWindow(year int) (from, to time.Time) {
	from = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to = time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
	return from, to
}

// FetchContributionYears returns the years in which login has recorded activity.
// An empty answer is reported as a malformed response.
func (g *GitHubGateway) FetchContributionYears(ctx context.Context, login string) ([]int, error) {
	g.logger.Debug("fetching contribution years", "login", login)
	var q contributionYearsQuery
	variables := map[string]any{"login": githubv4.String(login)}
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to execute GraphQL query for contribution years: %w", err)
	}
	years := q.User.ContributionsCollection.ContributionYears
	if len(years) == 0 {
		return nil, fmt.Errorf("%w: no contribution years reported for %s", domain.ErrMalformedResponse, login)
	}
	g.logger.Debug("contribution years fetched", "login", login, "years", years)
	return years, nil
}

// FetchYearContributions returns login's commit contribution total for one calendar year.
func (g *GitHubGateway) FetchYearContributions(ctx context.Context, login string, year int) (int, error) {
	from, to := YearWindow(year)
	var q yearContributionsQuery
	variables := map[string]any{
		"login": githubv4.String(login),
		"from":  githubv4.DateTime{Time: from},
		"to":    githubv4.DateTime{Time: to},
	}
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return 0, fmt.Errorf("failed to execute GraphQL query for %d contributions: %w", year, err)
	}
	count := q.User.ContributionsCollection.TotalCommitContributions
	if count < 0 {
		return 0, fmt.Errorf("%w: negative contribution count %d for %d", domain.ErrMalformedResponse, count, year)
	}
	return count, nil
}

// FetchRepositories lists every public repository of login, following pagination.
// Rate limiting is reported as domain.ErrRateLimited and a body that is not a list
// as domain.ErrMalformedResponse, so callers can show an actionable message.
func (g *GitHubGateway) FetchRepositories(ctx context.Context, login string) ([]domain.Repository, error) {
	g.logger.Debug("fetching repositories", "login", login)
	opts := &github.RepositoryListByUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var repos []domain.Repository
	for {
		page, resp, err := g.restClient.Repositories.ListByUser(ctx, login, opts)
		if err != nil {
			return nil, classifyListError(resp, err)
		}
		g.logRateLimit(resp, "users/"+login+"/repos", opts.Page, len(page))

		for _, r := range page {
			repos = append(repos, mapRepository(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if repos == nil {
		repos = []domain.Repository{}
	}
	return repos, nil
}

// FetchLanguages returns the language names found at a repository's languages endpoint.
// Byte counts are discarded; names come back sorted.
func (g *GitHubGateway) FetchLanguages(ctx context.Context, languagesURL string) ([]string, error) {
	req, err := g.restClient.NewRequest(http.MethodGet, languagesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build languages request for %s: %w", languagesURL, err)
	}

	var breakdown map[string]int64
	resp, err := g.restClient.Do(ctx, req, &breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch languages from %s: %w", languagesURL, err)
	}
	g.logRateLimit(resp, languagesURL, 0, len(breakdown))

	names := make([]string, 0, len(breakdown))
	for name := range breakdown {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// classifyListError maps the differently shaped failures of the repository list call.
func classifyListError(resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var primaryErr *github_primary_ratelimit.RateLimitReachedError
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr), errors.As(err, &primaryErr):
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	case resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests):
		return fmt.Errorf("%w: status %d: %w", domain.ErrRateLimited, resp.StatusCode, err)
	case isDecodeError(err):
		return fmt.Errorf("%w: repository list is not an array: %w", domain.ErrMalformedResponse, err)
	}
	return fmt.Errorf("failed to list repositories with REST API: %w", err)
}

func isDecodeError(err error) bool {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	return errors.As(err, &typeErr) || errors.As(err, &syntaxErr)
}

// mapRepository converts a go-github Repository using the nil-safe getters.
func mapRepository(r *github.Repository) domain.Repository {
	return domain.Repository{
		ID:           r.GetID(),
		Name:         r.GetName(),
		URL:          r.GetHTMLURL(),
		LanguagesURL: r.GetLanguagesURL(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each REST call.
func (g *GitHubGateway) logRateLimit(resp *github.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	g.logger.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 10 {
		g.logger.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
