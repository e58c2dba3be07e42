package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/portfolio-core/internal/domain"
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
// REST calls go to the server root and GraphQL calls to /graphql.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gateway, err := newGateway(server.Client(), server.URL+"/", server.URL+"/graphql", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return gateway, server
}

// graphqlVariables decodes the variables of a GraphQL request body.
func graphqlVariables(t *testing.T, r *http.Request) (string, map[string]any) {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	require.NoError(t, json.Unmarshal(body, &req))
	return req.Query, req.Variables
}

func TestYearWindow(t *testing.T) {
	from, to := YearWindow(2023)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), to)
}

func TestGitHubGateway_FetchContributionYears(t *testing.T) {
	testCases := []struct {
		name           string
		responseBody   string
		expectedYears  []int
		expectError    bool
		expectedErrMsg string
	}{
		{
			name:          "happy path - returns reported years",
			responseBody:  `{"data":{"user":{"contributionsCollection":{"contributionYears":[2023,2022]}}}}`,
			expectedYears: []int{2023, 2022},
		},
		{
			name:           "error case - GraphQL errors",
			responseBody:   `{"errors":[{"message":"Could not resolve to a User with the login of 'nobody'."}]}`,
			expectError:    true,
			expectedErrMsg: "failed to execute GraphQL query for contribution years",
		},
		{
			name:           "error case - missing user",
			responseBody:   `{"data":{"user":null}}`,
			expectError:    true,
			expectedErrMsg: "no contribution years reported",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				query, vars := graphqlVariables(t, r)
				assert.Contains(t, query, "contributionYears")
				assert.Equal(t, "any-user", vars["login"])
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, _ := setupTestGateway(t, http.HandlerFunc(handler))

			years, err := gateway.FetchContributionYears(context.Background(), "any-user")

			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedYears, years)
			}
		})
	}
}

func TestGitHubGateway_FetchYearContributions(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		query, vars := graphqlVariables(t, r)
		assert.Contains(t, query, "totalCommitContributions")
		assert.Equal(t, "2022-01-01T00:00:00Z", vars["from"])
		assert.Equal(t, "2022-12-31T23:59:59Z", vars["to"])
		fmt.Fprint(w, `{"data":{"user":{"contributionsCollection":{"totalCommitContributions":42}}}}`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler))

	count, err := gateway.FetchYearContributions(context.Background(), "any-user", 2022)

	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestGitHubGateway_FetchYearContributions_ServerError(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler))

	_, err := gateway.FetchYearContributions(context.Background(), "any-user", 2022)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "2022 contributions")
}

func TestGitHubGateway_FetchRepositories(t *testing.T) {
	testCases := []struct {
		name          string
		handlerFunc   func(w http.ResponseWriter, r *http.Request)
		expected      []domain.Repository
		expectedIsErr error
	}{
		{
			name: "happy path - maps repositories",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/users/any-user/repos", r.URL.Path)
				fmt.Fprint(w, `[
					{"id": 1, "name": "repo-a", "html_url": "https://github.com/any-user/repo-a", "languages_url": "https://api.github.com/repos/any-user/repo-a/languages"},
					{"id": 2, "name": "repo-b", "html_url": "https://github.com/any-user/repo-b"}
				]`)
			},
			expected: []domain.Repository{
				{ID: 1, Name: "repo-a", URL: "https://github.com/any-user/repo-a", LanguagesURL: "https://api.github.com/repos/any-user/repo-a/languages"},
				{ID: 2, Name: "repo-b", URL: "https://github.com/any-user/repo-b"},
			},
		},
		{
			name: "empty list - returns empty slice",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `[]`)
			},
			expected: []domain.Repository{},
		},
		{
			name: "rate limit - 403 with exhausted quota",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-RateLimit-Limit", "60")
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message": "API rate limit exceeded for 127.0.0.1."}`)
			},
			expectedIsErr: domain.ErrRateLimited,
		},
		{
			name: "rate limit - bare 403",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message": "Forbidden"}`)
			},
			expectedIsErr: domain.ErrRateLimited,
		},
		{
			name: "malformed - object instead of array",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"message": "Not Found", "documentation_url": "https://docs.github.com"}`)
			},
			expectedIsErr: domain.ErrMalformedResponse,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, _ := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))

			repos, err := gateway.FetchRepositories(context.Background(), "any-user")

			if tc.expectedIsErr != nil {
				assert.ErrorIs(t, err, tc.expectedIsErr)
				assert.Nil(t, repos)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, repos)
			}
		})
	}
}

// TestNewGitHubGateway_RateLimitsAreNotRetried goes through the production transport stack
// (oauth2, go-github-ratelimit, httpcache) and checks that a limited response comes back at once.
func TestNewGitHubGateway_RateLimitsAreNotRetried(t *testing.T) {
	testCases := []struct {
		name    string
		headers map[string]string
		body    string
	}{
		{
			name:    "secondary limit with Retry-After",
			headers: map[string]string{"Retry-After": "2"},
			body:    `{"message": "You have exceeded a secondary rate limit. Please wait a few minutes before you try again.", "documentation_url": "https://docs.github.com/rest/overview/rate-limits-for-the-rest-api#about-secondary-rate-limits"}`,
		},
		{
			name: "primary limit with exhausted quota",
			headers: map[string]string{
				"X-RateLimit-Limit":     "5000",
				"X-RateLimit-Remaining": "0",
				"X-RateLimit-Reset":     fmt.Sprint(time.Now().Add(time.Hour).Unix()),
				"X-RateLimit-Resource":  "core",
			},
			body: `{"message": "API rate limit exceeded for user."}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
				for k, v := range tc.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, tc.body)
			}))
			t.Cleanup(server.Close)

			gateway, err := NewGitHubGateway(Options{
				Token:      "ghp_test",
				APIURL:     server.URL,
				GraphQLURL: server.URL + "/graphql",
			}, slog.New(slog.DiscardHandler))
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			// Act
			start := time.Now()
			repos, err := gateway.FetchRepositories(ctx, "any-user")
			elapsed := time.Since(start)

			// Assert
			assert.ErrorIs(t, err, domain.ErrRateLimited)
			assert.NotErrorIs(t, err, context.DeadlineExceeded)
			assert.Nil(t, repos)
			assert.Equal(t, int32(1), calls.Load(), "a rate-limited request must not be resent")
			assert.Less(t, elapsed, time.Second)
		})
	}
}

func TestGitHubGateway_FetchRepositories_Pagination(t *testing.T) {
	var server *httptest.Server
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"id": 2, "name": "repo-b"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/users/any-user/repos?page=2>; rel="next"`, server.URL))
		fmt.Fprint(w, `[{"id": 1, "name": "repo-a"}]`)
	}
	gateway, srv := setupTestGateway(t, http.HandlerFunc(handler))
	server = srv

	repos, err := gateway.FetchRepositories(context.Background(), "any-user")

	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "repo-a", repos[0].Name)
	assert.Equal(t, "repo-b", repos[1].Name)
}

func TestGitHubGateway_FetchLanguages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/any-user/repo-a/languages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"TypeScript": 12000, "CSS": 800, "Go": 5000000000}`)
	})
	mux.HandleFunc("/repos/any-user/broken/languages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})
	gateway, server := setupTestGateway(t, mux)

	t.Run("happy path - returns sorted keys", func(t *testing.T) {
		names, err := gateway.FetchLanguages(context.Background(), server.URL+"/repos/any-user/repo-a/languages")
		require.NoError(t, err)
		assert.Equal(t, []string{"CSS", "Go", "TypeScript"}, names)
	})

	t.Run("error case - non-success status", func(t *testing.T) {
		_, err := gateway.FetchLanguages(context.Background(), server.URL+"/repos/any-user/broken/languages")
		assert.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "failed to fetch languages"))
	})
}
