// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultLogin is the account whose activity the portfolio aggregates.
const DefaultLogin = "AleaChlodnik"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken      string
	GitHubLogin      string
	GitHubAPIURL     string
	GitHubGraphQLURL string
	DBPath           string
	LogLevel         string
	LogFile          string
	FetchConcurrency int
}

// HasGitHubToken reports whether a bearer token was supplied.
func (c *Config) HasGitHubToken() bool {
	return c.GitHubToken != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// The token is read from PORTFOLIO_GITHUB_TOKEN, falling back to GITHUB_TOKEN.
// Optional variables with defaults: PORTFOLIO_GITHUB_LOGIN (DefaultLogin),
// PORTFOLIO_DB_PATH (portfolio.db), PORTFOLIO_LOG_LEVEL (info),
// PORTFOLIO_FETCH_CONCURRENCY (8). PORTFOLIO_GITHUB_API_URL, PORTFOLIO_GITHUB_GRAPHQL_URL
// and PORTFOLIO_LOG_FILE are empty unless set.
func Load() (*Config, error) {
	token := os.Getenv("PORTFOLIO_GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}

	login := DefaultLogin
	if v, ok := os.LookupEnv("PORTFOLIO_GITHUB_LOGIN"); ok && strings.TrimSpace(v) != "" {
		login = strings.TrimSpace(v)
	}

	dbPath := "portfolio.db"
	if v, ok := os.LookupEnv("PORTFOLIO_DB_PATH"); ok && v != "" {
		dbPath = v
	}

	logLevel := "info"
	if v, ok := os.LookupEnv("PORTFOLIO_LOG_LEVEL"); ok && v != "" {
		logLevel = strings.ToLower(v)
		switch logLevel {
		case "debug", "info", "warn", "error":
		default:
			return nil, fmt.Errorf("PORTFOLIO_LOG_LEVEL has invalid level %q", v)
		}
	}

	concurrency := 8
	if v, ok := os.LookupEnv("PORTFOLIO_FETCH_CONCURRENCY"); ok && v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORTFOLIO_FETCH_CONCURRENCY has invalid value %q: %w", v, err)
		}
		if parsed < 1 {
			return nil, fmt.Errorf("PORTFOLIO_FETCH_CONCURRENCY must be at least 1, got %d", parsed)
		}
		concurrency = parsed
	}

	return &Config{
		GitHubToken:      token,
		GitHubLogin:      login,
		GitHubAPIURL:     os.Getenv("PORTFOLIO_GITHUB_API_URL"),
		GitHubGraphQLURL: os.Getenv("PORTFOLIO_GITHUB_GRAPHQL_URL"),
		DBPath:           dbPath,
		LogLevel:         logLevel,
		LogFile:          os.Getenv("PORTFOLIO_LOG_FILE"),
		FetchConcurrency: concurrency,
	}, nil
}
