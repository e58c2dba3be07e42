package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/portfolio-core/internal/domain"
	"github.com/naka-gawa/portfolio-core/internal/gateway"
	"github.com/naka-gawa/portfolio-core/internal/usecase"
)

// activityReport is the printed result of one aggregation cycle.
type activityReport struct {
	Login               string                 `json:"login" yaml:"login"`
	Pie                 []domain.SeriesPoint   `json:"pie" yaml:"pie"`
	Summary             domain.ActivitySummary `json:"summary" yaml:"summary"`
	domain.ActivityView `yaml:",inline"`
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Aggregates GitHub activity and repository languages",
	Long: `Runs one aggregation cycle for the configured account: contribution years followed by
per-year commit totals, in parallel with the repository list followed by per-repository
languages. Stage failures are reported in the output's errors section rather than aborting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.HasGitHubToken() {
			return errors.New("GITHUB_TOKEN (or PORTFOLIO_GITHUB_TOKEN) environment variable is not set")
		}

		login := cfg.GitHubLogin
		if user, _ := cmd.Flags().GetString("user"); user != "" {
			login = user
		}

		// Inject dependencies and run the main business logic.
		githubGateway, err := gateway.NewGitHubGateway(gateway.Options{
			Token:      cfg.GitHubToken,
			APIURL:     cfg.GitHubAPIURL,
			GraphQLURL: cfg.GitHubGraphQLURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("create GitHub gateway: %w", err)
		}

		return runActivity(cmd, usecase.NewAggregator(githubGateway, login, cfg.FetchConcurrency, logger), login)
	},
}

func runActivity(cmd *cobra.Command, aggregator *usecase.Aggregator, login string) error {
	<-aggregator.Activate(cmd.Context())
	view := aggregator.Snapshot()
	aggregator.Release()

	for _, stage := range domain.Stages {
		if fe, ok := view.Err(stage); ok {
			logger.Warn("stage failed", "stage", stage, "message", fe.Message)
		}
	}

	summary, err := usecase.Summarize(view.Series)
	if err != nil {
		return fmt.Errorf("summarize activity: %w", err)
	}

	return writeOutput(cmd, activityReport{
		Login:        login,
		Pie:          usecase.PieSeries(view.Series),
		Summary:      summary,
		ActivityView: view,
	})
}

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.Flags().StringP("user", "u", "", "GitHub login to aggregate (defaults to the configured account)")
}
