// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/portfolio-core/internal/domain"
	"github.com/naka-gawa/portfolio-core/internal/gateway"
)

// User-visible messages for stage errors.
const (
	msgYearsFailed    = "Failed to fetch contribution years."
	msgMetricsFailed  = "Failed to fetch contributions per year."
	msgRateLimited    = "GitHub API rate limit exceeded. Please try again later."
	msgMalformedRepos = "Unexpected response format for public repositories."
	msgReposFailed    = "Error fetching public repositories."
	msgTagsFailed     = "Error fetching repository languages."
)

const defaultConcurrency = 8

// Aggregator is the use case for aggregating a single account's GitHub activity.
// It orchestrates two independent fetch chains and exposes their merged result as an ActivityView.
type Aggregator struct {
	fetcher     gateway.Fetcher
	login       string
	concurrency int
	logger      *slog.Logger

	// generation is the "still current" guard; results computed under an older value are dropped.
	generation atomic.Uint64

	mu   sync.RWMutex
	view domain.ActivityView
}

// NewAggregator creates a new Aggregator for login. concurrency bounds every fan-out;
// values below 1 fall back to a default.
func NewAggregator(fetcher gateway.Fetcher, login string, concurrency int, logger *slog.Logger) *Aggregator {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	a := &Aggregator{
		fetcher:     fetcher,
		login:       login,
		concurrency: concurrency,
		logger:      logger,
		view: domain.ActivityView{
			Tags:   domain.TagSet{},
			Errors: map[domain.Stage]domain.FetchError{},
			Status: map[domain.Stage]domain.StageStatus{},
		},
	}
	for _, s := range domain.Stages {
		a.view.Status[s] = domain.StatusIdle
	}
	return a
}

// Snapshot returns a deep copy of the current view.
func (a *Aggregator) Snapshot() domain.ActivityView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view.Clone()
}

// Activate starts a fresh aggregation cycle and returns a channel that is closed once both
// chains have settled. Results of any earlier cycle still in flight are discarded.
func (a *Aggregator) Activate(ctx context.Context) <-chan struct{} {
	gen := a.generation.Add(1)
	a.logger.Info("Usecase: Starting activity aggregation...", "login", a.login, "cycle", gen)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var eg errgroup.Group
		eg.Go(func() error {
			_ = a.discoverActiveYears(ctx, gen)
			return nil
		})
		eg.Go(func() error {
			_ = a.fetchRepositories(ctx, gen)
			return nil
		})
		_ = eg.Wait()
		a.logger.Info("Usecase: Aggregation cycle settled.", "cycle", gen)
	}()
	return done
}

// Release marks the current cycle as torn down. Late results from in-flight requests are
// not cancelled but are never applied.
func (a *Aggregator) Release() {
	a.generation.Add(1)
}

// DiscoverActiveYears fetches the account's contribution years and, on success, the per-year metrics.
func (a *Aggregator) DiscoverActiveYears(ctx context.Context) error {
	return a.discoverActiveYears(ctx, a.generation.Load())
}

// FetchYearMetrics fetches one commit-contribution total per year, concurrently.
// A failed year counts as zero; the result is sorted by year and replaces the series in one step.
func (a *Aggregator) FetchYearMetrics(ctx context.Context, years []int) ([]domain.YearMetric, error) {
	return a.fetchYearMetrics(ctx, a.generation.Load(), years)
}

// FetchRepositories fetches the repository list and, on success, discovers its tags.
func (a *Aggregator) FetchRepositories(ctx context.Context) error {
	return a.fetchRepositories(ctx, a.generation.Load())
}

// DiscoverTags fetches every repository's languages concurrently and replaces the TagSet with their union.
// A repository whose fetch fails is skipped.
func (a *Aggregator) DiscoverTags(ctx context.Context, repos []domain.Repository) (domain.TagSet, error) {
	return a.discoverTags(ctx, a.generation.Load(), repos)
}

func (a *Aggregator) discoverActiveYears(ctx context.Context, gen uint64) error {
	a.begin(gen, domain.StageYears)

	years, err := a.fetcher.FetchContributionYears(ctx, a.login)
	if err != nil {
		a.logger.Error("contribution years discovery failed", "login", a.login, "error", err)
		a.fail(gen, domain.StageYears, msgYearsFailed)
		return fmt.Errorf("%w: %w", domain.ErrDiscoveryFailure, err)
	}
	a.apply(gen, func(v *domain.ActivityView) {
		v.Status[domain.StageYears] = domain.StatusLoaded
	})

	_, err = a.fetchYearMetrics(ctx, gen, years)
	return err
}

func (a *Aggregator) fetchYearMetrics(ctx context.Context, gen uint64, years []int) ([]domain.YearMetric, error) {
	a.begin(gen, domain.StagePerYearMetrics)

	if err := validateYears(years); err != nil {
		a.logger.Error("invalid years list", "years", years, "error", err)
		a.fail(gen, domain.StagePerYearMetrics, msgMetricsFailed)
		return nil, fmt.Errorf("%w: %w", domain.ErrBatchFetchFailure, err)
	}

	a.logger.Debug("fetching contributions per year", "years", years)
	metrics := make([]domain.YearMetric, len(years))
	var eg errgroup.Group
	eg.SetLimit(a.concurrency)
	for i, year := range years {
		eg.Go(func() error {
			count, err := a.fetcher.FetchYearContributions(ctx, a.login, year)
			if err != nil {
				a.logger.Warn("per-year contribution fetch failed, counting as zero", "year", year, "error", err)
				count = 0
			}
			metrics[i] = domain.YearMetric{Year: year, ContributionCount: count}
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		a.fail(gen, domain.StagePerYearMetrics, msgMetricsFailed)
		return nil, fmt.Errorf("%w: %w", domain.ErrBatchFetchFailure, err)
	}

	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].Year < metrics[j].Year
	})
	a.apply(gen, func(v *domain.ActivityView) {
		v.Series = metrics
		v.Status[domain.StagePerYearMetrics] = domain.StatusLoaded
	})
	a.logger.Debug("contributions per year fetched", "count", len(metrics))
	return cloneMetrics(metrics), nil
}

func (a *Aggregator) fetchRepositories(ctx context.Context, gen uint64) error {
	a.begin(gen, domain.StageRepoList)

	repos, err := a.fetcher.FetchRepositories(ctx, a.login)
	if err != nil {
		msg := msgReposFailed
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			msg = msgRateLimited
		case errors.Is(err, domain.ErrMalformedResponse):
			msg = msgMalformedRepos
		}
		a.logger.Error("repository list fetch failed", "login", a.login, "error", err)
		a.fail(gen, domain.StageRepoList, msg)
		return err
	}

	// The tags of the previous list are dropped together with it.
	a.apply(gen, func(v *domain.ActivityView) {
		v.Repositories = repos
		v.Tags = domain.TagSet{}
		v.Status[domain.StageRepoList] = domain.StatusLoaded
	})
	a.logger.Debug("repositories fetched", "count", len(repos))

	_, err = a.discoverTags(ctx, gen, repos)
	return err
}

func (a *Aggregator) discoverTags(ctx context.Context, gen uint64, repos []domain.Repository) (domain.TagSet, error) {
	a.begin(gen, domain.StagePerRepoTags)

	perRepo := make([][]string, len(repos))
	var eg errgroup.Group
	eg.SetLimit(a.concurrency)
	for i, repo := range repos {
		if repo.LanguagesURL == "" {
			continue
		}
		eg.Go(func() error {
			names, err := a.fetcher.FetchLanguages(ctx, repo.LanguagesURL)
			if err != nil {
				a.logger.Warn("skipping repository languages", "repo", repo.Name, "error", err)
				return nil
			}
			perRepo[i] = names
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		a.fail(gen, domain.StagePerRepoTags, msgTagsFailed)
		return nil, fmt.Errorf("%w: %w", domain.ErrBatchFetchFailure, err)
	}

	tags := domain.TagSet{}
	for _, names := range perRepo {
		for _, n := range names {
			tags.Add(n)
		}
	}
	a.apply(gen, func(v *domain.ActivityView) {
		v.Tags = tags
		v.Status[domain.StagePerRepoTags] = domain.StatusLoaded
	})
	a.logger.Debug("repository languages fetched", "tags", len(tags))
	return tags.Clone(), nil
}

// begin starts a fresh attempt of a stage, clearing its sticky error.
func (a *Aggregator) begin(gen uint64, stage domain.Stage) {
	a.apply(gen, func(v *domain.ActivityView) {
		delete(v.Errors, stage)
		v.Status[stage] = domain.StatusLoading
	})
}

func (a *Aggregator) fail(gen uint64, stage domain.Stage, msg string) {
	a.apply(gen, func(v *domain.ActivityView) {
		v.Errors[stage] = domain.FetchError{Stage: stage, Message: msg}
		v.Status[stage] = domain.StatusFailed
	})
}

// apply mutates the view under the lock if gen is still the current generation.
func (a *Aggregator) apply(gen uint64, fn func(v *domain.ActivityView)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation.Load() != gen {
		a.logger.Debug("discarding stale result", "cycle", gen)
		return false
	}
	fn(&a.view)
	return true
}

func validateYears(years []int) error {
	if len(years) == 0 {
		return errors.New("no years given")
	}
	seen := make(map[int]struct{}, len(years))
	for _, y := range years {
		if y <= 0 {
			return fmt.Errorf("invalid year %d", y)
		}
		if _, dup := seen[y]; dup {
			return fmt.Errorf("duplicate year %d", y)
		}
		seen[y] = struct{}{}
	}
	return nil
}

func cloneMetrics(m []domain.YearMetric) []domain.YearMetric {
	return append([]domain.YearMetric(nil), m...)
}
