package domain

import (
	"errors"
	"fmt"
)

// Stage names one discrete fetch phase of the aggregator. Each stage owns an independent error slot.
type Stage string

const (
	StageYears          Stage = "years"
	StagePerYearMetrics Stage = "per_year_metrics"
	StageRepoList       Stage = "repo_list"
	StagePerRepoTags    Stage = "per_repo_tags"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageYears, StagePerYearMetrics, StageRepoList, StagePerRepoTags}

// StageStatus tells a view region whether to show data, a loading indication, or an error.
type StageStatus string

const (
	StatusIdle    StageStatus = "idle"
	StatusLoading StageStatus = "loading"
	StatusLoaded  StageStatus = "loaded"
	StatusFailed  StageStatus = "failed"
)

// Sentinel errors of the aggregation pipeline. Per-item skips are logged, never returned.
var (
	ErrDiscoveryFailure  = errors.New("contribution years discovery failed")
	ErrBatchFetchFailure = errors.New("batch fetch failed")
	ErrRateLimited       = errors.New("rate limited by upstream API")
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// FetchError is the user-visible, sticky error of a single stage.
type FetchError struct {
	Stage   Stage  `json:"stage" yaml:"stage"`
	Message string `json:"message" yaml:"message"`
}

func (e FetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}
