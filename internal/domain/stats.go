// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"encoding/json"
	"sort"
)

// YearMetric holds the commit contribution total for a single calendar year.
type YearMetric struct {
	Year              int `json:"year" yaml:"year"`
	ContributionCount int `json:"contribution_count" yaml:"contribution_count"`
}

// Repository is a public repository of the account, as listed by the upstream API.
// LanguagesURL is empty when the repository exposes no languages endpoint.
type Repository struct {
	ID           int64  `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	URL          string `json:"url" yaml:"url"`
	LanguagesURL string `json:"languages_url,omitempty" yaml:"languages_url,omitempty"`
}

// TagSet is an unordered set of language/technology names.
type TagSet map[string]struct{}

// NewTagSet builds a TagSet from the given names.
func NewTagSet(names ...string) TagSet {
	s := make(TagSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts a name into the set. Empty names are ignored.
func (s TagSet) Add(name string) {
	if name == "" {
		return
	}
	s[name] = struct{}{}
}

// Has reports whether name is in the set.
func (s TagSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexical order, for stable output.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (s TagSet) Clone() TagSet {
	c := make(TagSet, len(s))
	for name := range s {
		c[name] = struct{}{}
	}
	return c
}

// MarshalJSON renders the set as a sorted list.
func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// MarshalYAML renders the set as a sorted list.
func (s TagSet) MarshalYAML() (any, error) {
	return s.Sorted(), nil
}

// SeriesPoint is one slice of the contributions-per-year chart.
type SeriesPoint struct {
	Label string `json:"label" yaml:"label"`
	Value int    `json:"value" yaml:"value"`
}

// ActivitySummary condenses a YearMetric series into headline numbers.
type ActivitySummary struct {
	Total     int     `json:"total" yaml:"total"`
	Mean      float64 `json:"mean" yaml:"mean"`
	Median    float64 `json:"median" yaml:"median"`
	PeakYear  int     `json:"peak_year,omitempty" yaml:"peak_year,omitempty"`
	PeakCount int     `json:"peak_count" yaml:"peak_count"`
}

// ActivityView is the observable state of the activity aggregator.
// Every field is replaced wholesale; a view handed out to callers is never mutated afterwards.
type ActivityView struct {
	Series       []YearMetric          `json:"series" yaml:"series"`
	Repositories []Repository          `json:"repositories" yaml:"repositories"`
	Tags         TagSet                `json:"tags" yaml:"tags"`
	Errors       map[Stage]FetchError  `json:"errors,omitempty" yaml:"errors,omitempty"`
	Status       map[Stage]StageStatus `json:"status" yaml:"status"`
}

// Clone returns a deep copy of the view.
func (v ActivityView) Clone() ActivityView {
	c := ActivityView{
		Errors: make(map[Stage]FetchError, len(v.Errors)),
		Status: make(map[Stage]StageStatus, len(v.Status)),
	}
	if v.Series != nil {
		c.Series = append([]YearMetric(nil), v.Series...)
	}
	if v.Repositories != nil {
		c.Repositories = append([]Repository(nil), v.Repositories...)
	}
	if v.Tags != nil {
		c.Tags = v.Tags.Clone()
	}
	for k, e := range v.Errors {
		c.Errors[k] = e
	}
	for k, s := range v.Status {
		c.Status[k] = s
	}
	return c
}

// Err returns the active error for a stage, if any.
func (v ActivityView) Err(stage Stage) (FetchError, bool) {
	e, ok := v.Errors[stage]
	return e, ok
}
