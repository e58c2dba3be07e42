package usecase

import (
	"strconv"

	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/portfolio-core/internal/domain"
)

// PieSeries projects each YearMetric to a chart slice labelled with its year.
// It is a pure transform; empty input yields an empty series.
func PieSeries(metrics []domain.YearMetric) []domain.SeriesPoint {
	series := make([]domain.SeriesPoint, 0, len(metrics))
	for _, m := range metrics {
		series = append(series, domain.SeriesPoint{
			Label: strconv.Itoa(m.Year),
			Value: m.ContributionCount,
		})
	}
	return series
}

// Summarize condenses a series into its total, mean, median and peak year.
// The earliest year wins a tie for the peak. An empty series yields the zero summary.
func Summarize(metrics []domain.YearMetric) (domain.ActivitySummary, error) {
	if len(metrics) == 0 {
		return domain.ActivitySummary{}, nil
	}

	data := make(stats.Float64Data, 0, len(metrics))
	var summary domain.ActivitySummary
	for _, m := range metrics {
		data = append(data, float64(m.ContributionCount))
		if m.ContributionCount > summary.PeakCount || summary.PeakYear == 0 ||
			(m.ContributionCount == summary.PeakCount && m.Year < summary.PeakYear) {
			summary.PeakYear = m.Year
			summary.PeakCount = m.ContributionCount
		}
	}

	total, err := data.Sum()
	if err != nil {
		return domain.ActivitySummary{}, err
	}
	mean, err := data.Mean()
	if err != nil {
		return domain.ActivitySummary{}, err
	}
	median, err := data.Median()
	if err != nil {
		return domain.ActivitySummary{}, err
	}

	summary.Total = int(total)
	summary.Mean = mean
	summary.Median = median
	return summary, nil
}
