package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
)

// FeatureSummary aggregates outcomes for one feature file.
type FeatureSummary struct {
	Feature string
	Total   int
	Passed  int
	Failed  int
}

// Summary is the run rolled up for console output and commit statuses.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Duration time.Duration
	Features []FeatureSummary
}

// Summarize rolls the run up by outcome and by feature.
func Summarize(run *Run) Summary {
	byStatus := lo.CountValuesBy(run.Scenarios, func(s Scenario) Status { return s.Status })

	byFeature := lo.GroupBy(run.Scenarios, func(s Scenario) string { return s.Feature })
	features := lo.MapToSlice(byFeature, func(feature string, scenarios []Scenario) FeatureSummary {
		return FeatureSummary{
			Feature: feature,
			Total:   len(scenarios),
			Passed:  lo.CountBy(scenarios, func(s Scenario) bool { return s.Status == StatusPassed }),
			Failed:  lo.CountBy(scenarios, func(s Scenario) bool { return s.Status == StatusFailed }),
		}
	})
	sort.Slice(features, func(i, j int) bool { return features[i].Feature < features[j].Feature })

	return Summary{
		Total:    len(run.Scenarios),
		Passed:   byStatus[StatusPassed],
		Failed:   byStatus[StatusFailed],
		Duration: run.FinishedAt.Sub(run.StartedAt),
		Features: features,
	}
}

// Line renders the one-line outcome used for commit statuses and the final
// console message.
func (s Summary) Line() string {
	return fmt.Sprintf("%d scenarios: %d passed, %d failed in %s",
		s.Total, s.Passed, s.Failed, s.Duration.Round(time.Millisecond))
}
