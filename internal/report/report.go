// Package report collects per-scenario results during a run and writes them
// to the configured sinks once the run finishes.
package report

import (
	"sort"
	"sync"
	"time"
)

// Status is a scenario outcome.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Scenario is one finished scenario's report entry.
type Scenario struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Feature string `json:"feature,omitempty"`
	// URI is the feature file the scenario came from.
	URI            string        `json:"uri,omitempty"`
	Status         Status        `json:"status"`
	Error          string        `json:"error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	TracePath      string        `json:"trace_path,omitempty"`
	ScreenshotPath string        `json:"screenshot_path,omitempty"`
	// TriageNote is an optional model-written failure summary.
	TriageNote string `json:"triage_note,omitempty"`
}

// Git records the repository state the run executed against.
type Git struct {
	Commit string `json:"commit"`
	Branch string `json:"branch,omitempty"`
	Dirty  bool   `json:"dirty"`
}

// Run is the full report of one run.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Git        *Git       `json:"git,omitempty"`
	Scenarios  []Scenario `json:"scenarios"`
}

// Collector accumulates scenario entries. Safe for concurrent use; with
// multiple workers scenario hooks report from different goroutines.
type Collector struct {
	mu  sync.Mutex
	run Run
}

// NewCollector starts a run report.
func NewCollector(runID string) *Collector {
	return &Collector{run: Run{ID: runID, StartedAt: time.Now()}}
}

// SetGit stamps the run with repository metadata.
func (c *Collector) SetGit(g *Git) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run.Git = g
}

// Add records one finished scenario.
func (c *Collector) Add(s Scenario) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run.Scenarios = append(c.run.Scenarios, s)
}

// AttachNote sets the triage note on the identified scenario entry.
func (c *Collector) AttachNote(scenarioID, note string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.run.Scenarios {
		if c.run.Scenarios[i].ID == scenarioID {
			c.run.Scenarios[i].TriageNote = note
			return
		}
	}
}

// Finalize closes the run and returns it with scenarios in start order.
// Workers may have appended out of order.
func (c *Collector) Finalize() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run.FinishedAt = time.Now()
	sort.SliceStable(c.run.Scenarios, func(i, j int) bool {
		return c.run.Scenarios[i].StartedAt.Before(c.run.Scenarios[j].StartedAt)
	})
	run := c.run
	return &run
}

// Failed reports whether any recorded scenario failed.
func (r *Run) Failed() bool {
	for _, s := range r.Scenarios {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}
