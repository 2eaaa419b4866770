// Package harness bounds scenario lifetimes. It owns the shared browser
// engine, creates one browsing context and one scenario registry per
// scenario, and persists diagnostics at scenario end. The lifecycle methods
// are explicit — Start, BeginScenario, EndScenario, Stop — and Attach binds
// them to a godog suite.
package harness

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"
	"go.uber.org/zap"

	"github.com/gherkit/gherkit/internal/artifacts"
	"github.com/gherkit/gherkit/internal/browser"
	"github.com/gherkit/gherkit/internal/config"
	"github.com/gherkit/gherkit/internal/report"
	"github.com/gherkit/gherkit/internal/scenario"
)

const teardownTimeout = 30 * time.Second

// Harness drives the scenario lifecycle for one run.
type Harness struct {
	cfg       *config.Config
	engine    browser.Engine
	store     *artifacts.Store
	collector *report.Collector
	logger    *zap.Logger

	// active tracks in-flight scenarios so EndScenario can cancel the
	// scenario timeout and find the feature the scenario came from.
	mu     sync.Mutex
	active map[string]*activeScenario
}

type activeScenario struct {
	sc     *scenario.Context
	cancel context.CancelFunc
	uri    string
}

// New assembles a harness over an already-constructed engine.
func New(cfg *config.Config, engine browser.Engine, store *artifacts.Store, collector *report.Collector, logger *zap.Logger) *Harness {
	return &Harness{
		cfg:       cfg,
		engine:    engine,
		store:     store,
		collector: collector,
		logger:    logger.Named("harness"),
		active:    make(map[string]*activeScenario),
	}
}

// Start acquires the shared browser-engine handle. Called once at process
// start, before any scenario runs.
func (h *Harness) Start(ctx context.Context) error {
	return h.engine.Start(ctx)
}

// Stop releases the engine. Called once at process end, after the last
// scenario has finished.
func (h *Harness) Stop(ctx context.Context) error {
	return h.engine.Stop(ctx)
}

// BeginScenario creates the scenario's browsing context and a fresh, empty
// registry. The returned context.Context carries the registry and expires
// with the configured scenario timeout.
func (h *Harness) BeginScenario(ctx context.Context, name, uri string) (context.Context, *scenario.Context, error) {
	bc, err := h.engine.NewContext(ctx)
	if err != nil {
		return ctx, nil, err
	}

	sc := scenario.New(name)
	sc.AttachBrowsing(bc)

	scenarioCtx, cancel := context.WithTimeout(ctx, h.cfg.Run.ScenarioTimeout)
	h.mu.Lock()
	h.active[sc.ID()] = &activeScenario{sc: sc, cancel: cancel, uri: uri}
	h.mu.Unlock()

	h.logger.Info("Scenario started.",
		zap.String("scenario", name),
		zap.String("scenario_id", sc.ID()),
		zap.String("context_id", bc.ID()))
	return scenario.NewContext(scenarioCtx, sc), sc, nil
}

// EndScenario persists diagnostics, closes the browsing context and records
// the report entry. scErr carries the step failure, nil for a pass. Teardown
// runs on a fresh context so an expired scenario timeout cannot block
// artifact persistence.
func (h *Harness) EndScenario(sc *scenario.Context, scErr error) error {
	h.mu.Lock()
	run := h.active[sc.ID()]
	delete(h.active, sc.ID())
	h.mu.Unlock()

	uri := ""
	if run != nil {
		uri = run.uri
		defer run.cancel()
	}

	teardownCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	entry := report.Scenario{
		ID:        sc.ID(),
		Name:      sc.Name(),
		Feature:   featureName(uri),
		URI:       uri,
		Status:    report.StatusPassed,
		StartedAt: sc.StartedAt(),
		Duration:  time.Since(sc.StartedAt()),
	}
	if scErr != nil {
		entry.Status = report.StatusFailed
		entry.Error = scErr.Error()
	}

	bc, err := sc.Browsing()
	if err != nil {
		// Setup never completed; there is nothing to capture or close.
		h.collector.Add(entry)
		return nil
	}

	dir, dirErr := h.store.ScenarioDir(sc.Name(), sc.ID())
	if dirErr != nil {
		h.logger.Error("Failed to create scenario artifact dir.", zap.Error(dirErr))
	} else {
		if scErr != nil {
			if shot, err := bc.Screenshot(teardownCtx); err != nil {
				h.logger.Warn("Failed to capture failure screenshot.", zap.Error(err))
			} else if path, err := h.store.WriteScreenshot(dir, shot); err != nil {
				h.logger.Warn("Failed to persist failure screenshot.", zap.Error(err))
			} else {
				entry.ScreenshotPath = path
			}
		}

		if tracePath, err := bc.SaveTrace(teardownCtx, dir); err != nil {
			h.logger.Warn("Failed to persist trace.", zap.Error(err))
		} else {
			entry.TracePath = h.store.FinishTrace(tracePath)
		}
	}

	closeErr := bc.Close(teardownCtx)
	if closeErr != nil {
		h.logger.Error("Failed to close browsing context.",
			zap.String("scenario_id", sc.ID()), zap.Error(closeErr))
	}

	h.collector.Add(entry)
	h.logger.Info("Scenario finished.",
		zap.String("scenario", sc.Name()),
		zap.String("status", string(entry.Status)),
		zap.Duration("duration", entry.Duration))
	return closeErr
}

// Attach binds the lifecycle to a godog scenario context. The Before hook
// installs the scenario registry into the step context; the After hook tears
// everything down regardless of outcome.
func (h *Harness) Attach(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, gs *godog.Scenario) (context.Context, error) {
		stepCtx, _, err := h.BeginScenario(ctx, gs.Name, gs.Uri)
		return stepCtx, err
	})

	sc.After(func(ctx context.Context, gs *godog.Scenario, err error) (context.Context, error) {
		registry, ok := scenario.FromContext(ctx)
		if !ok {
			// Before failed before installing the registry.
			return ctx, nil
		}
		if endErr := h.EndScenario(registry, err); endErr != nil && err == nil {
			return ctx, endErr
		}
		return ctx, nil
	})
}

func featureName(uri string) string {
	if uri == "" {
		return ""
	}
	return strings.TrimSuffix(filepath.Base(uri), ".feature")
}
