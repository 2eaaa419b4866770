package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/gherkit/gherkit/internal/artifacts"
	"github.com/gherkit/gherkit/internal/browser"
	"github.com/gherkit/gherkit/internal/config"
	"github.com/gherkit/gherkit/internal/report"
	"github.com/gherkit/gherkit/internal/scenario"
)

type stubPage struct{}

func (stubPage) Navigate(context.Context, string) error          { return nil }
func (stubPage) Click(context.Context, string) error             { return nil }
func (stubPage) Fill(context.Context, string, string) error      { return nil }
func (stubPage) Text(context.Context, string) (string, error)    { return "", nil }
func (stubPage) WaitVisible(context.Context, string) error       { return nil }
func (stubPage) URL(context.Context) (string, error)             { return "", nil }
func (stubPage) Title(context.Context) (string, error)           { return "", nil }
func (stubPage) Links(context.Context) ([]string, error)         { return nil, nil }
func (stubPage) SetCookie(context.Context, browser.Cookie) error { return nil }

// stubBrowsing counts lifecycle calls so tests can assert the artifact
// contract: at most one screenshot, exactly one trace, context closed.
type stubBrowsing struct {
	id          string
	screenshots int
	traces      int
	closed      bool
}

func (s *stubBrowsing) ID() string         { return s.id }
func (s *stubBrowsing) Page() browser.Page { return stubPage{} }

func (s *stubBrowsing) Screenshot(context.Context) ([]byte, error) {
	s.screenshots++
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (s *stubBrowsing) SaveTrace(_ context.Context, dir string) (string, error) {
	s.traces++
	path := filepath.Join(dir, "trace.log")
	if err := os.WriteFile(path, []byte("trace\n"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *stubBrowsing) Close(context.Context) error {
	if s.closed {
		return browser.ErrContextClosed
	}
	s.closed = true
	return nil
}

type stubEngine struct {
	started  bool
	stopped  bool
	contexts []*stubBrowsing
	newErr   error
}

func (e *stubEngine) Start(context.Context) error { e.started = true; return nil }
func (e *stubEngine) Stop(context.Context) error  { e.stopped = true; return nil }

func (e *stubEngine) NewContext(context.Context) (browser.BrowsingContext, error) {
	if e.newErr != nil {
		return nil, e.newErr
	}
	bc := &stubBrowsing{id: "ctx"}
	e.contexts = append(e.contexts, bc)
	return bc, nil
}

func newHarness(t *testing.T) (*Harness, *stubEngine, *report.Collector) {
	t.Helper()
	cfg := config.Default()
	cfg.Artifacts.Dir = t.TempDir()

	store, err := artifacts.New(cfg.Artifacts, "run-1", zap.NewNop())
	require.NoError(t, err)

	engine := &stubEngine{}
	collector := report.NewCollector("run-1")
	return New(cfg, engine, store, collector, zap.NewNop()), engine, collector
}

func TestScenarioLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("should produce one trace and no screenshot for a passing scenario", func(t *testing.T) {
		h, engine, collector := newHarness(t)
		require.NoError(t, h.Start(context.Background()))

		_, sc, err := h.BeginScenario(context.Background(), "passing scenario", "features/nav.feature")
		require.NoError(t, err)
		require.NoError(t, h.EndScenario(sc, nil))

		bc := engine.contexts[0]
		assert.Equal(t, 0, bc.screenshots)
		assert.Equal(t, 1, bc.traces)
		assert.True(t, bc.closed)

		run := collector.Finalize()
		require.Len(t, run.Scenarios, 1)
		entry := run.Scenarios[0]
		assert.Equal(t, report.StatusPassed, entry.Status)
		assert.Empty(t, entry.ScreenshotPath)
		assert.NotEmpty(t, entry.TracePath)
		assert.Equal(t, "nav", entry.Feature)
	})

	t.Run("should produce one trace and one screenshot for a failing scenario", func(t *testing.T) {
		h, engine, collector := newHarness(t)
		require.NoError(t, h.Start(context.Background()))

		_, sc, err := h.BeginScenario(context.Background(), "failing scenario", "features/auth.feature")
		require.NoError(t, err)
		require.NoError(t, h.EndScenario(sc, errors.New("expected dashboard, got sign-in")))

		bc := engine.contexts[0]
		assert.Equal(t, 1, bc.screenshots)
		assert.Equal(t, 1, bc.traces)
		assert.True(t, bc.closed)

		run := collector.Finalize()
		require.Len(t, run.Scenarios, 1)
		entry := run.Scenarios[0]
		assert.Equal(t, report.StatusFailed, entry.Status)
		assert.Contains(t, entry.Error, "expected dashboard")
		assert.FileExists(t, entry.ScreenshotPath)
		assert.FileExists(t, entry.TracePath)
	})

	t.Run("should install the registry into the step context", func(t *testing.T) {
		h, _, _ := newHarness(t)
		require.NoError(t, h.Start(context.Background()))

		stepCtx, sc, err := h.BeginScenario(context.Background(), "plumbing", "")
		require.NoError(t, err)
		defer h.EndScenario(sc, nil)

		fromCtx, ok := scenario.FromContext(stepCtx)
		require.True(t, ok)
		assert.Same(t, sc, fromCtx)

		_, err = fromCtx.Page()
		assert.NoError(t, err)
	})

	t.Run("should record the entry even when setup never attached a context", func(t *testing.T) {
		h, _, collector := newHarness(t)

		sc := scenario.New("orphan")
		require.NoError(t, h.EndScenario(sc, errors.New("engine exploded")))

		run := collector.Finalize()
		require.Len(t, run.Scenarios, 1)
		assert.Equal(t, report.StatusFailed, run.Scenarios[0].Status)
		assert.Empty(t, run.Scenarios[0].TracePath)
	})

	t.Run("should give concurrent scenarios independent browsing contexts", func(t *testing.T) {
		h, engine, _ := newHarness(t)
		require.NoError(t, h.Start(context.Background()))

		_, scA, err := h.BeginScenario(context.Background(), "first", "")
		require.NoError(t, err)
		_, scB, err := h.BeginScenario(context.Background(), "second", "")
		require.NoError(t, err)

		bcA, err := scA.Browsing()
		require.NoError(t, err)
		bcB, err := scB.Browsing()
		require.NoError(t, err)
		assert.NotSame(t, bcA, bcB)

		require.NoError(t, h.EndScenario(scA, nil))
		require.NoError(t, h.EndScenario(scB, nil))
		assert.True(t, engine.contexts[0].closed)
		assert.True(t, engine.contexts[1].closed)
	})

	t.Run("should propagate engine failures from setup", func(t *testing.T) {
		h, engine, _ := newHarness(t)
		engine.newErr = browser.ErrEngineFailure

		_, _, err := h.BeginScenario(context.Background(), "doomed", "")
		require.ErrorIs(t, err, browser.ErrEngineFailure)
	})
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, engine, _ := newHarness(t)
	require.NoError(t, h.Start(context.Background()))
	assert.True(t, engine.started)

	require.NoError(t, h.Stop(context.Background()))
	assert.True(t, engine.stopped)
}
