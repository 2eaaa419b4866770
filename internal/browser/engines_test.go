package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gherkit/gherkit/internal/config"
)

func testBrowserConfig() config.BrowserConfig {
	return config.Default().Browser
}

func TestNewEngine(t *testing.T) {
	logger := zap.NewNop()

	engine, err := NewEngine(testBrowserConfig(), logger)
	require.NoError(t, err)
	assert.IsType(t, &PlaywrightEngine{}, engine)

	cfg := testBrowserConfig()
	cfg.Engine = "chromedp"
	engine, err = NewEngine(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &ChromedpEngine{}, engine)

	cfg.Engine = "selenium"
	_, err = NewEngine(cfg, logger)
	require.Error(t, err)
}

func TestLaunchOptions(t *testing.T) {
	t.Run("should keep headless container defaults ahead of extra args", func(t *testing.T) {
		cfg := testBrowserConfig()
		cfg.Args = []string{"--lang=en-US"}
		e := NewPlaywrightEngine(cfg, zap.NewNop())

		opts := e.launchOptions()
		require.NotNil(t, opts.Headless)
		assert.True(t, *opts.Headless)
		assert.Contains(t, opts.Args, "--no-sandbox")
		assert.Contains(t, opts.Args, "--disable-dev-shm-usage")
		assert.Equal(t, "--lang=en-US", opts.Args[len(opts.Args)-1])
		assert.Nil(t, opts.SlowMo)
	})

	t.Run("should translate slow motion into milliseconds", func(t *testing.T) {
		cfg := testBrowserConfig()
		cfg.SlowMo = 250 * time.Millisecond
		e := NewPlaywrightEngine(cfg, zap.NewNop())

		opts := e.launchOptions()
		require.NotNil(t, opts.SlowMo)
		assert.Equal(t, float64(250), *opts.SlowMo)
	})
}

func TestAllocatorOptions(t *testing.T) {
	cfg := testBrowserConfig()
	cfg.Args = []string{"--lang=en-US", "disable-extensions"}
	e := NewChromedpEngine(cfg, zap.NewNop())

	// Options are opaque functions; the builder just must accept every
	// configured arg shape without panicking.
	opts := e.allocatorOptions()
	assert.Greater(t, len(opts), len(cfg.Args))
}

func TestNewActionLimiter(t *testing.T) {
	assert.Nil(t, newActionLimiter(0))
	assert.Nil(t, newActionLimiter(-time.Second))

	limiter := newActionLimiter(100 * time.Millisecond)
	require.NotNil(t, limiter)
	assert.Equal(t, 1, limiter.Burst())
}

func TestStopBeforeStart(t *testing.T) {
	t.Run("should be a no-op for a playwright engine that never started", func(t *testing.T) {
		e := NewPlaywrightEngine(testBrowserConfig(), zap.NewNop())
		assert.NoError(t, e.Stop(context.Background()))
	})

	t.Run("should be a no-op for a chromedp engine that never started", func(t *testing.T) {
		cfg := testBrowserConfig()
		cfg.Engine = "chromedp"
		e := NewChromedpEngine(cfg, zap.NewNop())
		assert.NoError(t, e.Stop(context.Background()))
	})
}

// closedContext builds a chromedp context over an engine whose browser
// context is already gone, so Close only runs its bookkeeping.
func closedContext(t *testing.T) (*ChromedpEngine, *chromedpContext, *bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewChromedpEngine(testBrowserConfig(), zap.NewNop())
	e.browserCtx = ctx

	released := false
	cc := &chromedpContext{
		id:            "ctx-under-test",
		engine:        e,
		sessionCtx:    ctx,
		sessionCancel: func() {},
		release:       func() { released = true },
	}
	return e, cc, &released
}

func TestChromedpContextClose(t *testing.T) {
	t.Run("should balance the engine wait group when setup unwinds through Close", func(t *testing.T) {
		e, cc, released := closedContext(t)

		e.wg.Add(1)
		require.NoError(t, cc.Close(context.Background()))
		assert.True(t, *released)

		done := make(chan struct{})
		go func() {
			e.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("wait group still counts the closed context")
		}
	})

	t.Run("should report an already closed context without touching the wait group again", func(t *testing.T) {
		e, cc, _ := closedContext(t)

		e.wg.Add(1)
		require.NoError(t, cc.Close(context.Background()))
		assert.ErrorIs(t, cc.Close(context.Background()), ErrContextClosed)
	})
}

func TestAwait(t *testing.T) {
	t.Run("should return the call's result when it finishes", func(t *testing.T) {
		got, err := await(context.Background(), func() (string, error) {
			return "Meridian", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Meridian", got)
	})

	t.Run("should not invoke the call when the context is already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		_, err := await(ctx, func() (string, error) {
			called = true
			return "", nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("should abandon a stuck call when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		block := make(chan struct{})
		t.Cleanup(func() { close(block) })

		errCh := make(chan error, 1)
		go func() {
			errCh <- awaitErr(ctx, func() error {
				<-block
				return nil
			})
		}()
		cancel()

		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("cancellation did not release the caller")
		}
	})
}

func TestClassify(t *testing.T) {
	t.Run("should map driver timeouts to not-actionable", func(t *testing.T) {
		err := classify("click", "#signin-submit", playwright.ErrTimeout)
		assert.ErrorIs(t, err, ErrNotActionable)
		assert.Contains(t, err.Error(), "#signin-submit")
	})

	t.Run("should map timeout-worded errors to not-actionable", func(t *testing.T) {
		err := classify("fill", "#email", errors.New("Timeout 10000ms exceeded"))
		assert.ErrorIs(t, err, ErrNotActionable)
	})

	t.Run("should map everything else to engine failure", func(t *testing.T) {
		err := classify("navigate", "http://down.example.test", errors.New("net::ERR_CONNECTION_REFUSED"))
		assert.ErrorIs(t, err, ErrEngineFailure)
		assert.NotErrorIs(t, err, ErrNotActionable)
	})
}
