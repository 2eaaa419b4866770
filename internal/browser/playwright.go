package browser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/gherkit/gherkit/internal/config"
)

// PlaywrightEngine drives Chromium through the Playwright driver. It is the
// default engine.
type PlaywrightEngine struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	pw      *playwright.Playwright
	browser playwright.Browser

	// contexts bounds how many browsing contexts are open at once.
	contexts *semaphore.Weighted

	mu sync.Mutex
	wg sync.WaitGroup

	initOnce sync.Once
	initErr  error
}

// NewPlaywrightEngine creates the engine. The driver is not started until
// Start is called.
func NewPlaywrightEngine(cfg config.BrowserConfig, logger *zap.Logger) *PlaywrightEngine {
	return &PlaywrightEngine{
		cfg:      cfg,
		logger:   logger.Named("playwright"),
		contexts: semaphore.NewWeighted(int64(cfg.MaxContexts)),
	}
}

// Start launches the Playwright driver and the browser process. Safe to call
// more than once; only the first call does work.
func (e *PlaywrightEngine) Start(ctx context.Context) error {
	e.initOnce.Do(func() {
		if e.cfg.Install {
			if err := e.ensureInstallation(ctx); err != nil {
				e.initErr = err
				return
			}
		}

		pw, err := playwright.Run()
		if err != nil {
			e.initErr = engineFailure("start playwright driver", err)
			return
		}
		e.pw = pw

		browser, err := pw.Chromium.Launch(e.launchOptions())
		if err != nil {
			pw.Stop()
			e.pw = nil
			e.initErr = engineFailure("launch browser", err)
			return
		}
		e.browser = browser
		e.logger.Info("Browser launched.",
			zap.String("version", browser.Version()),
			zap.Bool("headless", e.cfg.Headless))
	})
	return e.initErr
}

// ensureInstallation downloads the Chromium bundle when it is missing. The
// install command blocks, so it runs in a goroutine bounded by the configured
// install timeout.
func (e *PlaywrightEngine) ensureInstallation(ctx context.Context) error {
	e.logger.Info("Verifying Playwright browser installation...")
	installCtx, cancel := context.WithTimeout(ctx, e.cfg.InstallTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return engineFailure("install browsers", err)
		}
		return nil
	case <-installCtx.Done():
		return engineFailure("install browsers", installCtx.Err())
	}
}

func (e *PlaywrightEngine) launchOptions() playwright.BrowserTypeLaunchOptions {
	// Default arguments keep headless Chromium stable inside containers.
	args := append([]string{
		"--disable-gpu",
		"--no-sandbox",
		"--disable-dev-shm-usage",
	}, e.cfg.Args...)

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(e.cfg.Headless),
		Args:     args,
		Timeout:  playwright.Float(60000),
	}
	if e.cfg.SlowMo > 0 {
		opts.SlowMo = playwright.Float(float64(e.cfg.SlowMo.Milliseconds()))
	}
	return opts
}

// NewContext creates an isolated browsing context with tracing already
// started and a single page opened.
func (e *PlaywrightEngine) NewContext(ctx context.Context) (BrowsingContext, error) {
	if err := e.Start(ctx); err != nil {
		return nil, err
	}
	if err := e.contexts.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a browsing context slot: %w", err)
	}

	release := func() { e.contexts.Release(1) }

	bc, err := e.browser.NewContext()
	if err != nil {
		release()
		return nil, engineFailure("create browsing context", err)
	}

	if err := bc.Tracing().Start(playwright.TracingStartOptions{
		Screenshots: playwright.Bool(true),
		Snapshots:   playwright.Bool(true),
	}); err != nil {
		bc.Close()
		release()
		return nil, engineFailure("start tracing", err)
	}

	page, err := bc.NewPage()
	if err != nil {
		bc.Tracing().Stop()
		bc.Close()
		release()
		return nil, engineFailure("open page", err)
	}

	e.wg.Add(1)
	pc := &playwrightContext{
		id:      uuid.New().String(),
		engine:  e,
		ctx:     bc,
		release: release,
	}
	pc.page = &playwrightPage{cfg: e.cfg, ctx: bc, page: page}

	e.logger.Debug("Browsing context created.", zap.String("context_id", pc.id))
	return pc, nil
}

// Stop closes the browser and the driver after every browsing context has
// been closed, or after ctx expires.
func (e *PlaywrightEngine) Stop(ctx context.Context) error {
	if e.pw == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn("Timeout waiting for browsing contexts to close; shutting down anyway.", zap.Error(ctx.Err()))
	}

	var stopErr error
	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			stopErr = engineFailure("close browser", err)
		}
	}
	if err := e.pw.Stop(); err != nil && stopErr == nil {
		stopErr = engineFailure("stop playwright driver", err)
	}
	e.logger.Info("Browser engine stopped.")
	return stopErr
}

// playwrightContext owns one Playwright BrowserContext and its page.
type playwrightContext struct {
	id      string
	engine  *PlaywrightEngine
	ctx     playwright.BrowserContext
	page    *playwrightPage
	release func()

	mu     sync.Mutex
	closed bool
}

func (c *playwrightContext) ID() string { return c.id }

func (c *playwrightContext) Page() Page { return c.page }

func (c *playwrightContext) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := c.page.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return nil, engineFailure("screenshot", err)
	}
	return data, nil
}

func (c *playwrightContext) SaveTrace(ctx context.Context, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "trace.zip")
	if err := c.ctx.Tracing().Stop(path); err != nil {
		return "", engineFailure("save trace", err)
	}
	return path, nil
}

func (c *playwrightContext) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrContextClosed
	}
	c.closed = true
	c.mu.Unlock()

	err := c.ctx.Close()
	c.release()
	c.engine.wg.Done()
	if err != nil {
		return engineFailure("close browsing context", err)
	}
	return nil
}

// playwrightPage adapts a Playwright page to the Page interface. Every
// locator operation carries the configured action timeout; Playwright's own
// actionability waits do the rest.
type playwrightPage struct {
	cfg  config.BrowserConfig
	ctx  playwright.BrowserContext
	page playwright.Page
}

func (p *playwrightPage) actionTimeout() *float64 {
	return playwright.Float(float64(p.cfg.ActionTimeout.Milliseconds()))
}

// await runs a driver call honoring step-context cancellation. The binding
// takes no context, so a cancelled call is abandoned: it finishes in the
// background, still bounded by its own driver timeout, and its result is
// discarded.
func await[T any](ctx context.Context, call func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := call()
		done <- outcome{value, err}
	}()
	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func awaitErr(ctx context.Context, call func() error) error {
	_, err := await(ctx, func() (struct{}, error) { return struct{}{}, call() })
	return err
}

func (p *playwrightPage) Navigate(ctx context.Context, url string) error {
	err := awaitErr(ctx, func() error {
		_, err := p.page.Goto(url, playwright.PageGotoOptions{
			Timeout: playwright.Float(float64(p.cfg.NavigationTimeout.Milliseconds())),
		})
		return err
	})
	if err != nil {
		return classify("navigate", url, err)
	}
	return nil
}

func (p *playwrightPage) Click(ctx context.Context, selector string) error {
	err := awaitErr(ctx, func() error {
		return p.page.Locator(selector).Click(playwright.LocatorClickOptions{Timeout: p.actionTimeout()})
	})
	if err != nil {
		return classify("click", selector, err)
	}
	return nil
}

func (p *playwrightPage) Fill(ctx context.Context, selector, value string) error {
	err := awaitErr(ctx, func() error {
		return p.page.Locator(selector).Fill(value, playwright.LocatorFillOptions{Timeout: p.actionTimeout()})
	})
	if err != nil {
		return classify("fill", selector, err)
	}
	return nil
}

func (p *playwrightPage) Text(ctx context.Context, selector string) (string, error) {
	text, err := await(ctx, func() (string, error) {
		return p.page.Locator(selector).TextContent(playwright.LocatorTextContentOptions{Timeout: p.actionTimeout()})
	})
	if err != nil {
		return "", classify("read text", selector, err)
	}
	return strings.TrimSpace(text), nil
}

func (p *playwrightPage) WaitVisible(ctx context.Context, selector string) error {
	err := awaitErr(ctx, func() error {
		return p.page.Locator(selector).WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: p.actionTimeout(),
		})
	})
	if err != nil {
		return classify("wait visible", selector, err)
	}
	return nil
}

func (p *playwrightPage) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *playwrightPage) Title(ctx context.Context) (string, error) {
	title, err := await(ctx, p.page.Title)
	if err != nil {
		return "", engineFailure("read title", err)
	}
	return title, nil
}

func (p *playwrightPage) Links(ctx context.Context) ([]string, error) {
	// a.href resolves to the absolute URL.
	result, err := await(ctx, func() (interface{}, error) {
		return p.page.Evaluate(`() => Array.from(document.querySelectorAll('a[href]'), a => a.href)`)
	})
	if err != nil {
		return nil, engineFailure("collect links", err)
	}
	raw, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("collect links: unexpected result type %T", result)
	}
	links := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			links = append(links, s)
		}
	}
	return links, nil
}

func (p *playwrightPage) SetCookie(ctx context.Context, cookie Cookie) error {
	oc := playwright.OptionalCookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		URL:      playwright.String(cookie.URL),
		HttpOnly: playwright.Bool(cookie.HTTPOnly),
	}
	if !cookie.Expires.IsZero() {
		oc.Expires = playwright.Float(float64(cookie.Expires.Unix()))
	}
	err := awaitErr(ctx, func() error {
		return p.ctx.AddCookies([]playwright.OptionalCookie{oc})
	})
	if err != nil {
		return engineFailure("set cookie", err)
	}
	return nil
}

// classify maps a Playwright error to the framework taxonomy: timeouts are
// element-not-actionable, everything else is an engine failure.
func classify(op, subject string, err error) error {
	if errors.Is(err, playwright.ErrTimeout) || strings.Contains(err.Error(), "Timeout") {
		return notActionable(op, subject, err)
	}
	return engineFailure(fmt.Sprintf("%s %q", op, subject), err)
}

var _ Engine = (*PlaywrightEngine)(nil)
var _ BrowsingContext = (*playwrightContext)(nil)
var _ Page = (*playwrightPage)(nil)
