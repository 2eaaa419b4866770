package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/gherkit/gherkit/internal/config"
)

const disposeTimeout = 10 * time.Second

// ChromedpEngine drives Chrome over CDP. Scenario isolation uses dedicated
// browser contexts created through the target domain, so every scenario gets
// its own cookies and storage inside one shared browser process.
type ChromedpEngine struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	contexts *semaphore.Weighted
	// creationMu serializes CreateBrowserContext/CreateTarget pairs; the CDP
	// browser target rejects interleaved creation calls.
	creationMu sync.Mutex

	wg sync.WaitGroup

	initOnce sync.Once
	initErr  error
}

// NewChromedpEngine creates the engine. The browser is not launched until
// Start is called.
func NewChromedpEngine(cfg config.BrowserConfig, logger *zap.Logger) *ChromedpEngine {
	return &ChromedpEngine{
		cfg:      cfg,
		logger:   logger.Named("chromedp"),
		contexts: semaphore.NewWeighted(int64(cfg.MaxContexts)),
	}
}

// Start launches the Chrome process and connects the controller context.
func (e *ChromedpEngine) Start(ctx context.Context) error {
	e.initOnce.Do(func() {
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), e.allocatorOptions()...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx,
			chromedp.WithLogf(e.logger.Sugar().Debugf))

		// An empty Run launches the browser and verifies the connection.
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			e.initErr = engineFailure("launch browser", err)
			return
		}

		e.allocCancel = allocCancel
		e.browserCtx = browserCtx
		e.browserCancel = browserCancel
		e.logger.Info("Browser launched.", zap.Bool("headless", e.cfg.Headless))
	})
	return e.initErr
}

func (e *ChromedpEngine) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", e.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	for _, arg := range e.cfg.Args {
		name, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if found {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// NewContext creates an isolated CDP browser context with its own target and
// starts event capture for the trace log.
func (e *ChromedpEngine) NewContext(ctx context.Context) (BrowsingContext, error) {
	if err := e.Start(ctx); err != nil {
		return nil, err
	}
	if err := e.contexts.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a browsing context slot: %w", err)
	}
	release := func() { e.contexts.Release(1) }

	e.creationMu.Lock()
	browserContextID, err := target.CreateBrowserContext().Do(cdpContext(e.browserCtx))
	if err != nil {
		e.creationMu.Unlock()
		release()
		return nil, engineFailure("create browser context", err)
	}
	targetID, err := target.CreateTarget("about:blank").
		WithBrowserContextID(browserContextID).
		Do(cdpContext(e.browserCtx))
	e.creationMu.Unlock()
	if err != nil {
		e.disposeBrowserContext(browserContextID)
		release()
		return nil, engineFailure("create target", err)
	}

	sessionCtx, sessionCancel := chromedp.NewContext(e.browserCtx, chromedp.WithTargetID(targetID))

	cc := &chromedpContext{
		id:               uuid.New().String(),
		engine:           e,
		sessionCtx:       sessionCtx,
		sessionCancel:    sessionCancel,
		browserContextID: browserContextID,
		release:          release,
	}
	cc.page = &chromedpPage{cfg: e.cfg, session: cc, limiter: newActionLimiter(e.cfg.SlowMo)}

	// Close decrements the wait group, so the count must cover the context
	// before any failable step that unwinds through Close.
	e.wg.Add(1)
	chromedp.ListenTarget(sessionCtx, cc.captureEvent)
	if err := chromedp.Run(sessionCtx, network.Enable()); err != nil {
		cc.Close(context.Background())
		return nil, engineFailure("enable network capture", err)
	}

	e.logger.Debug("Browsing context created.",
		zap.String("context_id", cc.id),
		zap.String("browser_context_id", string(browserContextID)))
	return cc, nil
}

func (e *ChromedpEngine) disposeBrowserContext(id cdp.BrowserContextID) {
	if e.browserCtx.Err() != nil {
		return
	}
	disposeCtx, cancel := context.WithTimeout(e.browserCtx, disposeTimeout)
	defer cancel()
	if err := chromedp.Run(disposeCtx, chromedp.ActionFunc(func(c context.Context) error {
		return target.DisposeBrowserContext(id).Do(c)
	})); err != nil {
		e.logger.Debug("Failed to dispose browser context.",
			zap.String("browser_context_id", string(id)), zap.Error(err))
	}
}

// Stop waits for open browsing contexts and shuts the browser down.
func (e *ChromedpEngine) Stop(ctx context.Context) error {
	if e.browserCtx == nil {
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

	e.browserCancel()
	e.allocCancel()
	e.logger.Info("Browser engine stopped.")
	return nil
}

// cdpContext unwraps a chromedp context for raw cdproto command execution
// against the browser target.
func cdpContext(ctx context.Context) context.Context {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Browser == nil {
		return ctx
	}
	return cdp.WithExecutor(ctx, c.Browser)
}

func newActionLimiter(slowMo time.Duration) *rate.Limiter {
	if slowMo <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(slowMo), 1)
}

// chromedpContext owns one isolated CDP browser context, its target and the
// captured event trace.
type chromedpContext struct {
	id               string
	engine           *ChromedpEngine
	sessionCtx       context.Context
	sessionCancel    context.CancelFunc
	browserContextID cdp.BrowserContextID
	page             *chromedpPage
	release          func()

	traceMu sync.Mutex
	trace   []string

	mu     sync.Mutex
	closed bool
}

func (c *chromedpContext) ID() string { return c.id }

func (c *chromedpContext) Page() Page { return c.page }

// captureEvent appends one trace line per interesting CDP event. Runs on the
// chromedp event goroutine, so the buffer is mutex-guarded.
func (c *chromedpContext) captureEvent(ev interface{}) {
	var line string
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		line = fmt.Sprintf("request  %s %s", e.Request.Method, e.Request.URL)
	case *network.EventResponseReceived:
		line = fmt.Sprintf("response %d %s", e.Response.Status, e.Response.URL)
	case *network.EventLoadingFailed:
		line = fmt.Sprintf("failed   %s", e.ErrorText)
	case *runtime.EventConsoleAPICalled:
		parts := make([]string, 0, len(e.Args))
		for _, arg := range e.Args {
			parts = append(parts, string(arg.Value))
		}
		line = fmt.Sprintf("console.%s %s", e.Type, strings.Join(parts, " "))
	default:
		return
	}
	stamped := fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339Nano), line)

	c.traceMu.Lock()
	c.trace = append(c.trace, stamped)
	c.traceMu.Unlock()
}

func (c *chromedpContext) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	if err := chromedp.Run(c.sessionCtx, chromedp.FullScreenshot(&data, 90)); err != nil {
		return nil, engineFailure("screenshot", err)
	}
	return data, nil
}

func (c *chromedpContext) SaveTrace(ctx context.Context, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.traceMu.Lock()
	content := strings.Join(c.trace, "\n")
	c.traceMu.Unlock()

	path := filepath.Join(dir, "trace.log")
	if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write trace log: %w", err)
	}
	return path, nil
}

func (c *chromedpContext) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrContextClosed
	}
	c.closed = true
	c.mu.Unlock()

	c.sessionCancel()
	c.engine.disposeBrowserContext(c.browserContextID)
	c.release()
	c.engine.wg.Done()
	return nil
}

// chromedpPage adapts the session to the Page interface. Element waits run
// as explicit WaitVisible/WaitEnabled steps bounded by the action timeout;
// the optional limiter paces actions when a per-action delay is configured.
type chromedpPage struct {
	cfg     config.BrowserConfig
	session *chromedpContext
	limiter *rate.Limiter
}

// run executes actions against the session, bounded by timeout and by the
// step context: a scenario-level abort cancels the in-flight action rather
// than waiting out the action timeout. A deadline expiry inside an element
// wait is an actionability failure, not an engine one, so callers classify
// it themselves.
func (p *chromedpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	runCtx, cancel := context.WithTimeout(p.session.sessionCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) classify(op, subject string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return notActionable(op, subject, err)
	}
	return engineFailure(fmt.Sprintf("%s %q", op, subject), err)
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.cfg.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return p.classify("navigate", url, err)
	}
	return nil
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	err := p.run(ctx, p.cfg.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return p.classify("click", selector, err)
	}
	return nil
}

func (p *chromedpPage) Fill(ctx context.Context, selector, value string) error {
	err := p.run(ctx, p.cfg.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return p.classify("fill", selector, err)
	}
	return nil
}

func (p *chromedpPage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := p.run(ctx, p.cfg.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Text(selector, &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", p.classify("read text", selector, err)
	}
	return strings.TrimSpace(text), nil
}

func (p *chromedpPage) WaitVisible(ctx context.Context, selector string) error {
	if err := p.run(ctx, p.cfg.ActionTimeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return p.classify("wait visible", selector, err)
	}
	return nil
}

func (p *chromedpPage) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Location(&url)); err != nil {
		return "", engineFailure("read url", err)
	}
	return url, nil
}

func (p *chromedpPage) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Title(&title)); err != nil {
		return "", engineFailure("read title", err)
	}
	return title, nil
}

func (p *chromedpPage) Links(ctx context.Context) ([]string, error) {
	var outerHTML string
	var base string
	err := p.run(ctx, p.cfg.ActionTimeout,
		chromedp.Location(&base),
		chromedp.OuterHTML("html", &outerHTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, engineFailure("collect links", err)
	}
	return extractLinks(outerHTML, base)
}

func (p *chromedpPage) SetCookie(ctx context.Context, cookie Cookie) error {
	param := &network.CookieParam{
		Name:     cookie.Name,
		Value:    cookie.Value,
		URL:      cookie.URL,
		HTTPOnly: cookie.HTTPOnly,
	}
	if !cookie.Expires.IsZero() {
		expires := cdp.TimeSinceEpoch(cookie.Expires)
		param.Expires = &expires
	}
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.ActionFunc(func(c context.Context) error {
		return storage.SetCookies([]*network.CookieParam{param}).
			WithBrowserContextID(p.session.browserContextID).
			Do(c)
	}))
	if err != nil {
		return engineFailure("set cookie", err)
	}
	return nil
}

// extractLinks parses the document and resolves every anchor href against
// the page URL.
func extractLinks(document, pageURL string) ([]string, error) {
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	base, err := parseBase(pageURL)
	if err != nil {
		return nil, err
	}

	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" || attr.Val == "" {
					continue
				}
				if resolved, ok := resolveHref(base, attr.Val); ok {
					links = append(links, resolved)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return links, nil
}

var _ Engine = (*ChromedpEngine)(nil)
var _ BrowsingContext = (*chromedpContext)(nil)
var _ Page = (*chromedpPage)(nil)
