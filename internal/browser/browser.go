// Package browser wraps the supported browser-automation engines behind a
// small set of interfaces. The rest of the framework only ever sees an
// Engine, the BrowsingContexts it creates and the Page each context owns;
// which engine actually drives the browser is a configuration choice.
package browser

import (
	"context"
	"time"
)

// Engine is the long-lived browser handle shared by every scenario in a run.
// Implementations must be safe for concurrent NewContext calls; everything a
// scenario touches afterwards is exclusively owned by its BrowsingContext.
type Engine interface {
	// Start launches the browser process. Called once at process start.
	Start(ctx context.Context) error
	// NewContext creates an isolated browsing context (own cookies and
	// storage) with diagnostic capture already running.
	NewContext(ctx context.Context) (BrowsingContext, error)
	// Stop closes the browser process. Called once at process end, after
	// every browsing context has been closed.
	Stop(ctx context.Context) error
}

// BrowsingContext is one isolated cookie/storage universe plus the single
// page the scenario drives. Closing it releases every resource the scenario
// acquired, including the page.
type BrowsingContext interface {
	// ID identifies the context in logs and artifact paths.
	ID() string
	// Page returns the context's page. The same page is returned for the
	// lifetime of the context.
	Page() Page
	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// SaveTrace stops diagnostic capture and persists the trace artifact
	// into dir, returning the path of the written file.
	SaveTrace(ctx context.Context, dir string) (string, error)
	// Close disposes the context and everything it owns.
	Close(ctx context.Context) error
}

// Page exposes the element-level primitives Page Objects are built from.
// Every interaction waits, bounded by the configured action timeout, for its
// target element to become actionable before acting; a wait that is never
// satisfied yields ErrNotActionable.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Text(ctx context.Context, selector string) (string, error)
	WaitVisible(ctx context.Context, selector string) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// Links returns the href of every anchor on the current page.
	Links(ctx context.Context) ([]string, error)
	// SetCookie installs a cookie on the browsing context before navigation,
	// scoped to the cookie's URL.
	SetCookie(ctx context.Context, cookie Cookie) error
}

// Cookie is the subset of cookie attributes the framework sets itself.
type Cookie struct {
	Name     string
	Value    string
	URL      string
	Expires  time.Time
	HTTPOnly bool
}
