// Package scenario holds the per-scenario state container: a lazily
// populated registry of page objects and workflows plus a scratch key-value
// store. One Context exists per scenario execution; it is created by the
// harness at scenario start and discarded at scenario end, and is never
// shared between concurrently running scenarios.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gherkit/gherkit/internal/browser"
)

// ErrNotInitialized marks a collaborator request made before the scenario's
// browsing context was attached, i.e. outside the scenario lifecycle.
var ErrNotInitialized = errors.New("scenario context not initialized")

// ErrAbsent marks a typed lookup for a key no step has set.
var ErrAbsent = errors.New("scenario data key not set")

// Context is the per-scenario registry. Instances live for the whole
// scenario: the first request for a collaborator type constructs it with the
// scenario's page, every later request returns the same instance. There is
// no invalidation; page objects locate elements per call, so re-navigation
// never stales a memoized instance.
type Context struct {
	id      string
	name    string
	started time.Time

	// mu guards the maps. Steps within one scenario run serially, but the
	// harness teardown may race a timed-out step.
	mu       sync.Mutex
	browsing browser.BrowsingContext
	registry map[reflect.Type]any
	data     map[string]any
}

// New creates an empty Context for the named scenario. The browsing context
// is attached separately once the harness has created it.
func New(name string) *Context {
	return &Context{
		id:       uuid.New().String(),
		name:     name,
		started:  time.Now(),
		registry: make(map[reflect.Type]any),
		data:     make(map[string]any),
	}
}

// ID returns the unique scenario execution ID.
func (c *Context) ID() string { return c.id }

// Name returns the scenario name as written in the feature file.
func (c *Context) Name() string { return c.name }

// StartedAt returns when the Context was created.
func (c *Context) StartedAt() time.Time { return c.started }

// AttachBrowsing hands the Context its exclusively owned browsing context.
// Called once by the harness during scenario setup.
func (c *Context) AttachBrowsing(bc browser.BrowsingContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.browsing = bc
}

// Browsing returns the scenario's browsing context, or ErrNotInitialized
// before setup has attached one.
func (c *Context) Browsing() (browser.BrowsingContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browsing == nil {
		return nil, ErrNotInitialized
	}
	return c.browsing, nil
}

// Page returns the scenario's page, or ErrNotInitialized before setup.
func (c *Context) Page() (browser.Page, error) {
	bc, err := c.Browsing()
	if err != nil {
		return nil, err
	}
	return bc.Page(), nil
}

// Set stores a value under key, unconditionally overwriting any previous
// value. Keys are opaque strings; callers read back the type they stored.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// Get returns the value stored under key. The second return is false when no
// step has set the key; Get itself never fails.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

// Value is the typed accessor over the scenario data store. Unlike Get it
// fails loudly: ErrAbsent when the key was never set, and a type error when
// the stored value is not a T.
func Value[T any](c *Context, key string) (T, error) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, fmt.Errorf("%q: %w", key, ErrAbsent)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%q: stored value is %T, not %T", key, v, zero)
	}
	return typed, nil
}

// Resolve returns the scenario's instance of collaborator type T,
// constructing it with the scenario's page on first request. The type
// parameter is the registry key, so at most one instance of each type exists
// per scenario and the association is checked at compile time. Fails with
// ErrNotInitialized when called before scenario setup.
func Resolve[T any](c *Context, construct func(browser.Page) *T) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browsing == nil {
		return nil, fmt.Errorf("resolve %s: %w", reflect.TypeFor[T]().Name(), ErrNotInitialized)
	}

	key := reflect.TypeFor[T]()
	if instance, ok := c.registry[key]; ok {
		return instance.(*T), nil
	}
	instance := construct(c.browsing.Page())
	c.registry[key] = instance
	return instance, nil
}

// contextKey keys the Context inside a context.Context.
type contextKey struct{}

// NewContext returns a copy of ctx carrying the scenario Context. The
// harness installs it in its Before hook so step handlers can retrieve it.
func NewContext(ctx context.Context, sc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

// FromContext retrieves the scenario Context installed by NewContext.
func FromContext(ctx context.Context) (*Context, bool) {
	sc, ok := ctx.Value(contextKey{}).(*Context)
	return sc, ok
}

// MustFromContext is FromContext for step handlers, where a missing Context
// means the hooks were never attached.
func MustFromContext(ctx context.Context) (*Context, error) {
	sc, ok := FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no scenario in context: %w", ErrNotInitialized)
	}
	return sc, nil
}
