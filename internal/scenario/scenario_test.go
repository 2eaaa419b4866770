package scenario_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gherkit/gherkit/internal/browser"
	"github.com/gherkit/gherkit/internal/scenario"
)

// fakePage satisfies browser.Page with no-ops; the registry only hands it to
// constructors.
type fakePage struct{}

func (fakePage) Navigate(context.Context, string) error            { return nil }
func (fakePage) Click(context.Context, string) error               { return nil }
func (fakePage) Fill(context.Context, string, string) error        { return nil }
func (fakePage) Text(context.Context, string) (string, error)      { return "", nil }
func (fakePage) WaitVisible(context.Context, string) error         { return nil }
func (fakePage) URL(context.Context) (string, error)               { return "", nil }
func (fakePage) Title(context.Context) (string, error)             { return "", nil }
func (fakePage) Links(context.Context) ([]string, error)           { return nil, nil }
func (fakePage) SetCookie(context.Context, browser.Cookie) error   { return nil }

type fakeBrowsing struct {
	page browser.Page
}

func (f *fakeBrowsing) ID() string                                           { return "fake" }
func (f *fakeBrowsing) Page() browser.Page                                   { return f.page }
func (f *fakeBrowsing) Screenshot(context.Context) ([]byte, error)           { return nil, nil }
func (f *fakeBrowsing) SaveTrace(context.Context, string) (string, error)    { return "", nil }
func (f *fakeBrowsing) Close(context.Context) error                          { return nil }

type widgetObject struct {
	page browser.Page
}

func newWidgetObject(p browser.Page) *widgetObject { return &widgetObject{page: p} }

type gadgetObject struct {
	page browser.Page
}

func newGadgetObject(p browser.Page) *gadgetObject { return &gadgetObject{page: p} }

func initialized(t *testing.T) *scenario.Context {
	t.Helper()
	sc := scenario.New(t.Name())
	sc.AttachBrowsing(&fakeBrowsing{page: fakePage{}})
	return sc
}

func TestResolve(t *testing.T) {
	t.Run("should return the identical instance for repeated requests of one type", func(t *testing.T) {
		sc := initialized(t)

		first, err := scenario.Resolve(sc, newWidgetObject)
		require.NoError(t, err)
		second, err := scenario.Resolve(sc, newWidgetObject)
		require.NoError(t, err)

		assert.Same(t, first, second)
	})

	t.Run("should keep instances of distinct types apart", func(t *testing.T) {
		sc := initialized(t)

		widget, err := scenario.Resolve(sc, newWidgetObject)
		require.NoError(t, err)
		gadget, err := scenario.Resolve(sc, newGadgetObject)
		require.NoError(t, err)

		assert.NotNil(t, widget)
		assert.NotNil(t, gadget)
	})

	t.Run("should return distinct instances from distinct scenario contexts", func(t *testing.T) {
		a := initialized(t)
		b := initialized(t)

		fromA, err := scenario.Resolve(a, newWidgetObject)
		require.NoError(t, err)
		fromB, err := scenario.Resolve(b, newWidgetObject)
		require.NoError(t, err)

		assert.NotSame(t, fromA, fromB)
	})

	t.Run("should construct each type exactly once per scenario", func(t *testing.T) {
		sc := initialized(t)

		calls := 0
		counting := func(p browser.Page) *widgetObject {
			calls++
			return newWidgetObject(p)
		}

		for i := 0; i < 5; i++ {
			_, err := scenario.Resolve(sc, counting)
			require.NoError(t, err)
		}
		assert.Equal(t, 1, calls)
	})

	t.Run("should fail with the uninitialized error before setup", func(t *testing.T) {
		sc := scenario.New("no browsing context yet")

		_, err := scenario.Resolve(sc, newWidgetObject)
		require.ErrorIs(t, err, scenario.ErrNotInitialized)

		_, err = scenario.Resolve(sc, newGadgetObject)
		require.ErrorIs(t, err, scenario.ErrNotInitialized)
	})

	t.Run("should pass the scenario page to the constructor", func(t *testing.T) {
		sc := scenario.New(t.Name())
		page := fakePage{}
		sc.AttachBrowsing(&fakeBrowsing{page: page})

		widget, err := scenario.Resolve(sc, newWidgetObject)
		require.NoError(t, err)
		assert.Equal(t, page, widget.page)
	})
}

func TestScenarioData(t *testing.T) {
	t.Run("should return the stored value after a set", func(t *testing.T) {
		sc := scenario.New(t.Name())
		sc.Set("token", "abc-123")

		v, ok := sc.Get("token")
		require.True(t, ok)
		assert.Equal(t, "abc-123", v)
	})

	t.Run("should overwrite on repeated sets, last write wins", func(t *testing.T) {
		sc := scenario.New(t.Name())
		sc.Set("count", 1)
		sc.Set("count", 2)

		v, ok := sc.Get("count")
		require.True(t, ok)
		assert.Equal(t, 2, v)
	})

	t.Run("should signal absence without failing for unset keys", func(t *testing.T) {
		sc := scenario.New(t.Name())

		v, ok := sc.Get("never-set")
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("should read back typed values through the typed accessor", func(t *testing.T) {
		sc := scenario.New(t.Name())
		sc.Set("retirement_age", 67)

		age, err := scenario.Value[int](sc, "retirement_age")
		require.NoError(t, err)
		assert.Equal(t, 67, age)
	})

	t.Run("should fail loudly on type mismatch", func(t *testing.T) {
		sc := scenario.New(t.Name())
		sc.Set("retirement_age", "sixty-seven")

		_, err := scenario.Value[int](sc, "retirement_age")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stored value is string")
	})

	t.Run("should fail with the absent error for unset keys", func(t *testing.T) {
		sc := scenario.New(t.Name())

		_, err := scenario.Value[string](sc, "missing")
		require.ErrorIs(t, err, scenario.ErrAbsent)
	})
}

func TestIsolation(t *testing.T) {
	t.Run("should keep interleaved scenario contexts fully independent", func(t *testing.T) {
		a := initialized(t)
		b := initialized(t)

		// Interleave operations the way two workers would.
		a.Set("user", "alice")
		widgetA, err := scenario.Resolve(a, newWidgetObject)
		require.NoError(t, err)

		b.Set("user", "bob")
		widgetB, err := scenario.Resolve(b, newWidgetObject)
		require.NoError(t, err)

		a.Set("step", 2)
		b.Set("step", 7)

		userA, _ := a.Get("user")
		userB, _ := b.Get("user")
		assert.Equal(t, "alice", userA)
		assert.Equal(t, "bob", userB)

		stepA, _ := a.Get("step")
		stepB, _ := b.Get("step")
		assert.Equal(t, 2, stepA)
		assert.Equal(t, 7, stepB)

		assert.NotSame(t, widgetA, widgetB)
		assert.NotEqual(t, a.ID(), b.ID())
	})
}

func TestContextPlumbing(t *testing.T) {
	t.Run("should round-trip through a context.Context", func(t *testing.T) {
		sc := scenario.New(t.Name())
		ctx := scenario.NewContext(context.Background(), sc)

		got, ok := scenario.FromContext(ctx)
		require.True(t, ok)
		assert.Same(t, sc, got)
	})

	t.Run("should report a missing scenario as uninitialized", func(t *testing.T) {
		_, err := scenario.MustFromContext(context.Background())
		require.ErrorIs(t, err, scenario.ErrNotInitialized)
	})

	t.Run("should expose page access errors before setup", func(t *testing.T) {
		sc := scenario.New(t.Name())

		_, err := sc.Page()
		require.ErrorIs(t, err, scenario.ErrNotInitialized)

		_, err = sc.Browsing()
		require.ErrorIs(t, err, scenario.ErrNotInitialized)
	})
}
