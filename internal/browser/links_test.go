package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHref(t *testing.T) {
	base, err := parseBase("http://127.0.0.1:8080/industries/energy")
	require.NoError(t, err)

	tests := []struct {
		name string
		href string
		want string
		ok   bool
	}{
		{"absolute", "https://example.test/docs", "https://example.test/docs", true},
		{"root relative", "/signin", "http://127.0.0.1:8080/signin", true},
		{"document relative", "healthcare", "http://127.0.0.1:8080/industries/healthcare", true},
		{"fragment only", "#summary", "", false},
		{"javascript scheme", "javascript:void(0)", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resolveHref(base, tt.href)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("should keep only absolute hrefs without a base", func(t *testing.T) {
		got, ok := resolveHref(nil, "https://example.test/")
		assert.True(t, ok)
		assert.Equal(t, "https://example.test/", got)

		_, ok = resolveHref(nil, "/signin")
		assert.False(t, ok)
	})
}

func TestExtractLinks(t *testing.T) {
	const document = `<!DOCTYPE html>
<html><body>
<nav>
  <a id="nav-home" href="/">Home</a>
  <a id="nav-signin" href="/signin">Sign in</a>
  <a href="#main">Skip</a>
  <a href="javascript:void(0)">Noop</a>
</nav>
<a href="https://status.example.test">Status</a>
<a>anchor without href</a>
</body></html>`

	links, err := extractLinks(document, "http://127.0.0.1:8080/dashboard")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://127.0.0.1:8080/",
		"http://127.0.0.1:8080/signin",
		"https://status.example.test",
	}, links)
}
