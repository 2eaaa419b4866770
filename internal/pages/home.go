// Package pages holds the page objects for the demo site. Each page object
// wraps the scenario's page behind intent-named methods and locates its
// elements fresh on every call, so instances stay valid across navigation
// and can be memoized for the whole scenario.
package pages

import (
	"context"

	"github.com/gherkit/gherkit/internal/browser"
)

// HomePage is the landing page.
type HomePage struct {
	page browser.Page
}

const (
	homeTagline    = "#tagline"
	homeGetStarted = "#get-started"
)

// NewHomePage builds the page object over the scenario's page.
func NewHomePage(p browser.Page) *HomePage {
	return &HomePage{page: p}
}

// Open navigates to the site root.
func (h *HomePage) Open(ctx context.Context, baseURL string) error {
	return h.page.Navigate(ctx, baseURL+"/")
}

// Tagline returns the landing-page tagline text.
func (h *HomePage) Tagline(ctx context.Context) (string, error) {
	return h.page.Text(ctx, homeTagline)
}

// GetStarted follows the get-started link to the sign-in form.
func (h *HomePage) GetStarted(ctx context.Context) error {
	return h.page.Click(ctx, homeGetStarted)
}
