package pages

import (
	"context"

	"github.com/gherkit/gherkit/internal/browser"
)

// DashboardPage is the signed-in landing page.
type DashboardPage struct {
	page browser.Page
}

const (
	dashboardGreeting = "#greeting"
	dashboardSignOut  = "#signout"
)

// NewDashboardPage builds the page object over the scenario's page.
func NewDashboardPage(p browser.Page) *DashboardPage {
	return &DashboardPage{page: p}
}

// Open navigates straight to the dashboard. Anonymous visitors get redirected
// to the sign-in form by the site.
func (d *DashboardPage) Open(ctx context.Context, baseURL string) error {
	return d.page.Navigate(ctx, baseURL+"/dashboard")
}

// AwaitGreeting waits until the greeting is visible, which is the signal that
// sign-in landed on the dashboard.
func (d *DashboardPage) AwaitGreeting(ctx context.Context) error {
	return d.page.WaitVisible(ctx, dashboardGreeting)
}

// Greeting returns the greeting text, e.g. "Welcome, Alice Hart".
func (d *DashboardPage) Greeting(ctx context.Context) (string, error) {
	return d.page.Text(ctx, dashboardGreeting)
}

// SignOut follows the sign-out link, ending the session.
func (d *DashboardPage) SignOut(ctx context.Context) error {
	return d.page.Click(ctx, dashboardSignOut)
}
