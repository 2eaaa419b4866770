// Package flows composes page objects into the multi-page journeys the step
// definitions express intent through. A flow runs a fixed sequence and
// propagates the first failure unchanged; it never retries, branches on page
// state, or swallows errors.
package flows

import (
	"context"

	"github.com/gherkit/gherkit/internal/browser"
	"github.com/gherkit/gherkit/internal/pages"
)

// AuthFlow walks the sign-in and sign-out journeys.
type AuthFlow struct {
	signIn    *pages.SignInPage
	dashboard *pages.DashboardPage
}

// NewAuthFlow builds the flow and its page objects over the scenario's page.
func NewAuthFlow(p browser.Page) *AuthFlow {
	return &AuthFlow{
		signIn:    pages.NewSignInPage(p),
		dashboard: pages.NewDashboardPage(p),
	}
}

// SignIn opens the form, submits the credentials, and waits for the
// dashboard greeting. Wrong credentials surface as the greeting never
// appearing, not as a flow-level check.
func (f *AuthFlow) SignIn(ctx context.Context, baseURL, email, password string) error {
	if err := f.signIn.Open(ctx, baseURL); err != nil {
		return err
	}
	if err := f.signIn.SignIn(ctx, email, password); err != nil {
		return err
	}
	return f.dashboard.AwaitGreeting(ctx)
}

// SubmitCredentials opens the form and submits without awaiting the
// dashboard, for scenarios that assert on a rejected sign-in.
func (f *AuthFlow) SubmitCredentials(ctx context.Context, baseURL, email, password string) error {
	if err := f.signIn.Open(ctx, baseURL); err != nil {
		return err
	}
	return f.signIn.SignIn(ctx, email, password)
}

// SignOut ends the session from the dashboard.
func (f *AuthFlow) SignOut(ctx context.Context) error {
	return f.dashboard.SignOut(ctx)
}
