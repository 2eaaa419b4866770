package pages

import (
	"context"

	"github.com/gherkit/gherkit/internal/browser"
)

// SignInPage is the credential form.
type SignInPage struct {
	page browser.Page
}

const (
	signInEmail    = "#email"
	signInPassword = "#password"
	signInSubmit   = "#signin-submit"
	signInError    = "#error"
)

// NewSignInPage builds the page object over the scenario's page.
func NewSignInPage(p browser.Page) *SignInPage {
	return &SignInPage{page: p}
}

// Open navigates to the sign-in form.
func (s *SignInPage) Open(ctx context.Context, baseURL string) error {
	return s.page.Navigate(ctx, baseURL+"/signin")
}

// SignIn fills the form and submits it. It does not judge the outcome; the
// caller checks the resulting page.
func (s *SignInPage) SignIn(ctx context.Context, email, password string) error {
	if err := s.page.Fill(ctx, signInEmail, email); err != nil {
		return err
	}
	if err := s.page.Fill(ctx, signInPassword, password); err != nil {
		return err
	}
	return s.page.Click(ctx, signInSubmit)
}

// ErrorMessage returns the form's validation error text. Fails when no error
// is displayed.
func (s *SignInPage) ErrorMessage(ctx context.Context) (string, error) {
	return s.page.Text(ctx, signInError)
}
