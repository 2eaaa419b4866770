package pages

import (
	"context"
	"strconv"

	"github.com/gherkit/gherkit/internal/browser"
)

// RetirementPage is the retirement-planner form.
type RetirementPage struct {
	page browser.Page
}

const (
	retirementNav        = "#nav-retirement"
	retirementCurrentAge = "#current-age"
	retirementTargetAge  = "#retirement-age"
	retirementSubmit     = "#plan-submit"
	retirementSummary    = "#summary"
	retirementError      = "#error"
)

// NewRetirementPage builds the page object over the scenario's page.
func NewRetirementPage(p browser.Page) *RetirementPage {
	return &RetirementPage{page: p}
}

// OpenViaNav clicks the planner's nav link.
func (r *RetirementPage) OpenViaNav(ctx context.Context) error {
	return r.page.Click(ctx, retirementNav)
}

// Open navigates directly to the planner.
func (r *RetirementPage) Open(ctx context.Context, baseURL string) error {
	return r.page.Navigate(ctx, baseURL+"/retirement")
}

// Plan fills both ages and submits the form.
func (r *RetirementPage) Plan(ctx context.Context, currentAge, retirementAge int) error {
	if err := r.page.Fill(ctx, retirementCurrentAge, strconv.Itoa(currentAge)); err != nil {
		return err
	}
	if err := r.page.Fill(ctx, retirementTargetAge, strconv.Itoa(retirementAge)); err != nil {
		return err
	}
	return r.page.Click(ctx, retirementSubmit)
}

// Summary returns the computed plan summary. Fails when the form has not
// produced one.
func (r *RetirementPage) Summary(ctx context.Context) (string, error) {
	return r.page.Text(ctx, retirementSummary)
}

// ErrorMessage returns the form's validation error text.
func (r *RetirementPage) ErrorMessage(ctx context.Context) (string, error) {
	return r.page.Text(ctx, retirementError)
}
