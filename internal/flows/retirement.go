package flows

import (
	"context"

	"github.com/gherkit/gherkit/internal/browser"
	"github.com/gherkit/gherkit/internal/pages"
)

// RetirementFlow drives the retirement planner.
type RetirementFlow struct {
	planner *pages.RetirementPage
}

// NewRetirementFlow builds the flow and its page object over the
// scenario's page.
func NewRetirementFlow(p browser.Page) *RetirementFlow {
	return &RetirementFlow{planner: pages.NewRetirementPage(p)}
}

// PlanFromNav opens the planner via the nav link and submits both ages.
func (f *RetirementFlow) PlanFromNav(ctx context.Context, currentAge, retirementAge int) error {
	if err := f.planner.OpenViaNav(ctx); err != nil {
		return err
	}
	return f.planner.Plan(ctx, currentAge, retirementAge)
}

// Plan opens the planner directly and submits both ages.
func (f *RetirementFlow) Plan(ctx context.Context, baseURL string, currentAge, retirementAge int) error {
	if err := f.planner.Open(ctx, baseURL); err != nil {
		return err
	}
	return f.planner.Plan(ctx, currentAge, retirementAge)
}

// Summary returns the planner's computed summary.
func (f *RetirementFlow) Summary(ctx context.Context) (string, error) {
	return f.planner.Summary(ctx)
}

// ErrorMessage returns the planner's validation error.
func (f *RetirementFlow) ErrorMessage(ctx context.Context) (string, error) {
	return f.planner.ErrorMessage(ctx)
}
