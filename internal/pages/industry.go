package pages

import (
	"context"
	"fmt"

	"github.com/gherkit/gherkit/internal/browser"
)

// IndustryPage is any of the industry sections. One page object serves all
// sections; the slug picks the nav link.
type IndustryPage struct {
	page browser.Page
}

const (
	industryTitle   = "#page-title"
	industrySummary = "#industry-summary"
)

// NewIndustryPage builds the page object over the scenario's page.
func NewIndustryPage(p browser.Page) *IndustryPage {
	return &IndustryPage{page: p}
}

// OpenViaNav clicks the nav link for the given industry slug.
func (i *IndustryPage) OpenViaNav(ctx context.Context, slug string) error {
	return i.page.Click(ctx, fmt.Sprintf("#nav-%s", slug))
}

// Open navigates directly to an industry section.
func (i *IndustryPage) Open(ctx context.Context, baseURL, slug string) error {
	return i.page.Navigate(ctx, fmt.Sprintf("%s/industries/%s", baseURL, slug))
}

// Title returns the section heading.
func (i *IndustryPage) Title(ctx context.Context) (string, error) {
	return i.page.Text(ctx, industryTitle)
}

// Summary returns the section's summary paragraph.
func (i *IndustryPage) Summary(ctx context.Context) (string, error) {
	return i.page.Text(ctx, industrySummary)
}
