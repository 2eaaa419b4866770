package flows

import (
	"context"

	"github.com/gherkit/gherkit/internal/browser"
	"github.com/gherkit/gherkit/internal/pages"
)

// NavigationFlow moves between the site's sections from the shared nav.
type NavigationFlow struct {
	home     *pages.HomePage
	industry *pages.IndustryPage
}

// NewNavigationFlow builds the flow and its page objects over the
// scenario's page.
func NewNavigationFlow(p browser.Page) *NavigationFlow {
	return &NavigationFlow{
		home:     pages.NewHomePage(p),
		industry: pages.NewIndustryPage(p),
	}
}

// OpenHome lands on the site root.
func (f *NavigationFlow) OpenHome(ctx context.Context, baseURL string) error {
	return f.home.Open(ctx, baseURL)
}

// VisitIndustry clicks through the nav to an industry section and returns
// its heading.
func (f *NavigationFlow) VisitIndustry(ctx context.Context, slug string) (string, error) {
	if err := f.industry.OpenViaNav(ctx, slug); err != nil {
		return "", err
	}
	return f.industry.Title(ctx)
}

// IndustrySummary returns the current section's summary paragraph.
func (f *NavigationFlow) IndustrySummary(ctx context.Context) (string, error) {
	return f.industry.Summary(ctx)
}
