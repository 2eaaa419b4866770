// Package steps binds Gherkin sentences to the demo-site flows. Handlers
// stay thin: they pull the scenario registry from the step context, resolve
// the flow they need, call it, and assert. All browser work lives below, in
// the flows and page objects.
package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/gherkit/gherkit/internal/browser"
	"github.com/gherkit/gherkit/internal/flows"
	"github.com/gherkit/gherkit/internal/scenario"
	"github.com/gherkit/gherkit/internal/testsite"
)

// sessionKeyEmail is the scenario-data key for the signed-in email.
const sessionKeyEmail = "session.email"

// Suite carries the run-scoped inputs the handlers need: where the site is
// and, when the runner started the embedded site itself, a handle for
// minting pre-authenticated sessions.
type Suite struct {
	baseURL string
	site    *testsite.Server
}

// NewSuite builds the step suite. site may be nil when the run targets an
// external deployment; the pre-authenticated step then falls back to driving
// the sign-in form.
func NewSuite(baseURL string, site *testsite.Server) *Suite {
	return &Suite{baseURL: strings.TrimSuffix(baseURL, "/"), site: site}
}

// Definition is one registered step, kept as data so the steps command can
// print the suite's vocabulary without running anything.
type Definition struct {
	Pattern string
	Doc     string
	handler any
}

// Definitions lists every step the suite registers, in registration order.
func (s *Suite) Definitions() []Definition {
	return []Definition{
		{
			Pattern: `^I am on the home page$`,
			Doc:     "Opens the site root.",
			handler: s.iAmOnTheHomePage,
		},
		{
			Pattern: `^I sign in as "([^"]*)" with password "([^"]*)"$`,
			Doc:     "Drives the sign-in form and waits for the dashboard greeting.",
			handler: s.iSignInAs,
		},
		{
			Pattern: `^I submit the sign-in form as "([^"]*)" with password "([^"]*)"$`,
			Doc:     "Submits credentials without expecting them to be accepted.",
			handler: s.iSubmitTheSignInForm,
		},
		{
			Pattern: `^I am already signed in as "([^"]*)"$`,
			Doc:     "Installs a pre-minted session cookie, skipping the form.",
			handler: s.iAmAlreadySignedInAs,
		},
		{
			Pattern: `^I sign out$`,
			Doc:     "Ends the session from the dashboard.",
			handler: s.iSignOut,
		},
		{
			Pattern: `^I should see the greeting "([^"]*)"$`,
			Doc:     "Asserts the dashboard greeting text.",
			handler: s.iShouldSeeTheGreeting,
		},
		{
			Pattern: `^I should see the sign-in error "([^"]*)"$`,
			Doc:     "Asserts the sign-in form's validation error.",
			handler: s.iShouldSeeTheSignInError,
		},
		{
			Pattern: `^I open the "([^"]*)" industry section$`,
			Doc:     "Navigates to an industry section via the shared nav.",
			handler: s.iOpenTheIndustrySection,
		},
		{
			Pattern: `^the section heading should be "([^"]*)"$`,
			Doc:     "Asserts the industry section heading.",
			handler: s.theSectionHeadingShouldBe,
		},
		{
			Pattern: `^the section summary should mention "([^"]*)"$`,
			Doc:     "Asserts the industry summary contains a phrase.",
			handler: s.theSectionSummaryShouldMention,
		},
		{
			Pattern: `^the page should link to "([^"]*)"$`,
			Doc:     "Asserts the current page links to a path.",
			handler: s.thePageShouldLinkTo,
		},
		{
			Pattern: `^I plan retirement from age (\d+) to (\d+)$`,
			Doc:     "Opens the planner via the nav and submits both ages.",
			handler: s.iPlanRetirement,
		},
		{
			Pattern: `^the plan summary should be "([^"]*)"$`,
			Doc:     "Asserts the planner's computed summary.",
			handler: s.thePlanSummaryShouldBe,
		},
		{
			Pattern: `^the planner error should mention "([^"]*)"$`,
			Doc:     "Asserts the planner's validation error contains a phrase.",
			handler: s.thePlannerErrorShouldMention,
		},
	}
}

// Register wires every step into the godog scenario context.
func (s *Suite) Register(sc *godog.ScenarioContext) {
	for _, def := range s.Definitions() {
		sc.Step(def.Pattern, def.handler)
	}
}

func (s *Suite) iAmOnTheHomePage(ctx context.Context) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	nav, err := scenario.Resolve(sc, flows.NewNavigationFlow)
	if err != nil {
		return err
	}
	return nav.OpenHome(ctx, s.baseURL)
}

func (s *Suite) iSignInAs(ctx context.Context, email, password string) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	auth, err := scenario.Resolve(sc, flows.NewAuthFlow)
	if err != nil {
		return err
	}
	if err := auth.SignIn(ctx, s.baseURL, email, password); err != nil {
		return err
	}
	sc.Set(sessionKeyEmail, email)
	return nil
}

func (s *Suite) iSubmitTheSignInForm(ctx context.Context, email, password string) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	auth, err := scenario.Resolve(sc, flows.NewAuthFlow)
	if err != nil {
		return err
	}
	return auth.SubmitCredentials(ctx, s.baseURL, email, password)
}

// iAmAlreadySignedInAs installs a signed session cookie minted straight from
// the embedded site, so scenarios about signed-in behavior skip the form.
// Against an external deployment there is no signing key to mint with, so it
// signs in through the form instead.
func (s *Suite) iAmAlreadySignedInAs(ctx context.Context, email string) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	if s.site == nil {
		user, ok := testsite.DemoUsers[email]
		if !ok {
			return fmt.Errorf("no demo credentials for %q", email)
		}
		return s.iSignInAs(ctx, email, user.Password)
	}

	token, err := s.site.MintSession(email)
	if err != nil {
		return err
	}
	page, err := sc.Page()
	if err != nil {
		return err
	}
	cookie := browser.Cookie{
		Name:     testsite.SessionCookieName,
		Value:    token,
		URL:      s.baseURL,
		Expires:  time.Now().Add(time.Hour),
		HTTPOnly: true,
	}
	if err := page.SetCookie(ctx, cookie); err != nil {
		return err
	}
	if err := page.Navigate(ctx, s.baseURL+"/dashboard"); err != nil {
		return err
	}
	sc.Set(sessionKeyEmail, email)
	return nil
}

func (s *Suite) iSignOut(ctx context.Context) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	auth, err := scenario.Resolve(sc, flows.NewAuthFlow)
	if err != nil {
		return err
	}
	return auth.SignOut(ctx)
}

func (s *Suite) iShouldSeeTheGreeting(ctx context.Context, want string) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	page, err := sc.Page()
	if err != nil {
		return err
	}
	greeting, err := page.Text(ctx, "#greeting")
	if err != nil {
		return err
	}
	if greeting != want {
		return fmt.Errorf("expected greeting %q, got %q", want, greeting)
	}
	return nil
}

func (s *Suite) iShouldSeeTheSignInError(ctx context.Context, want string) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	page, err := sc.Page()
	if err != nil {
		return err
	}
	msg, err := page.Text(ctx, "#error")
	if err != nil {
		return err
	}
	if msg != want {
		return fmt.Errorf("expected sign-in error %q, got %q", want, msg)
	}
	return nil
}

func (s *Suite) iOpenTheIndustrySection(ctx context.Context, slug string) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	nav, err := scenario.Resolve(sc, flows.NewNavigationFlow)
	if err != nil {
		return err
	}
	_, err = nav.VisitIndustry(ctx, slug)
	return err
}

func (s *Suite) theSectionHeadingShouldBe(ctx context.Context, want string) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	page, err := sc.Page()
	if err != nil {
		return err
	}
	title, err := page.Text(ctx, "#page-title")
	if err != nil {
		return err
	}
	if title != want {
		return fmt.Errorf("expected section heading %q, got %q", want, title)
	}
	return nil
}

func (s *Suite) theSectionSummaryShouldMention(ctx context.Context, phrase string) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	nav, err := scenario.Resolve(sc, flows.NewNavigationFlow)
	if err != nil {
		return err
	}
	summary, err := nav.IndustrySummary(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(summary, phrase) {
		return fmt.Errorf("expected summary to mention %q, got %q", phrase, summary)
	}
	return nil
}

func (s *Suite) thePageShouldLinkTo(ctx context.Context, path string) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	page, err := sc.Page()
	if err != nil {
		return err
	}
	links, err := page.Links(ctx)
	if err != nil {
		return err
	}
	for _, link := range links {
		if strings.HasSuffix(link, path) {
			return nil
		}
	}
	return fmt.Errorf("no link to %q among %d links on the page", path, len(links))
}

func (s *Suite) iPlanRetirement(ctx context.Context, currentAge, retirementAge int) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	planner, err := scenario.Resolve(sc, flows.NewRetirementFlow)
	if err != nil {
		return err
	}
	return planner.PlanFromNav(ctx, currentAge, retirementAge)
}

func (s *Suite) thePlanSummaryShouldBe(ctx context.Context, want string) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	planner, err := scenario.Resolve(sc, flows.NewRetirementFlow)
	if err != nil {
		return err
	}
	summary, err := planner.Summary(ctx)
	if err != nil {
		return err
	}
	if summary != want {
		return fmt.Errorf("expected plan summary %q, got %q", want, summary)
	}
	return nil
}

func (s *Suite) thePlannerErrorShouldMention(ctx context.Context, phrase string) error {
	sc, err := scenario.MustFromContext(ctx)
	if err != nil {
		return err
	}
	planner, err := scenario.Resolve(sc, flows.NewRetirementFlow)
	if err != nil {
		return err
	}
	msg, err := planner.ErrorMessage(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(msg, phrase) {
		return fmt.Errorf("expected planner error to mention %q, got %q", phrase, msg)
	}
	return nil
}
