package report

import (
	"context"
	"fmt"

	"github.com/google/go-github/v58/github"

	"github.com/gherkit/gherkit/internal/config"
)

// PublishCommitStatus posts the run outcome as a GitHub commit status.
// Disabled (a no-op) unless a repository is configured. The SHA defaults to
// the commit stamped on the run.
func PublishCommitStatus(ctx context.Context, cfg config.GitHubConfig, run *Run) error {
	if cfg.Repository == "" {
		return nil
	}
	sha := cfg.SHA
	if sha == "" && run.Git != nil {
		sha = run.Git.Commit
	}
	if sha == "" {
		return fmt.Errorf("no commit SHA available for status publication")
	}
	if cfg.Token == "" {
		return fmt.Errorf("github token not configured")
	}

	state := "success"
	if run.Failed() {
		state = "failure"
	}
	summary := Summarize(run)

	client := github.NewClient(nil).WithAuthToken(cfg.Token)
	_, _, err := client.Repositories.CreateStatus(ctx, cfg.Owner(), cfg.Name(), sha, &github.RepoStatus{
		State:       github.String(state),
		Context:     github.String(cfg.Context),
		Description: github.String(summary.Line()),
	})
	if err != nil {
		return fmt.Errorf("create commit status: %w", err)
	}
	return nil
}
