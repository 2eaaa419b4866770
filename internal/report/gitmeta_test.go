package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gherkit/gherkit/internal/config"
)

func TestGitMetadata(t *testing.T) {
	t.Run("should return nothing outside a repository", func(t *testing.T) {
		meta, err := GitMetadata(t.TempDir())
		require.NoError(t, err)
		assert.Nil(t, meta)
	})

	t.Run("should read commit, branch and dirty state", func(t *testing.T) {
		dir := t.TempDir()
		repo, err := git.PlainInit(dir, false)
		require.NoError(t, err)

		worktree, err := repo.Worktree()
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("demo\n"), 0o644))
		_, err = worktree.Add("README.md")
		require.NoError(t, err)
		commit, err := worktree.Commit("initial", &git.CommitOptions{
			Author: &object.Signature{Name: "tester", Email: "tester@example.test"},
		})
		require.NoError(t, err)

		meta, err := GitMetadata(dir)
		require.NoError(t, err)
		require.NotNil(t, meta)
		assert.Equal(t, commit.String(), meta.Commit)
		assert.Equal(t, "master", meta.Branch)
		assert.False(t, meta.Dirty)

		// An uncommitted change flips the dirty flag.
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("wip\n"), 0o644))
		meta, err = GitMetadata(dir)
		require.NoError(t, err)
		assert.True(t, meta.Dirty)
	})
}

func TestPublishCommitStatus(t *testing.T) {
	t.Run("should be a no-op without a repository", func(t *testing.T) {
		err := PublishCommitStatus(context.Background(), config.GitHubConfig{}, sampleRun())
		assert.NoError(t, err)
	})

	t.Run("should require a SHA from config or run metadata", func(t *testing.T) {
		cfg := config.GitHubConfig{Repository: "acme/meridian", Token: "tok"}
		err := PublishCommitStatus(context.Background(), cfg, sampleRun())
		require.ErrorContains(t, err, "no commit SHA")
	})

	t.Run("should require a token", func(t *testing.T) {
		cfg := config.GitHubConfig{Repository: "acme/meridian", SHA: "abc123"}
		err := PublishCommitStatus(context.Background(), cfg, sampleRun())
		require.ErrorContains(t, err, "token not configured")
	})
}
