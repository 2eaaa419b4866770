package report

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

// GitMetadata inspects the repository containing dir and returns its HEAD
// commit, branch and dirty flag. Running outside a repository is normal
// (e.g. in an extracted CI artifact) and returns nil without error.
func GitMetadata(dir string) (*Git, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}

	meta := &Git{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		meta.Branch = head.Name().Short()
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return meta, nil
	}
	status, err := worktree.Status()
	if err != nil {
		return meta, nil
	}
	meta.Dirty = !status.IsClean()
	return meta, nil
}
