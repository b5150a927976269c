// Package git defines the narrow interface to the local repository
// provider, plus an implementation that shells out to the git CLI.
package git

import "context"

// Remote is one configured git remote with all its fetch URLs.
type Remote struct {
	Name string
	URLs []string
}

// Tracking describes the upstream of the current branch.
type Tracking struct {
	// RemoteName is the remote the branch tracks, e.g. "origin".
	RemoteName string
	// RemoteBranch is the branch name on the remote side, as used for
	// remote operations.
	RemoteBranch string
}

// Repository is a snapshot of one local working copy.
type Repository struct {
	// Root is the absolute path of the repository root.
	Root string
	// Remotes lists the configured remotes.
	Remotes []Remote
	// CurrentBranch is the checked-out branch, empty for detached HEAD.
	CurrentBranch string
	// Upstream is the tracking info of the current branch, nil when the
	// branch tracks nothing.
	Upstream *Tracking
}

// Provider enumerates local repositories. Implementations must be safe for
// concurrent use.
type Provider interface {
	ListRepositories(ctx context.Context) ([]Repository, error)
}
