package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// CLIProvider lists repositories by running the git CLI against a fixed set
// of working-copy roots.
type CLIProvider struct {
	roots  []string
	logger zerolog.Logger
}

// NewCLIProvider creates a provider over the given repository roots.
// Non-repository roots are skipped at listing time.
func NewCLIProvider(roots []string, logger zerolog.Logger) *CLIProvider {
	return &CLIProvider{
		roots:  roots,
		logger: logger.With().Str("component", "git").Logger(),
	}
}

func (p *CLIProvider) ListRepositories(ctx context.Context) ([]Repository, error) {
	var out []Repository
	for _, root := range p.roots {
		if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
			p.logger.Debug().Str("root", root).Msg("not a git repository, skipping")
			continue
		}

		repo, err := p.readRepository(ctx, root)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn().Str("root", root).Err(err).Msg("failed reading repository, skipping")
			continue
		}
		out = append(out, repo)
	}
	return out, nil
}

func (p *CLIProvider) readRepository(ctx context.Context, root string) (Repository, error) {
	repo := Repository{Root: root}

	remotesOut, err := p.run(ctx, root, "remote", "-v")
	if err != nil {
		return Repository{}, err
	}
	repo.Remotes = parseRemotes(remotesOut)

	// empty on detached HEAD; not an error
	branchOut, err := p.run(ctx, root, "symbolic-ref", "--short", "-q", "HEAD")
	if err == nil {
		repo.CurrentBranch = strings.TrimSpace(branchOut)
	}

	if repo.CurrentBranch != "" {
		// "@{upstream}" fails when the branch tracks nothing
		upstreamOut, err := p.run(ctx, root, "rev-parse", "--abbrev-ref", repo.CurrentBranch+"@{upstream}")
		if err == nil {
			repo.Upstream = parseUpstream(strings.TrimSpace(upstreamOut))
		}
	}

	return repo, nil
}

func (p *CLIProvider) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// parseRemotes decodes `git remote -v` output, collapsing the fetch/push
// line pairs into one Remote per name.
func parseRemotes(out string) []Remote {
	index := make(map[string]int)
	var remotes []Remote
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name, url := fields[0], fields[1]

		i, ok := index[name]
		if !ok {
			index[name] = len(remotes)
			remotes = append(remotes, Remote{Name: name, URLs: []string{url}})
			continue
		}
		if !contains(remotes[i].URLs, url) {
			remotes[i].URLs = append(remotes[i].URLs, url)
		}
	}
	return remotes
}

// parseUpstream splits "origin/feature/x" into remote and branch. The
// remote name never contains a slash; the branch may.
func parseUpstream(ref string) *Tracking {
	name, branch, ok := strings.Cut(ref, "/")
	if !ok || name == "" || branch == "" {
		return nil
	}
	return &Tracking{RemoteName: name, RemoteBranch: branch}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
