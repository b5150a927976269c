package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemotes(t *testing.T) {
	out := "origin\tgit@gitlab.com:user/repo.git (fetch)\n" +
		"origin\tgit@gitlab.com:user/repo.git (push)\n" +
		"upstream\thttps://gitlab.com/group/repo.git (fetch)\n" +
		"upstream\tgit@gitlab.com:group/repo.git (push)\n"

	remotes := parseRemotes(out)
	require.Len(t, remotes, 2)
	assert.Equal(t, Remote{Name: "origin", URLs: []string{"git@gitlab.com:user/repo.git"}}, remotes[0])
	assert.Equal(t, Remote{
		Name: "upstream",
		URLs: []string{"https://gitlab.com/group/repo.git", "git@gitlab.com:group/repo.git"},
	}, remotes[1])
}

func TestParseRemotes_Empty(t *testing.T) {
	assert.Empty(t, parseRemotes(""))
}

func TestParseUpstream(t *testing.T) {
	tracking := parseUpstream("origin/feature/login")
	require.NotNil(t, tracking)
	assert.Equal(t, "origin", tracking.RemoteName)
	assert.Equal(t, "feature/login", tracking.RemoteBranch)

	assert.Nil(t, parseUpstream("nonsense"))
	assert.Nil(t, parseUpstream(""))
}
