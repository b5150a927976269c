package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRemote_SSH(t *testing.T) {
	coord, ok := MatchRemote("git@gitlab.com:user/repo.git", DefaultServerURL)
	require.True(t, ok)
	assert.Equal(t, "user/repo", coord.Path.Path)
	assert.Equal(t, DefaultServerURL, coord.Server)

	// nested namespaces keep their full path
	coord, ok = MatchRemote("git@gitlab.com:group/sub/repo.git", DefaultServerURL)
	require.True(t, ok)
	assert.Equal(t, "group/sub/repo", coord.Path.Path)
}

func TestMatchRemote_SSH_OtherHost(t *testing.T) {
	_, ok := MatchRemote("git@other.gitlab.org:user/repo.git", DefaultServerURL)
	assert.False(t, ok)
}

func TestMatchRemote_HTTPS(t *testing.T) {
	coord, ok := MatchRemote("https://gitlab.com/user/repo.git", DefaultServerURL)
	require.True(t, ok)
	assert.Equal(t, "user/repo", coord.Path.Path)
}

func TestMatchRemote_HTTP_NonDefaultPort(t *testing.T) {
	server := ServerURL{HTTPS: false, Host: "gitlab.example.org", Port: 8080}
	coord, ok := MatchRemote("http://gitlab.example.org:8080/user/repo.git", server)
	require.True(t, ok)
	assert.Equal(t, "user/repo", coord.Path.Path)

	// port mismatch
	_, ok = MatchRemote("http://gitlab.example.org/user/repo.git", server)
	assert.False(t, ok)
}

func TestMatchRemote_SchemeMismatch(t *testing.T) {
	_, ok := MatchRemote("http://gitlab.com/user/repo.git", DefaultServerURL)
	assert.False(t, ok)
}

func TestMatchRemote_NoMatch(t *testing.T) {
	for _, raw := range []string{
		"PROTOCOL://gitlab.com/user/repo.git",
		"https://other.gitlab.org/user/repo.git",
		"https://gitlab.com/user/repository", // no .git suffix
		"https://gitlab.com/.git",            // empty path
		"not a url at all",
		"",
	} {
		_, ok := MatchRemote(raw, DefaultServerURL)
		assert.False(t, ok, "input %q", raw)
	}
}

func TestMatchRemote_StripsExactlyOneSuffix(t *testing.T) {
	coord, ok := MatchRemote("https://gitlab.com/user/repo.git.git", DefaultServerURL)
	require.True(t, ok)
	assert.Equal(t, "user/repo.git", coord.Path.Path)
}

func TestProjectCoord_URL(t *testing.T) {
	coord := ProjectCoord{Server: DefaultServerURL, Path: ProjectPath{Path: "user/repo"}}
	assert.Equal(t, "https://gitlab.com/user/repo", coord.URL())
	assert.Equal(t, "user/repo", coord.DisplayName())

	other := ProjectCoord{
		Server: ServerURL{HTTPS: true, Host: "gitlab.example.org", Port: 443},
		Path:   ProjectPath{Path: "user/repo"},
	}
	assert.Equal(t, "gitlab.example.org/user/repo", other.DisplayName())
}
