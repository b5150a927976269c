package model

import (
	"net/url"
	"regexp"
	"strings"
)

var sshRemoteURLRegex = regexp.MustCompile(`^git@([^:]+):(.*)\.git$`)

// MatchRemote maps a git remote URL to a project coordinate on the given
// server. It understands the SSH form "git@host:namespace/project.git" and
// the http(s) form "scheme://host[:port]/namespace/project.git".
//
// A malformed or non-matching URL is an expected negative result, not an
// error: the second return value is false and no coordinate is produced.
func MatchRemote(remoteURL string, server ServerURL) (ProjectCoord, bool) {
	if m := sshRemoteURLRegex.FindStringSubmatch(remoteURL); m != nil {
		// SSH has no scheme or port to compare; host equality decides.
		if m[1] != server.Host {
			return ProjectCoord{}, false
		}
		return ProjectCoord{Server: server, Path: ProjectPath{Path: m[2]}}, true
	}

	u, err := url.Parse(remoteURL)
	if err != nil {
		return ProjectCoord{}, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ProjectCoord{}, false
	}
	if (u.Scheme == "https") != server.HTTPS {
		return ProjectCoord{}, false
	}
	if u.Hostname() != server.Host || remotePort(u) != server.Port {
		return ProjectCoord{}, false
	}
	if !strings.HasSuffix(u.Path, ".git") {
		return ProjectCoord{}, false
	}

	path := strings.TrimPrefix(strings.TrimSuffix(u.Path, ".git"), "/")
	if path == "" {
		return ProjectCoord{}, false
	}
	return ProjectCoord{Server: server, Path: ProjectPath{Path: path}}, true
}

func remotePort(u *url.URL) int {
	if p := u.Port(); p != "" {
		port := 0
		for _, c := range p {
			if c < '0' || c > '9' {
				return -1
			}
			port = port*10 + int(c-'0')
		}
		return port
	}
	return defaultPort(u.Scheme == "https")
}
