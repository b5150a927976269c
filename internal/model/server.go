// Package model holds the value types identifying GitLab instances and
// projects, and the matching of git remote URLs against them.
package model

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

const (
	httpsDefaultPort = 443
	httpDefaultPort  = 80

	// DefaultHost is the host of the public GitLab instance.
	DefaultHost = "gitlab.com"
	// DefaultURL is the URL of the public GitLab instance.
	DefaultURL = "https://" + DefaultHost
)

var serverURLRegex = regexp.MustCompile(`^(https?)://([a-zA-Z\d\-.]+)(?::(\d+))?/?$`)

// InvalidURLError reports a string that cannot be parsed as a GitLab
// server URL.
type InvalidURLError struct {
	URL    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("not a valid GitLab URL (%s): %s", e.Reason, e.URL)
	}
	return fmt.Sprintf("not a valid GitLab URL: %s", e.URL)
}

// ServerURL identifies one GitLab instance by scheme, host and port.
// The zero value is not valid; construct via ParseServerURL or NewServerURL.
// It is comparable and safe to use as a map key.
type ServerURL struct {
	HTTPS bool
	Host  string
	Port  int
}

// DefaultServerURL is the ServerURL of gitlab.com.
var DefaultServerURL = ServerURL{HTTPS: true, Host: DefaultHost, Port: httpsDefaultPort}

// NewServerURL builds a ServerURL with the scheme's default port when
// port is zero.
func NewServerURL(https bool, host string, port int) ServerURL {
	if port == 0 {
		port = defaultPort(https)
	}
	return ServerURL{HTTPS: https, Host: host, Port: port}
}

// ParseServerURL parses a string of the form "http(s)://host[:port][/]".
func ParseServerURL(raw string) (ServerURL, error) {
	m := serverURLRegex.FindStringSubmatch(raw)
	if m == nil {
		return ServerURL{}, &InvalidURLError{URL: raw}
	}
	https := m[1] == "https"

	port := defaultPort(https)
	if m[3] != "" {
		p, err := strconv.Atoi(m[3])
		if err != nil || p <= 0 || p > 65535 {
			return ServerURL{}, &InvalidURLError{URL: raw, Reason: "illegal port " + m[3]}
		}
		port = p
	}

	return ServerURL{HTTPS: https, Host: m[2], Port: port}, nil
}

// URL formats the server URL, omitting the port when it is the scheme's
// conventional default.
func (s ServerURL) URL() string {
	scheme := "http"
	if s.HTTPS {
		scheme = "https"
	}
	if s.Port == defaultPort(s.HTTPS) {
		return scheme + "://" + s.Host
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.Host, s.Port)
}

// DisplayName is a compact human-readable form: the bare host for default
// https, otherwise the full URL shape.
func (s ServerURL) DisplayName() string {
	if s.HTTPS {
		if s.Port == httpsDefaultPort {
			return s.Host
		}
		return fmt.Sprintf("%s:%d", s.Host, s.Port)
	}
	return s.URL()
}

// IsDefault reports whether this is the public gitlab.com instance.
func (s ServerURL) IsDefault() bool {
	return s == DefaultServerURL
}

// IsReferencedBy reports whether the git remote URL points at a project on
// this server.
func (s ServerURL) IsReferencedBy(remoteURL string) bool {
	_, ok := MatchRemote(remoteURL, s)
	return ok
}

func (s ServerURL) String() string {
	return s.URL()
}

func defaultPort(https bool) int {
	if https {
		return httpsDefaultPort
	}
	return httpDefaultPort
}

// RequiredTokenScopes are the access-token scopes the client needs.
var RequiredTokenScopes = []string{"read_api"}

// NewTokenURL returns the URL of the server's personal-access-token creation
// page, pre-filled with the scopes the agent needs.
func NewTokenURL(server ServerURL) string {
	q := url.Values{}
	q.Set("scopes", "read_api")
	q.Set("name", "gitlab-sync agent")
	return server.URL() + "/-/profile/personal_access_tokens?" + q.Encode()
}
