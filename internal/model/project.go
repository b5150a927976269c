package model

// ProjectPath is the "namespace/project" segment of a GitLab project, with
// no leading or trailing slash and no ".git" suffix.
type ProjectPath struct {
	Path string
}

func (p ProjectPath) String() string {
	return p.Path
}

// ProjectCoord identifies one project on one GitLab instance. It is
// comparable and used as a cache key.
type ProjectCoord struct {
	Server ServerURL
	Path   ProjectPath
}

// URL returns the project's web URL.
func (c ProjectCoord) URL() string {
	return c.Server.URL() + "/" + c.Path.Path
}

// DisplayName prefixes the server's display name for non-default instances.
func (c ProjectCoord) DisplayName() string {
	if c.Server.IsDefault() {
		return c.Path.Path
	}
	return c.Server.DisplayName() + "/" + c.Path.Path
}

func (c ProjectCoord) String() string {
	return c.URL()
}
