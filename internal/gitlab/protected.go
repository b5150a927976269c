package gitlab

import "strings"

// IsProtected reports whether a branch name is covered by any of the
// protected-branch patterns. Patterns use GitLab's wildcard syntax where
// "*" matches any sequence of characters ("release-*", "*-stable").
func IsProtected(branch string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchWildcard(pattern, branch) {
			return true
		}
	}
	return false
}

func matchWildcard(pattern, name string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == name
	}

	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	name = name[len(parts[0]):]

	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(name, parts[i])
		if idx < 0 {
			return false
		}
		name = name[idx+len(parts[i]):]
	}

	return strings.HasSuffix(name, parts[len(parts)-1])
}
