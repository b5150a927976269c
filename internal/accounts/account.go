// Package accounts manages GitLab accounts and their secret tokens:
// registration, removal, token rotation and change notification.
package accounts

import (
	"github.com/google/uuid"

	"github.com/mergelab/gitlab-sync/internal/model"
)

// Account identifies one GitLab user on one server. Many accounts may share
// a server; ID is globally unique and never changes. Name is the mutable
// display name, refreshed from the user profile.
type Account struct {
	Server model.ServerURL
	Name   string
	ID     string
}

// NewAccount creates an account with a freshly generated stable ID.
func NewAccount(server model.ServerURL, name string) Account {
	return Account{Server: server, Name: name, ID: uuid.NewString()}
}

func (a Account) String() string {
	if a.Server.IsDefault() {
		return a.Name
	}
	return a.Server.String() + "/" + a.Name
}

// AccessToken wraps an opaque secret. Its String form never contains the
// full secret, so tokens can appear in diagnostics safely.
type AccessToken struct {
	value string
}

// NewAccessToken wraps a raw token string.
func NewAccessToken(value string) AccessToken {
	return AccessToken{value: value}
}

// Value returns the raw secret.
func (t AccessToken) Value() string { return t.value }

// IsZero reports whether the token is empty.
func (t AccessToken) IsZero() bool { return t.value == "" }

func (t AccessToken) String() string {
	if len(t.value) <= 3 {
		return "AccessToken(*****)"
	}
	return "AccessToken(" + t.value[:3] + "*****)"
}
