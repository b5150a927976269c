// Package gitlab is the typed API client: GraphQL operations with cursor
// pagination plus the REST v4 calls the GraphQL API does not cover.
package gitlab

import (
	"context"
	"errors"
	"image"
	"net/url"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"

	"github.com/mergelab/gitlab-sync/internal/metrics"
	"github.com/mergelab/gitlab-sync/internal/model"
	"github.com/mergelab/gitlab-sync/internal/transport"
)

const (
	// DefaultPageSize is the GraphQL page size for list operations.
	DefaultPageSize = 100
	// DefaultMaxResults bounds how many elements a paginated operation
	// accumulates before it stops following cursors.
	DefaultMaxResults = 500
)

// ErrUnauthorized reports a rejected or missing token, as opposed to a
// network failure. It is never retried automatically.
var ErrUnauthorized = errors.New("gitlab: unauthorized access")

// Client executes typed operations against one GitLab server with one
// token. All methods are safe for concurrent use and block no longer than
// the caller's context allows.
type Client struct {
	transport  transport.Client
	bearer     transport.RequestCustomizer
	private    transport.RequestCustomizer
	pageSize   int
	maxResults int
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// Option adjusts client construction.
type Option func(*Client)

// WithPageSize overrides the GraphQL page size.
func WithPageSize(n int) Option {
	return func(c *Client) { c.pageSize = n }
}

// WithMaxResults overrides the pagination accumulation cap.
func WithMaxResults(n int) Option {
	return func(c *Client) { c.maxResults = n }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a client on top of the given transport. The token is
// injected as "Authorization: Bearer" for GraphQL and "PRIVATE-TOKEN" for
// REST v4.
func NewClient(t transport.Client, token string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		transport:  t,
		bearer:     transport.BearerAuth(token),
		private:    transport.PrivateToken(token),
		pageSize:   DefaultPageSize,
		maxResults: DefaultMaxResults,
		logger:     logger.With().Str("component", "gitlab").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetUserDetails loads the authenticated user. A null currentUser in the
// response means the token was rejected, not that the network failed, and
// maps to ErrUnauthorized.
func (c *Client) GetUserDetails(ctx context.Context) (UserDetails, error) {
	var data currentUserData
	err := c.query(ctx, "current_user", transport.GraphQLRequest{
		Query:         currentUserQuery,
		OperationName: "currentUser",
	}, &data)
	if err != nil {
		return UserDetails{}, err
	}
	if data.CurrentUser == nil {
		return UserDetails{}, ErrUnauthorized
	}

	details := UserDetails{
		Username: data.CurrentUser.Username,
		Name:     data.CurrentUser.Name,
	}
	if data.CurrentUser.AvatarURL != nil {
		details.AvatarURL = *data.CurrentUser.AvatarURL
	}
	return details, nil
}

// GetAvatar fetches and decodes an avatar image from an absolute or
// server-relative location. It is best-effort: HTTP errors, unreachable
// hosts and undecodable bodies all yield (nil, nil). Only cancellation
// propagates.
func (c *Client) GetAvatar(ctx context.Context, location string) (image.Image, error) {
	resp, err := c.transport.Execute(ctx, transport.Request{Location: location}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug().Str("location", location).Err(err).Msg("avatar fetch failed")
		return nil, nil
	}
	defer resp.Body.Close()

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug().Str("location", location).Err(err).Msg("avatar decode failed")
		return nil, nil
	}
	return img, nil
}

// protectedBranch is the REST v4 wire shape.
type protectedBranch struct {
	ID                        int    `json:"id"`
	Name                      string `json:"name"`
	AllowForcePush            bool   `json:"allow_force_push"`
	CodeOwnerApprovalRequired bool   `json:"code_owner_approval_required"`
}

// GetProtectedBranches returns the branch name patterns under enforced
// protection, dropping branches where force-push is explicitly allowed.
func (c *Client) GetProtectedBranches(ctx context.Context, project model.ProjectPath) ([]string, error) {
	location := "/api/v4/projects/" + url.QueryEscape(project.Path) + "/protected_branches"

	var branches []protectedBranch
	if err := c.observe("protected_branches", func() error {
		return c.transport.ExecuteJSON(ctx, location, &branches, c.private)
	}); err != nil {
		return nil, err
	}

	patterns := make([]string, 0, len(branches))
	for _, b := range branches {
		if !b.AllowForcePush {
			patterns = append(patterns, b.Name)
		}
	}
	return patterns, nil
}

// GetRepositoriesWithMembership lists the projects the user is a member of,
// following cursors up to the configured cap.
func (c *Client) GetRepositoriesWithMembership(ctx context.Context) ([]RepositoryRef, error) {
	return loadAll(c.pageSize, c.maxResults, func(after *string, first int) ([]RepositoryRef, PageInfo, error) {
		var data repositoriesWithMembershipData
		err := c.query(ctx, "repositories_with_membership", transport.GraphQLRequest{
			Query:         repositoriesWithMembershipQuery,
			OperationName: "repositoriesWithMembership",
			Variables:     map[string]any{"after": after, "first": first},
		}, &data)
		if err != nil {
			return nil, PageInfo{}, err
		}

		if data.CurrentUser == nil || data.CurrentUser.ProjectMemberships == nil {
			return nil, PageInfo{}, nil
		}
		memberships := data.CurrentUser.ProjectMemberships
		refs := make([]RepositoryRef, 0, len(memberships.Nodes))
		for _, node := range memberships.Nodes {
			if node == nil || node.Project == nil {
				continue
			}
			refs = append(refs, newRepositoryRef(node.Project))
		}
		return refs, memberships.PageInfo, nil
	})
}

// SearchProjects searches projects by free-text query, optionally limited to
// projects the user is a member of, with the same pagination contract as
// GetRepositoriesWithMembership.
func (c *Client) SearchProjects(ctx context.Context, query string, membership bool, sort string) ([]RepositoryRef, error) {
	return loadAll(c.pageSize, c.maxResults, func(after *string, first int) ([]RepositoryRef, PageInfo, error) {
		variables := map[string]any{
			"membership": membership,
			"after":      after,
			"first":      first,
		}
		if query != "" {
			variables["q"] = query
		}
		if sort != "" {
			variables["sort"] = sort
		}

		var data searchProjectsData
		err := c.query(ctx, "search_projects", transport.GraphQLRequest{
			Query:         searchProjectsQuery,
			OperationName: "searchProjects",
			Variables:     variables,
		}, &data)
		if err != nil {
			return nil, PageInfo{}, err
		}
		if data.Projects == nil {
			return nil, PageInfo{}, nil
		}

		refs := make([]RepositoryRef, 0, len(data.Projects.Nodes))
		for _, node := range data.Projects.Nodes {
			if node == nil {
				continue
			}
			refs = append(refs, newRepositoryRef(node))
		}
		return refs, data.Projects.PageInfo, nil
	})
}

// FindMergeRequestsUsingSourceBranch returns the merge requests whose source
// branch is the given branch. Unknown server states map to StateOther.
func (c *Client) FindMergeRequestsUsingSourceBranch(ctx context.Context, project model.ProjectPath, sourceBranch string) ([]MergeRequest, error) {
	return loadAll(c.pageSize, c.maxResults, func(after *string, first int) ([]MergeRequest, PageInfo, error) {
		var data findMergeRequestsData
		err := c.query(ctx, "find_merge_requests", transport.GraphQLRequest{
			Query:         findMergeRequestsQuery,
			OperationName: "findMergeRequestsUsingSourceBranch",
			Variables: map[string]any{
				"projectId":    project.Path,
				"sourceBranch": sourceBranch,
				"after":        after,
				"first":        first,
			},
		}, &data)
		if err != nil {
			return nil, PageInfo{}, err
		}
		if data.Project == nil || data.Project.MergeRequests == nil {
			return nil, PageInfo{}, nil
		}

		mrs := make([]MergeRequest, 0, len(data.Project.MergeRequests.Nodes))
		for _, node := range data.Project.MergeRequests.Nodes {
			if node == nil {
				continue
			}
			mrs = append(mrs, MergeRequest{
				ID:           node.ID,
				IID:          node.IID,
				Title:        node.Title,
				SourceBranch: node.SourceBranch,
				TargetBranch: node.TargetBranch,
				State:        mapState(node.State),
				WebURL:       node.WebURL,
			})
		}
		return mrs, data.Project.MergeRequests.PageInfo, nil
	})
}

func (c *Client) query(ctx context.Context, operation string, req transport.GraphQLRequest, out any) error {
	return c.observe(operation, func() error {
		return c.transport.Query(ctx, req, out, c.bearer)
	})
}

// observe wraps one API round trip with metrics, when configured.
func (c *Client) observe(operation string, fn func() error) error {
	if c.metrics == nil {
		return fn()
	}
	timer := c.metrics.APITimer(operation)
	err := fn()
	timer(err)
	return err
}

func newRepositoryRef(p *projectNode) RepositoryRef {
	ref := RepositoryRef{ID: p.ID, Name: p.Name}
	if p.FullPath != "" {
		ref.ID = p.FullPath
	}
	if p.SSHURLToRepo != nil {
		ref.SSHURL = *p.SSHURLToRepo
	}
	if p.HTTPURLToRepo != nil {
		ref.HTTPSURL = *p.HTTPURLToRepo
	}
	return ref
}

// loadAll runs the shared pagination loop: start from the first page, fetch
// with (after, first), accumulate, and continue while the server reports a
// next page with a usable cursor and the cap is not reached. A page claiming
// hasNextPage with a null endCursor terminates the loop rather than trust a
// malformed server response into an infinite loop.
func loadAll[T any](pageSize, maxResults int, fetch func(after *string, first int) ([]T, PageInfo, error)) ([]T, error) {
	page := firstPage()
	var out []T
	for {
		items, next, err := fetch(page.EndCursor, pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		page = next
		if !page.HasNextPage || page.EndCursor == nil || len(out) >= maxResults {
			return out, nil
		}
	}
}
