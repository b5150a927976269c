package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mergelab/gitlab-sync/internal/accounts"
	"github.com/mergelab/gitlab-sync/internal/health"
	"github.com/mergelab/gitlab-sync/internal/mergerequests"
	"github.com/mergelab/gitlab-sync/internal/remotes"
)

// Handlers implements the status API endpoints.
type Handlers struct {
	accounts  *accounts.Manager
	remotes   *remotes.Manager
	mrService *mergerequests.Service
	checker   *health.Checker
	logger    zerolog.Logger
}

// NewHandlers creates the endpoint handlers. checker may be nil.
func NewHandlers(accountsMgr *accounts.Manager, remotesMgr *remotes.Manager, mrService *mergerequests.Service, checker *health.Checker, logger zerolog.Logger) *Handlers {
	return &Handlers{
		accounts:  accountsMgr,
		remotes:   remotesMgr,
		mrService: mrService,
		checker:   checker,
		logger:    logger.With().Str("component", "handlers").Logger(),
	}
}

// mergeRequestItem is the wire shape of one snapshot entry.
type mergeRequestItem struct {
	RepoRoot     string `json:"repo_root"`
	Project      string `json:"project"`
	IID          string `json:"iid"`
	Title        string `json:"title"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	State        string `json:"state"`
	WebURL       string `json:"web_url"`
}

// remoteItem is the wire shape of one remote binding.
type remoteItem struct {
	RepoRoot   string `json:"repo_root"`
	RemoteName string `json:"remote_name"`
	RemoteURL  string `json:"remote_url"`
	Server     string `json:"server"`
	Project    string `json:"project"`
}

// accountItem is the wire shape of one account. Tokens are never exposed.
type accountItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Server string `json:"server"`
}

// ListMergeRequests returns the current merge request snapshot.
func (h *Handlers) ListMergeRequests(c *fiber.Ctx) error {
	copies := h.mrService.MergeRequests()
	if root := c.Query("repo_root"); root != "" {
		copies = h.mrService.MergeRequestsFor(root)
	}

	items := make([]mergeRequestItem, 0, len(copies))
	for _, wc := range copies {
		items = append(items, mergeRequestItem{
			RepoRoot:     wc.RepoRoot,
			Project:      wc.Project.Path.Path,
			IID:          wc.MR.IID,
			Title:        wc.MR.Title,
			SourceBranch: wc.MR.SourceBranch,
			TargetBranch: wc.MR.TargetBranch,
			State:        string(wc.MR.State),
			WebURL:       wc.MR.WebURL,
		})
	}
	return c.JSON(fiber.Map{"merge_requests": items, "count": len(items)})
}

// ListRemotes returns the current remote binding snapshot.
func (h *Handlers) ListRemotes(c *fiber.Ctx) error {
	bindings := h.remotes.Remotes()
	items := make([]remoteItem, 0, len(bindings))
	for _, b := range bindings {
		items = append(items, remoteItem{
			RepoRoot:   b.Repo.Root,
			RemoteName: b.RemoteName,
			RemoteURL:  b.RemoteURL,
			Server:     b.Coord.Server.URL(),
			Project:    b.Coord.Path.Path,
		})
	}
	return c.JSON(fiber.Map{"remotes": items, "count": len(items)})
}

// ListAccounts returns the registered accounts without credentials.
func (h *Handlers) ListAccounts(c *fiber.Ctx) error {
	list := h.accounts.Accounts()
	items := make([]accountItem, 0, len(list))
	for _, a := range list {
		items = append(items, accountItem{ID: a.ID, Name: a.Name, Server: a.Server.URL()})
	}
	return c.JSON(fiber.Map{"accounts": items, "count": len(items)})
}

// Refresh drops all cached lookups and runs a full synchronous pass.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	if err := h.mrService.Refresh(c.UserContext()); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"status":         "refreshed",
		"merge_requests": len(h.mrService.MergeRequests()),
	})
}

// Liveness answers the /healthz probe.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness answers the /readyz probe, running the registered checks.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if h.checker == nil {
		return c.JSON(fiber.Map{"status": "ready"})
	}

	results := h.checker.RunAll(c.UserContext())
	for _, s := range results {
		if s == health.StatusDown {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not_ready",
				"checks": results,
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ready", "checks": results})
}
