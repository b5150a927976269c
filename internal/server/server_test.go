package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mergelab/gitlab-sync/internal/accounts"
	"github.com/mergelab/gitlab-sync/internal/git"
	"github.com/mergelab/gitlab-sync/internal/gitlab"
	"github.com/mergelab/gitlab-sync/internal/health"
	"github.com/mergelab/gitlab-sync/internal/mergerequests"
	"github.com/mergelab/gitlab-sync/internal/model"
	"github.com/mergelab/gitlab-sync/internal/remotes"
	"github.com/mergelab/gitlab-sync/internal/transport"
)

type staticProvider struct{ repos []git.Repository }

func (p staticProvider) ListRepositories(ctx context.Context) ([]git.Repository, error) {
	return p.repos, nil
}

type singleClientSource struct{ client *gitlab.Client }

func (s singleClientSource) ClientFor(model.ServerURL) (*gitlab.Client, bool) {
	return s.client, true
}

type fixture struct {
	server   *Server
	requests *atomic.Int32
}

func newFixture(t *testing.T, checker *health.Checker) *fixture {
	t.Helper()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"project":{"mergeRequests":{
			"nodes":[{"id":"gid://mr/1","iid":"7","title":"Add feature","sourceBranch":"feature/x","targetBranch":"main","state":"opened","webUrl":"https://gitlab.com/user/mine/-/merge_requests/7"}],
			"pageInfo":{"endCursor":null,"hasNextPage":false}}}}}`))
	}))
	t.Cleanup(srv.Close)
	tr, err := transport.New(srv.URL, zerolog.Nop())
	require.NoError(t, err)
	client := gitlab.NewClient(tr, "glpat-hidden-secret", zerolog.Nop())

	accountsMgr, err := accounts.NewManager(accounts.NewMemorySecretStore(), nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, accountsMgr.Add(
		accounts.NewAccount(model.DefaultServerURL, "jdoe"), accounts.NewAccessToken("glpat-hidden-secret")))

	provider := staticProvider{repos: []git.Repository{{
		Root:          "/src/mine",
		Remotes:       []git.Remote{{Name: "origin", URLs: []string{"git@gitlab.com:user/mine.git"}}},
		CurrentBranch: "feature/x",
		Upstream:      &git.Tracking{RemoteName: "origin", RemoteBranch: "feature/x"},
	}}}
	remotesMgr := remotes.NewManager(context.Background(), accountsMgr, provider, nil, zerolog.Nop())
	require.NoError(t, remotesMgr.Update(context.Background()))

	service := mergerequests.NewService(context.Background(), remotesMgr, singleClientSource{client: client},
		mergerequests.NewCache(64, 0, nil), nil, nil, zerolog.Nop())
	require.NoError(t, service.Update(context.Background()))

	apiServer := NewServer(Config{}, accountsMgr, remotesMgr, service, checker, nil, zerolog.Nop())
	return &fixture{server: apiServer, requests: &requests}
}

func doRequest(t *testing.T, fx *fixture, method, target string) (*http.Response, string) {
	t.Helper()
	resp, err := fx.server.App().Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, string(body)
}

func TestLiveness(t *testing.T) {
	fx := newFixture(t, nil)
	resp, body := doRequest(t, fx, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "ok")
}

func TestReadiness(t *testing.T) {
	checker := health.NewChecker(zerolog.Nop())
	checker.Register("store", func(ctx context.Context) health.Status { return health.StatusOK })
	fx := newFixture(t, checker)

	resp, body := doRequest(t, fx, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "ready")
}

func TestReadiness_DependencyDown(t *testing.T) {
	checker := health.NewChecker(zerolog.Nop())
	checker.Register("store", func(ctx context.Context) health.Status { return health.StatusDown })
	fx := newFixture(t, checker)

	resp, body := doRequest(t, fx, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "not_ready")
}

func TestListMergeRequests(t *testing.T) {
	fx := newFixture(t, nil)
	resp, body := doRequest(t, fx, http.MethodGet, "/api/v1/merge-requests")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Count         int `json:"count"`
		MergeRequests []struct {
			RepoRoot string `json:"repo_root"`
			Project  string `json:"project"`
			IID      string `json:"iid"`
			State    string `json:"state"`
		} `json:"merge_requests"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	require.Equal(t, 1, payload.Count)
	assert.Equal(t, "/src/mine", payload.MergeRequests[0].RepoRoot)
	assert.Equal(t, "user/mine", payload.MergeRequests[0].Project)
	assert.Equal(t, "7", payload.MergeRequests[0].IID)
	assert.Equal(t, "open", payload.MergeRequests[0].State)
}

func TestListRemotes(t *testing.T) {
	fx := newFixture(t, nil)
	resp, body := doRequest(t, fx, http.MethodGet, "/api/v1/remotes")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "git@gitlab.com:user/mine.git")
	assert.Contains(t, body, "https://gitlab.com")
}

func TestListAccounts_NeverLeaksTokens(t *testing.T) {
	fx := newFixture(t, nil)
	resp, body := doRequest(t, fx, http.MethodGet, "/api/v1/accounts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "jdoe")
	assert.False(t, strings.Contains(body, "glpat"), "account listing must not expose tokens")
}

func TestRefresh_BypassesCache(t *testing.T) {
	fx := newFixture(t, nil)
	require.Equal(t, int32(1), fx.requests.Load())

	resp, body := doRequest(t, fx, http.MethodPost, "/api/v1/refresh")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "refreshed")
	assert.Equal(t, int32(2), fx.requests.Load())
}
