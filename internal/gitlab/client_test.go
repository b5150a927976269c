package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mergelab/gitlab-sync/internal/model"
	"github.com/mergelab/gitlab-sync/internal/transport"
)

type graphQLCall struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tr, err := transport.New(srv.URL, zerolog.Nop())
	require.NoError(t, err)
	return NewClient(tr, "secret-token", zerolog.Nop(), opts...)
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func TestGetUserDetails_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		writeJSON(w, `{"data":{"currentUser":{"username":"jdoe","name":"Jane Doe","avatarUrl":"/uploads/avatar.png"}}}`)
	}))

	details, err := client.GetUserDetails(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jdoe", details.Username)
	assert.Equal(t, "Jane Doe", details.Name)
	assert.Equal(t, "/uploads/avatar.png", details.AvatarURL)
}

func TestGetUserDetails_NullUserIsUnauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"data":{"currentUser":null}}`)
	}))

	_, err := client.GetUserDetails(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetProtectedBranches_FiltersForcePush(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects/user%2Frepo/protected_branches", r.URL.EscapedPath())
		assert.Equal(t, "secret-token", r.Header.Get("PRIVATE-TOKEN"))
		writeJSON(w, `[
			{"id":1,"name":"main","allow_force_push":false,"code_owner_approval_required":true},
			{"id":2,"name":"dev","allow_force_push":true,"code_owner_approval_required":false}
		]`)
	}))

	branches, err := client.GetProtectedBranches(context.Background(), model.ProjectPath{Path: "user/repo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, branches)
}

func TestSearchProjects_Paginates(t *testing.T) {
	pages := []string{
		`{"data":{"projects":{"nodes":[{"id":"1","name":"a","fullPath":"g/a"},{"id":"2","name":"b","fullPath":"g/b"}],"pageInfo":{"endCursor":"c1","hasNextPage":true}}}}`,
		`{"data":{"projects":{"nodes":[{"id":"3","name":"c","fullPath":"g/c"}],"pageInfo":{"endCursor":"c2","hasNextPage":true}}}}`,
		`{"data":{"projects":{"nodes":[{"id":"4","name":"d","fullPath":"g/d"}],"pageInfo":{"endCursor":null,"hasNextPage":false}}}}`,
	}
	var cursors []any
	call := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		cursors = append(cursors, req.Variables["after"])
		writeJSON(w, pages[call])
		call++
	}))

	refs, err := client.SearchProjects(context.Background(), "repo", true, "stars_desc")
	require.NoError(t, err)
	require.Len(t, refs, 4)
	assert.Equal(t, "g/a", refs[0].ID)
	assert.Equal(t, "g/d", refs[3].ID)
	assert.Equal(t, []any{nil, "c1", "c2"}, cursors)
}

func TestSearchProjects_NullCursorTerminates(t *testing.T) {
	// hasNextPage=true with a null cursor is a malformed response; the
	// loader must stop instead of looping forever
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, `{"data":{"projects":{"nodes":[{"id":"1","name":"a","fullPath":"g/a"}],"pageInfo":{"endCursor":null,"hasNextPage":true}}}}`)
	}))

	refs, err := client.SearchProjects(context.Background(), "", false, "")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
	assert.Equal(t, 1, calls)
}

func TestSearchProjects_RespectsCap(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		nodes := ""
		for i := 0; i < 10; i++ {
			if i > 0 {
				nodes += ","
			}
			nodes += fmt.Sprintf(`{"id":"%d-%d","name":"p","fullPath":"g/p%d-%d"}`, calls, i, calls, i)
		}
		writeJSON(w, `{"data":{"projects":{"nodes":[`+nodes+`],"pageInfo":{"endCursor":"c`+fmt.Sprint(calls)+`","hasNextPage":true}}}}`)
	}))
	client.pageSize = 10
	client.maxResults = 25

	refs, err := client.SearchProjects(context.Background(), "", false, "")
	require.NoError(t, err)
	assert.Len(t, refs, 30) // cap checked after accumulating a full page
	assert.Equal(t, 3, calls)
}

func TestGetRepositoriesWithMembership(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"data":{"currentUser":{"projectMemberships":{
			"nodes":[
				{"project":{"id":"gid://1","name":"repo","fullPath":"user/repo","sshUrlToRepo":"git@gitlab.com:user/repo.git","httpUrlToRepo":"https://gitlab.com/user/repo.git"}},
				{"project":null},
				null
			],
			"pageInfo":{"endCursor":null,"hasNextPage":false}}}}}`)
	}))

	refs, err := client.GetRepositoriesWithMembership(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "user/repo", refs[0].ID)
	assert.Equal(t, "git@gitlab.com:user/repo.git", refs[0].SSHURL)
	assert.Equal(t, "https://gitlab.com/user/repo.git", refs[0].HTTPSURL)
}

func TestFindMergeRequests_StateMapping(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user/repo", req.Variables["projectId"])
		assert.Equal(t, "feature/x", req.Variables["sourceBranch"])
		writeJSON(w, `{"data":{"project":{"mergeRequests":{
			"nodes":[
				{"id":"gid://mr/1","iid":"11","title":"One","sourceBranch":"feature/x","targetBranch":"main","state":"opened","webUrl":"https://gitlab.com/user/repo/-/merge_requests/11"},
				{"id":"gid://mr/2","iid":"12","title":"Two","sourceBranch":"feature/x","targetBranch":"main","state":"weird","webUrl":"https://gitlab.com/user/repo/-/merge_requests/12"}
			],
			"pageInfo":{"endCursor":null,"hasNextPage":false}}}}}`)
	}))

	mrs, err := client.FindMergeRequestsUsingSourceBranch(context.Background(), model.ProjectPath{Path: "user/repo"}, "feature/x")
	require.NoError(t, err)
	require.Len(t, mrs, 2)
	assert.Equal(t, StateOpen, mrs[0].State)
	assert.Equal(t, StateOther, mrs[1].State)
	assert.Equal(t, "11", mrs[0].IID)
}

func TestFindMergeRequests_UnknownProject(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"data":{"project":null}}`)
	}))

	mrs, err := client.FindMergeRequestsUsingSourceBranch(context.Background(), model.ProjectPath{Path: "user/gone"}, "main")
	require.NoError(t, err)
	assert.Empty(t, mrs)
}

func TestGetAvatar_DecodesImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))

	img, err := client.GetAvatar(context.Background(), "/uploads/avatar.png")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, 4, img.Bounds().Dx())
}

func TestGetAvatar_SoftFailures(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.png":
			http.NotFound(w, r)
		default:
			w.Write([]byte("not an image"))
		}
	}))

	img, err := client.GetAvatar(context.Background(), "/missing.png")
	require.NoError(t, err)
	assert.Nil(t, img)

	img, err = client.GetAvatar(context.Background(), "/garbage.bin")
	require.NoError(t, err)
	assert.Nil(t, img)
}

func TestGetAvatar_UnreachableHostIsSoft(t *testing.T) {
	tr, err := transport.New("http://127.0.0.1:1", zerolog.Nop())
	require.NoError(t, err)
	client := NewClient(tr, "secret-token", zerolog.Nop())

	img, err := client.GetAvatar(context.Background(), "/avatar.png")
	assert.NoError(t, err, "avatars are best-effort, connection failures must not surface")
	assert.Nil(t, img)
}

func TestGetAvatar_CancellationPropagates(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetAvatar(ctx, "/avatar.png")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsProtected(t *testing.T) {
	patterns := []string{"main", "release-*", "*-stable"}
	assert.True(t, IsProtected("main", patterns))
	assert.True(t, IsProtected("release-1.2", patterns))
	assert.True(t, IsProtected("v2-stable", patterns))
	assert.False(t, IsProtected("dev", patterns))
	assert.False(t, IsProtected("main2", patterns))
}
