package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/community/pkg/client"
	apperrors "github.com/zfogg/sidechain/community/pkg/errors"
)

type call struct {
	method string
	path   string
	body   string
	tenant string
}

func newTestAPI(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]call) {
	t.Helper()
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.Path, string(body), r.Header.Get(client.TenantHeader)})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := client.New(client.Options{BaseURL: srv.URL + "/api/v1", Token: "tok", Tenant: "guitar"})
	return New(c), &calls
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestListPostsAcceptsBareArrayAndEnvelope(t *testing.T) {
	bodies := []string{
		`[{"id":"p1","title":"Hello","like_count":4,"liked":false}]`,
		`{"data":[{"id":"p1","title":"Hello","like_count":4}],"total":1}`,
		`{"posts":[{"id":"p1","title":"Hello","like_count":4}]}`,
	}
	for _, body := range bodies {
		api, calls := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, body)
		})

		posts, err := api.ListPosts(context.Background(), 20, 0)
		require.NoError(t, err, body)
		require.Len(t, posts, 1)
		assert.Equal(t, "p1", posts[0].ID)
		assert.Equal(t, 4, posts[0].LikeCount)
		assert.Equal(t, "/api/v1/posts", (*calls)[0].path)
		assert.Equal(t, "guitar", (*calls)[0].tenant)
	}
}

func TestLikeEndpoints(t *testing.T) {
	api, calls := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"like_count":5,"liked":true}`)
	})
	ctx := context.Background()

	res, err := api.LikePost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, res.LikeCount)
	_, err = api.UnlikePost(ctx, "p1")
	require.NoError(t, err)
	_, err = api.LikeComment(ctx, "c1")
	require.NoError(t, err)
	_, err = api.UnlikeComment(ctx, "c1")
	require.NoError(t, err)

	want := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/posts/p1/like"},
		{http.MethodDelete, "/api/v1/posts/p1/like"},
		{http.MethodPost, "/api/v1/comments/c1/like"},
		{http.MethodDelete, "/api/v1/comments/c1/like"},
	}
	require.Len(t, *calls, len(want))
	for i, w := range want {
		assert.Equal(t, w.method, (*calls)[i].method)
		assert.Equal(t, w.path, (*calls)[i].path)
	}
}

func TestCreateCommentSendsPostID(t *testing.T) {
	api, calls := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"id":"c9","post_id":"p1","content":"nice"}`)
	})

	c, err := api.CreateComment(context.Background(), CreateCommentRequest{PostID: "p1", Content: "nice"})
	require.NoError(t, err)
	assert.Equal(t, "c9", c.ID)
	assert.JSONEq(t, `{"post_id":"p1","content":"nice"}`, (*calls)[0].body)
}

func TestCreateDecodesWithoutJSONContentType(t *testing.T) {
	api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"c9","post_id":"p1","content":"nice"}`)
	})

	c, err := api.CreateComment(context.Background(), CreateCommentRequest{PostID: "p1", Content: "nice"})
	require.NoError(t, err)
	assert.Equal(t, "c9", c.ID)
	assert.Equal(t, "p1", c.PostID)
}

func TestCreateRejectsResponseWithoutID(t *testing.T) {
	api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{}`)
	})
	ctx := context.Background()

	_, err := api.CreateComment(ctx, CreateCommentRequest{PostID: "p1", Content: "nice"})
	assert.Error(t, err)

	_, err = api.CreatePost(ctx, CreatePostRequest{Title: "Hello"})
	assert.Error(t, err)
}

func TestNotificationEndpoints(t *testing.T) {
	api, calls := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/notifications/unread/count" {
			writeJSON(w, http.StatusOK, `{"count":7}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	count, err := api.GetUnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, count.Count)
	require.NoError(t, api.MarkNotificationRead(ctx, "n1"))
	require.NoError(t, api.MarkAllNotificationsRead(ctx))

	assert.Equal(t, "/api/v1/notifications/n1/read", (*calls)[1].path)
	assert.Equal(t, "/api/v1/notifications/read-all", (*calls)[2].path)
}

func TestUpdateVideoProgress(t *testing.T) {
	api, calls := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	total := 300.0

	require.NoError(t, api.UpdateVideoProgress(context.Background(), "l1", VideoProgress{WatchDurationSeconds: 42, VideoTotalSeconds: &total}))

	assert.Equal(t, http.MethodPut, (*calls)[0].method)
	assert.Equal(t, "/api/v1/learn/lessons/l1/progress", (*calls)[0].path)
	assert.JSONEq(t, `{"watch_duration_seconds":42,"video_total_seconds":300}`, (*calls)[0].body)
}

func TestErrorResponses(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
		code   string
		check  func(error) bool
		typ    apperrors.ErrorType
	}{
		{"structured", http.StatusNotFound, `{"code":"post_not_found","message":"no such post"}`, "post_not_found", IsNotFound, apperrors.ErrorTypeNotFound},
		{"error field", http.StatusForbidden, `{"error":"not a member"}`, "error", IsForbidden, apperrors.ErrorTypeForbidden},
		{"plain text", http.StatusBadGateway, `upstream down`, "unknown_error", IsServerError, apperrors.ErrorTypeServer},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})

			err := api.DeletePost(context.Background(), "p1")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.code, apiErr.Code)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.True(t, tc.check(err))
			assert.Equal(t, tc.typ, apperrors.CategorizeError(err).Type)
		})
	}
}

func TestUnauthorized(t *testing.T) {
	api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"code":"invalid_token","message":"expired"}`)
	})

	_, err := api.ListMembers(context.Background())
	assert.True(t, IsUnauthorized(err))
}
