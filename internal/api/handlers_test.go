// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dikser/dikser/internal/api"
	"github.com/dikser/dikser/internal/auth"
	"github.com/dikser/dikser/internal/content"
	"github.com/dikser/dikser/internal/observability"
	"github.com/dikser/dikser/pkg/errutil"
)

const goodToken = "good-token"

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	auth    *mockAuth
	posts   *mockPosts
	metrics *observability.Metrics
	logs    *bytes.Buffer
	handler http.Handler
	alice   auth.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		auth:    &mockAuth{},
		posts:   &mockPosts{},
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
		logs:    &bytes.Buffer{},
		alice:   auth.Principal{UserID: ulid.Make(), Username: "alice"},
	}
	t.Cleanup(func() {
		f.auth.AssertExpectations(t)
		f.posts.AssertExpectations(t)
	})

	srv, err := api.NewServer(api.Config{
		Addr:           "127.0.0.1:0",
		AllowedOrigins: []string{"https://*.dikser.app"},
		Auth:           f.auth,
		Posts:          f.posts,
		Metrics:        f.metrics,
		Logger:         slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	require.NoError(t, err)
	f.handler = srv.Handler()
	return f
}

// signedIn expects one token validation resolving to alice.
func (f *fixture) signedIn() {
	f.auth.On("ValidateToken", mock.Anything, goodToken).Return(f.alice, nil).Once()
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doAuthed(method, path, body string) *httptest.ResponseRecorder {
	return f.do(method, path, body, "Authorization", "Bearer "+goodToken)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func samplePost(author auth.Principal) *content.Post {
	carol := content.UserSummary{ID: ulid.Make(), Username: "carol"}
	return &content.Post{
		ID:         ulid.Make(),
		Caption:    "sunset",
		Visibility: content.VisibilityPrivate,
		Author:     content.UserSummary{ID: author.UserID, Username: author.Username},
		Relationship: &content.Relationship{
			ID:     ulid.Make(),
			Status: content.RelationshipActive,
			Partners: []content.UserSummary{
				{ID: author.UserID, Username: author.Username},
				carol,
			},
		},
		Attachment: &content.Attachment{ID: ulid.Make(), URL: "https://cdn.dikser.app/a.jpg", MimeType: "image/jpeg"},
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
}

func TestNewServer_RequiresServices(t *testing.T) {
	_, err := api.NewServer(api.Config{Posts: &mockPosts{}})
	errutil.AssertErrorCode(t, err, "API_CONFIG_INVALID")

	_, err = api.NewServer(api.Config{Auth: &mockAuth{}})
	errutil.AssertErrorCode(t, err, "API_CONFIG_INVALID")

	_, err = api.NewServer(api.Config{Auth: &mockAuth{}, Posts: &mockPosts{}, AllowedOrigins: []string{"https://["}})
	errutil.AssertErrorContext(t, err, "origin", "https://[")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	user := &auth.User{ID: ulid.Make(), Username: "alice"}
	f.auth.On("Authenticate", mock.Anything, "alice", "s3cret").Return(&auth.Authenticated{
		User:      user,
		Token:     "tok",
		ExpiresAt: testNow.Add(time.Hour),
	}, nil)

	rec := f.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"s3cret"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "tok", body["token"])
	assert.Equal(t, "2024-03-01T13:00:00Z", body["expires_at"])
	assert.Equal(t, map[string]any{"id": user.ID.String(), "username": "alice"}, body["user"])
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.LoginsTotal.WithLabelValues(observability.OutcomeSuccess)), 0)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.auth.On("Authenticate", mock.Anything, "alice", "wrong").Return(nil,
		oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(errutil.Unauthorized("Invalid given username/password")))

	rec := f.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Invalid given username/password", body["error"])
	assert.Equal(t, "AUTH_INVALID_CREDENTIALS", body["code"])
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.LoginsTotal.WithLabelValues(observability.OutcomeRejected)), 0)
}

func TestLogin_MalformedBody(t *testing.T) {
	tests := map[string]string{
		"not json":      `{"username":`,
		"unknown field": `{"username":"a","password":"b","admin":true}`,
		"two objects":   `{"username":"a","password":"b"}{}`,
		"empty body":    "",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.do(http.MethodPost, "/api/auth/login", body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "REQUEST_INVALID", decodeBody[map[string]any](t, rec)["code"])
		})
	}
}

func TestLogin_BodyTooLarge(t *testing.T) {
	f := newFixture(t)
	huge := `{"username":"` + strings.Repeat("a", 2<<20) + `"}`

	rec := f.do(http.MethodPost, "/api/auth/login", huge)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body too large", decodeBody[map[string]any](t, rec)["error"])
}

func TestBearer(t *testing.T) {
	t.Run("missing header", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(http.MethodPost, "/api/posts", `{}`)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "AUTH_TOKEN_MISSING", decodeBody[map[string]any](t, rec)["code"])
	})

	t.Run("wrong scheme", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(http.MethodDelete, "/api/posts/"+ulid.Make().String(), "", "Authorization", "Basic abc")

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejected token", func(t *testing.T) {
		f := newFixture(t)
		f.auth.On("ValidateToken", mock.Anything, "stale").Return(auth.Principal{},
			oops.Code("SESSION_SUPERSEDED").Wrap(errutil.Unauthorized("session has ended")))

		rec := f.do(http.MethodPost, "/api/auth/logout", "", "Authorization", "bearer stale")

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody[map[string]any](t, rec)
		assert.Equal(t, "session has ended", body["error"])
		assert.Equal(t, "SESSION_SUPERSEDED", body["code"])
	})
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	f.auth.On("Logout", mock.Anything, f.alice.UserID).Return(nil)

	rec := f.doAuthed(http.MethodPost, "/api/auth/logout", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestCreatePost(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	post := samplePost(f.alice)
	f.posts.On("CreatePost", mock.Anything, f.alice,
		content.CreatePostInput{Caption: "sunset", Visibility: content.VisibilityPrivate},
		&content.CreateAttachmentInput{URL: "https://cdn.dikser.app/a.jpg", MimeType: "image/jpeg"},
	).Return(post, nil)

	rec := f.doAuthed(http.MethodPost, "/api/posts",
		`{"caption":"sunset","visibility":"private","attachment":{"url":"https://cdn.dikser.app/a.jpg","mime_type":"image/jpeg"}}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, post.ID.String(), body["id"])
	assert.Equal(t, "private", body["visibility"])
	rel, ok := body["relationship"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "active", rel["status"])
	assert.Len(t, rel["partners"], 2)
	att, ok := body["attachment"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", att["mime_type"])
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.PostOpsTotal.WithLabelValues("create", observability.OutcomeSuccess)), 0)
}

func TestCreatePost_WithoutAttachment(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	post := samplePost(f.alice)
	post.Attachment, post.Relationship, post.Visibility = nil, nil, content.VisibilityPublic
	f.posts.On("CreatePost", mock.Anything, f.alice,
		content.CreatePostInput{Caption: "hi", Visibility: content.VisibilityPublic},
		(*content.CreateAttachmentInput)(nil),
	).Return(post, nil)

	rec := f.doAuthed(http.MethodPost, "/api/posts", `{"caption":"hi","visibility":"public"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.NotContains(t, body, "attachment")
	assert.NotContains(t, body, "relationship")
}

func TestCreatePost_NoRelationship(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	f.posts.On("CreatePost", mock.Anything, f.alice, mock.Anything, mock.Anything).Return(nil,
		oops.Code("POST_NO_RELATIONSHIP").Wrap(errutil.BadRequest("You do not have relationship just yet")))

	rec := f.doAuthed(http.MethodPost, "/api/posts", `{"caption":"x","visibility":"private"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "You do not have relationship just yet", body["error"])
	assert.Equal(t, "POST_NO_RELATIONSHIP", body["code"])
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.PostOpsTotal.WithLabelValues("create", observability.OutcomeRejected)), 0)
}

func TestInternalErrorsAreWithheld(t *testing.T) {
	f := newFixture(t)
	f.posts.On("ListPosts", mock.Anything).Return(nil,
		oops.Code("POST_LIST_FAILED").Wrap(errors.New("dial tcp 10.0.0.5:5432: connection refused")))

	rec := f.do(http.MethodGet, "/api/posts", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "internal server error", body["error"])
	assert.Equal(t, "POST_LIST_FAILED", body["code"])
	assert.Equal(t, rec.Header().Get("X-Request-Id"), body["request_id"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, f.logs.String(), "connection refused")
}

func TestListPosts(t *testing.T) {
	f := newFixture(t)
	first, second := samplePost(f.alice), samplePost(f.alice)
	f.posts.On("ListPosts", mock.Anything).Return([]*content.Post{first, second}, nil)

	rec := f.do(http.MethodGet, "/api/posts", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[[]map[string]any](t, rec)
	require.Len(t, body, 2)
	assert.Equal(t, first.ID.String(), body[0]["id"])
	assert.Equal(t, second.ID.String(), body[1]["id"])
}

func TestListPosts_EmptyIsArray(t *testing.T) {
	f := newFixture(t)
	f.posts.On("ListPosts", mock.Anything).Return([]*content.Post{}, nil)

	rec := f.do(http.MethodGet, "/api/posts", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetPost(t *testing.T) {
	f := newFixture(t)
	post := samplePost(f.alice)
	f.posts.On("GetPost", mock.Anything, post.ID).Return(post, nil)

	rec := f.do(http.MethodGet, "/api/posts/"+post.ID.String(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sunset", decodeBody[map[string]any](t, rec)["caption"])
}

func TestGetPost_NotFound(t *testing.T) {
	f := newFixture(t)
	id := ulid.Make()
	f.posts.On("GetPost", mock.Anything, id).Return(nil,
		oops.Code("POST_NOT_FOUND").Wrap(errutil.NotFound("post not found")))

	rec := f.do(http.MethodGet, "/api/posts/"+id.String(), "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "post not found", decodeBody[map[string]any](t, rec)["error"])
}

func TestGetPost_MalformedID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/posts/not-a-ulid", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "POST_NOT_FOUND", decodeBody[map[string]any](t, rec)["code"])
}

func TestUpdatePost(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	post := samplePost(f.alice)
	caption := "golden hour"
	f.posts.On("UpdatePost", mock.Anything, f.alice, content.UpdatePostInput{ID: post.ID, Caption: &caption}).Return(post, nil)

	rec := f.doAuthed(http.MethodPatch, "/api/posts/"+post.ID.String(), `{"caption":"golden hour"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, post.ID.String(), decodeBody[map[string]any](t, rec)["id"])
}

func TestUpdatePost_VisibilityChangeRefused(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	id := ulid.Make()
	private := content.VisibilityPrivate
	f.posts.On("UpdatePost", mock.Anything, f.alice, content.UpdatePostInput{ID: id, Visibility: &private}).Return(nil,
		oops.Code("POST_VISIBILITY_IMMUTABLE").Wrap(errutil.BadRequest("visibility cannot be changed after creation")))

	rec := f.doAuthed(http.MethodPatch, "/api/posts/"+id.String(), `{"visibility":"private"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "visibility cannot be changed after creation", body["error"])
	assert.Equal(t, "POST_VISIBILITY_IMMUTABLE", body["code"])
}

func TestPosts_UnknownVisibility(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"create", http.MethodPost, "/api/posts", `{"caption":"x","visibility":"friends"}`},
		{"create without visibility", http.MethodPost, "/api/posts", `{"caption":"x"}`},
		{"update", http.MethodPatch, "/api/posts/" + ulid.Make().String(), `{"visibility":"friends"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.signedIn()

			rec := f.doAuthed(tt.method, tt.path, tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "POST_INVALID_VISIBILITY", decodeBody[map[string]any](t, rec)["code"])
			f.posts.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.posts.AssertNotCalled(t, "UpdatePost", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUpdatePost_NotOwner(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	id := ulid.Make()
	f.posts.On("UpdatePost", mock.Anything, f.alice, mock.Anything).Return(nil,
		oops.Code("POST_NOT_FOUND").Wrap(errutil.NotFound("post not found")))

	rec := f.doAuthed(http.MethodPatch, "/api/posts/"+id.String(), `{"caption":"mine now"}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.PostOpsTotal.WithLabelValues("update", observability.OutcomeRejected)), 0)
}

func TestRemovePost(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	post := samplePost(f.alice)
	f.posts.On("RemovePost", mock.Anything, f.alice, post.ID).Return(&content.DeletionReceipt{
		Post:   post,
		Status: content.DeletedStatus,
		Code:   http.StatusOK,
	}, nil)

	rec := f.doAuthed(http.MethodDelete, "/api/posts/"+post.ID.String(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "DELETED", body["status"])
	assert.InDelta(t, 200, body["code"], 0)
	removed, ok := body["post"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, post.ID.String(), removed["id"])
}

func TestRemovePost_Rejected(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	id := ulid.Make()
	f.posts.On("RemovePost", mock.Anything, f.alice, id).Return(nil,
		oops.Code("POST_REQUEST_REJECTED").Wrap(errutil.BadRequest("could not remove post")))

	rec := f.doAuthed(http.MethodDelete, "/api/posts/"+id.String(), "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "could not remove post", decodeBody[map[string]any](t, rec)["error"])
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/posts", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)
	f.posts.On("ListPosts", mock.Anything).Return([]*content.Post{}, nil).Twice()

	rec := f.do(http.MethodGet, "/api/posts", "", "X-Request-Id", "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))

	rec = f.do(http.MethodGet, "/api/posts", "")
	_, err := ulid.ParseStrict(rec.Header().Get("X-Request-Id"))
	assert.NoError(t, err)
}

func TestRequestMetricsUseRoutePattern(t *testing.T) {
	f := newFixture(t)
	id := ulid.Make()
	f.posts.On("GetPost", mock.Anything, id).Return(samplePost(f.alice), nil)

	f.do(http.MethodGet, "/api/posts/"+id.String(), "")
	f.do(http.MethodGet, "/nowhere", "")

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("GET /api/posts/{id}", "GET", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("unmatched", "GET", "404")), 0)
}

func TestCORS(t *testing.T) {
	t.Run("preflight from allowed origin", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(http.MethodOptions, "/api/posts", "",
			"Origin", "https://app.dikser.app",
			"Access-Control-Request-Method", "POST")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://app.dikser.app", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	})

	t.Run("origin outside the pattern", func(t *testing.T) {
		f := newFixture(t)
		f.posts.On("ListPosts", mock.Anything).Return([]*content.Post{}, nil)

		rec := f.do(http.MethodGet, "/api/posts", "", "Origin", "https://evil.example")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	})

	t.Run("wildcard does not span subdomain levels", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(http.MethodOptions, "/api/posts", "",
			"Origin", "https://a.b.dikser.app",
			"Access-Control-Request-Method", "GET")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestPrincipalFrom_Empty(t *testing.T) {
	_, ok := api.PrincipalFrom(context.Background())
	assert.False(t, ok)
}
