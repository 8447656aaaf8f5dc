// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package api

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"

	"github.com/dikser/dikser/internal/content"
	"github.com/dikser/dikser/internal/observability"
	"github.com/dikser/dikser/pkg/errutil"
)

type handlers struct {
	auth    Authenticator
	posts   Posts
	limiter *LoginLimiter
	metrics *observability.Metrics
	logger  *slog.Logger
}

func (h *handlers) routes(c *cors, tracer trace.Tracer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("POST /api/auth/logout", h.authenticated(h.logout))
	mux.HandleFunc("GET /api/posts", h.listPosts)
	mux.HandleFunc("GET /api/posts/{id}", h.getPost)
	mux.HandleFunc("POST /api/posts", h.authenticated(h.createPost))
	mux.HandleFunc("PATCH /api/posts/{id}", h.authenticated(h.updatePost))
	mux.HandleFunc("DELETE /api/posts/{id}", h.authenticated(h.removePost))
	return h.instrument(tracer, c.wrap(mux))
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil {
		if ok, wait := h.limiter.Allow(peerOf(r)); !ok {
			h.metrics.RecordLogin(observability.OutcomeThrottled)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			h.writeError(w, r, oops.Code("LOGIN_THROTTLED").Wrap(errutil.TooManyRequests("too many login attempts")))
			return
		}
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.RecordLogin(outcomeOf(err))
		h.writeError(w, r, err)
		return
	}
	h.metrics.RecordLogin(observability.OutcomeSuccess)
	writeJSON(w, http.StatusOK, loginResponse{
		User:      toUserView(result.User),
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	caller, _ := PrincipalFrom(r.Context())
	if err := h.auth.Logout(r.Context(), caller.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListPosts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostViews(posts))
}

func (h *handlers) getPost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	post, err := h.posts.GetPost(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(post))
}

func (h *handlers) createPost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	visibility, err := content.ParseVisibility(req.Visibility)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	caller, _ := PrincipalFrom(r.Context())

	var attachment *content.CreateAttachmentInput
	if req.Attachment != nil {
		attachment = &content.CreateAttachmentInput{URL: req.Attachment.URL, MimeType: req.Attachment.MimeType}
	}
	post, err := h.posts.CreatePost(r.Context(), caller, content.CreatePostInput{
		Caption:    req.Caption,
		Visibility: visibility,
	}, attachment)
	h.metrics.RecordPostOperation("create", outcomeOf(err))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostView(post))
}

func (h *handlers) updatePost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req updatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in := content.UpdatePostInput{ID: id, Caption: req.Caption}
	if req.Visibility != nil {
		v, err := content.ParseVisibility(*req.Visibility)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		in.Visibility = &v
	}
	caller, _ := PrincipalFrom(r.Context())
	post, err := h.posts.UpdatePost(r.Context(), caller, in)
	h.metrics.RecordPostOperation("update", outcomeOf(err))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(post))
}

func (h *handlers) removePost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	caller, _ := PrincipalFrom(r.Context())

	receipt, err := h.posts.RemovePost(r.Context(), caller, id)
	h.metrics.RecordPostOperation("remove", outcomeOf(err))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptView{
		Post:   toPostView(receipt.Post),
		Status: receipt.Status,
		Code:   receipt.Code,
	})
}

// postID parses the {id} path segment. A malformed id cannot name a post, so
// it fails the same way a missing post does.
func postID(r *http.Request) (ulid.ULID, error) {
	raw := r.PathValue("id")
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code("POST_NOT_FOUND").
			With("post_id", raw).
			Wrap(errutil.Tag(errutil.KindNotFound, "post not found", err))
	}
	return id, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errutil.KindOf(err) == errutil.KindInternal:
		return observability.OutcomeError
	default:
		return observability.OutcomeRejected
	}
}
