// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikser/dikser/internal/content"
	"github.com/dikser/dikser/internal/content/postgres"
	"github.com/dikser/dikser/pkg/errutil"
)

var postCols = []string{
	"id", "caption", "visibility", "created_at", "updated_at",
	"author_id", "author_username",
	"attachment_id", "attachment_url", "attachment_mime_type", "attachment_created_at",
	"relationship_id", "relationship_status", "relationship_created_at",
}

var partnerCols = []string{"relationship_id", "id", "username"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		mock.Close()
	})
	return mock
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestPostRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	rel := &content.Relationship{ID: ulid.Make()}
	att := &content.Attachment{ID: ulid.Make()}
	post := &content.Post{
		ID:           ulid.Make(),
		Caption:      "us",
		Visibility:   content.VisibilityPrivate,
		Author:       content.UserSummary{ID: ulid.Make()},
		Relationship: rel,
		Attachment:   att,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	t.Run("inserts references by id", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO posts`).
			WithArgs(post.ID.String(), "us", "private", post.Author.ID.String(),
				strPtr(rel.ID.String()), strPtr(att.ID.String()), now, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, postgres.NewPostRepository(mock).Create(ctx, post))
	})

	t.Run("public post without attachment stores nulls", func(t *testing.T) {
		public := *post
		public.Visibility = content.VisibilityPublic
		public.Relationship = nil
		public.Attachment = nil

		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO posts`).
			WithArgs(public.ID.String(), "us", "public", public.Author.ID.String(),
				(*string)(nil), (*string)(nil), now, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, postgres.NewPostRepository(mock).Create(ctx, &public))
	})

	t.Run("wraps failure", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO posts`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("foreign key violation"))

		err := postgres.NewPostRepository(mock).Create(ctx, post)
		errutil.AssertErrorCode(t, err, "POST_INSERT_FAILED")
	})
}

func TestPostRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	postID, authorID, attID, relID, partnerID := ulid.Make(), ulid.Make(), ulid.Make(), ulid.Make(), ulid.Make()

	t.Run("joins attachment, relationship and partners", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM posts p .+ WHERE p.id = \$1`).
			WithArgs(postID.String()).
			WillReturnRows(pgxmock.NewRows(postCols).AddRow(
				postID.String(), "us", "private", now, now,
				authorID.String(), "alice",
				strPtr(attID.String()), strPtr("https://cdn.example.com/a.png"), strPtr("image/png"), timePtr(now),
				strPtr(relID.String()), strPtr("active"), timePtr(now),
			))
		mock.ExpectQuery(`SELECT relationship_id, id, username\s+FROM users\s+WHERE relationship_id = ANY\(\$1\)`).
			WithArgs([]string{relID.String()}).
			WillReturnRows(pgxmock.NewRows(partnerCols).
				AddRow(relID.String(), authorID.String(), "alice").
				AddRow(relID.String(), partnerID.String(), "carol"))

		post, err := postgres.NewPostRepository(mock).GetByID(ctx, postID)
		require.NoError(t, err)
		assert.Equal(t, "alice", post.Author.Username)
		require.NotNil(t, post.Attachment)
		assert.Equal(t, "image/png", post.Attachment.MimeType)
		require.NotNil(t, post.Relationship)
		assert.Equal(t, content.RelationshipActive, post.Relationship.Status)
		assert.Equal(t, []content.UserSummary{
			{ID: authorID, Username: "alice"},
			{ID: partnerID, Username: "carol"},
		}, post.Relationship.Partners)
	})

	t.Run("public post skips partner query", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM posts p`).
			WithArgs(postID.String()).
			WillReturnRows(pgxmock.NewRows(postCols).AddRow(
				postID.String(), "hi", "public", now, now,
				authorID.String(), "alice",
				(*string)(nil), (*string)(nil), (*string)(nil), (*time.Time)(nil),
				(*string)(nil), (*string)(nil), (*time.Time)(nil),
			))

		post, err := postgres.NewPostRepository(mock).GetByID(ctx, postID)
		require.NoError(t, err)
		assert.Nil(t, post.Attachment)
		assert.Nil(t, post.Relationship)
	})

	t.Run("missing post", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM posts p`).
			WithArgs(postID.String()).
			WillReturnRows(pgxmock.NewRows(postCols))

		_, err := postgres.NewPostRepository(mock).GetByID(ctx, postID)
		assert.ErrorIs(t, err, content.ErrNotFound)
		errutil.AssertErrorCode(t, err, "POST_NOT_FOUND")
	})
}

func TestPostRepository_List(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	alice, bob := ulid.Make(), ulid.Make()
	relID := ulid.Make()
	first, second, third := ulid.Make(), ulid.Make(), ulid.Make()

	t.Run("newest first with partners loaded once per relationship", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM posts p .+ ORDER BY p.created_at DESC, p.id DESC`).
			WillReturnRows(pgxmock.NewRows(postCols).
				AddRow(third.String(), "c", "private", now, now, alice.String(), "alice",
					(*string)(nil), (*string)(nil), (*string)(nil), (*time.Time)(nil),
					strPtr(relID.String()), strPtr("active"), timePtr(now)).
				AddRow(second.String(), "b", "public", now.Add(-time.Minute), now, bob.String(), "bob",
					(*string)(nil), (*string)(nil), (*string)(nil), (*time.Time)(nil),
					(*string)(nil), (*string)(nil), (*time.Time)(nil)).
				AddRow(first.String(), "a", "private", now.Add(-time.Hour), now, bob.String(), "bob",
					(*string)(nil), (*string)(nil), (*string)(nil), (*time.Time)(nil),
					strPtr(relID.String()), strPtr("active"), timePtr(now)))
		mock.ExpectQuery(`FROM users\s+WHERE relationship_id = ANY`).
			WithArgs([]string{relID.String()}).
			WillReturnRows(pgxmock.NewRows(partnerCols).
				AddRow(relID.String(), alice.String(), "alice").
				AddRow(relID.String(), bob.String(), "bob"))

		posts, err := postgres.NewPostRepository(mock).List(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, third, posts[0].ID)
		assert.Equal(t, first, posts[2].ID)
		assert.Len(t, posts[0].Relationship.Partners, 2)
		assert.Len(t, posts[2].Relationship.Partners, 2)
		assert.Nil(t, posts[1].Relationship)
	})

	t.Run("empty", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM posts p`).WillReturnRows(pgxmock.NewRows(postCols))

		posts, err := postgres.NewPostRepository(mock).List(ctx)
		require.NoError(t, err)
		assert.Empty(t, posts)
	})

	t.Run("query failure", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM posts p`).WillReturnError(errors.New("connection refused"))

		_, err := postgres.NewPostRepository(mock).List(ctx)
		errutil.AssertErrorCode(t, err, "POST_LIST_FAILED")
	})
}

func TestPostRepository_UpdateFields(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	now := time.Now().UTC()
	caption := "edited"

	t.Run("passes only supplied fields", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE posts SET .+ COALESCE`).
			WithArgs(id.String(), &caption, now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := postgres.NewPostRepository(mock).UpdateFields(ctx, id, content.PostUpdate{Caption: &caption, UpdatedAt: now})
		require.NoError(t, err)
	})

	t.Run("visibility is never written", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE posts SET\s+caption = COALESCE\(\$2, caption\),\s+updated_at = \$3\s+WHERE id = \$1`).
			WithArgs(id.String(), (*string)(nil), now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := postgres.NewPostRepository(mock).UpdateFields(ctx, id, content.PostUpdate{UpdatedAt: now})
		require.NoError(t, err)
	})

	t.Run("no rows", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE posts SET`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := postgres.NewPostRepository(mock).UpdateFields(ctx, id, content.PostUpdate{Caption: &caption, UpdatedAt: now})
		assert.ErrorIs(t, err, content.ErrNotFound)
	})
}

func TestPostRepository_Delete(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("deletes", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM posts WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, postgres.NewPostRepository(mock).Delete(ctx, id))
	})

	t.Run("no rows", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM posts`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := postgres.NewPostRepository(mock).Delete(ctx, id)
		assert.ErrorIs(t, err, content.ErrNotFound)
	})
}
