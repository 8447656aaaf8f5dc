// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dikser/dikser/internal/content"
	"github.com/dikser/dikser/internal/store"
)

// selectPosts joins each post with its author, attachment and relationship.
// Partners are loaded separately by loadPartners.
const selectPosts = `
	SELECT p.id, p.caption, p.visibility, p.created_at, p.updated_at,
	       u.id, u.username,
	       a.id, a.url, a.mime_type, a.created_at,
	       r.id, r.status, r.created_at
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN attachments a ON a.id = p.attachment_id
	LEFT JOIN relationships r ON r.id = p.relationship_id`

// PostRepository implements content.PostRepository using PostgreSQL.
type PostRepository struct {
	pool store.Pool
}

// NewPostRepository creates a new PostRepository.
func NewPostRepository(pool store.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

// Create stores a new post.
func (r *PostRepository) Create(ctx context.Context, post *content.Post) error {
	var relationshipID, attachmentID *ulid.ULID
	if post.Relationship != nil {
		relationshipID = &post.Relationship.ID
	}
	if post.Attachment != nil {
		attachmentID = &post.Attachment.ID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO posts (id, caption, visibility, author_id, relationship_id, attachment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		post.ID.String(),
		post.Caption,
		string(post.Visibility),
		post.Author.ID.String(),
		ulidToStringPtr(relationshipID),
		ulidToStringPtr(attachmentID),
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return oops.Code("POST_INSERT_FAILED").
			With("operation", "insert post").
			With("id", post.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a post with everything it references.
func (r *PostRepository) GetByID(ctx context.Context, id ulid.ULID) (*content.Post, error) {
	row := r.pool.QueryRow(ctx, selectPosts+` WHERE p.id = $1`, id.String())

	post, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("POST_NOT_FOUND").
			With("id", id.String()).
			Wrap(content.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("POST_GET_FAILED").
			With("operation", "get post by id").
			With("id", id.String()).
			Wrap(err)
	}
	if err := r.attachPartners(ctx, []*content.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

// List returns every post, newest first.
func (r *PostRepository) List(ctx context.Context) ([]*content.Post, error) {
	rows, err := r.pool.Query(ctx, selectPosts+` ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, oops.Code("POST_LIST_FAILED").
			With("operation", "query posts").
			Wrap(err)
	}
	defer rows.Close()

	posts := make([]*content.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, oops.Code("POST_LIST_FAILED").
				With("operation", "scan post row").
				Wrap(err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("POST_LIST_FAILED").
			With("operation", "iterate posts").
			Wrap(err)
	}
	rows.Close()

	if err := r.attachPartners(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdateFields applies the non-nil fields of update.
func (r *PostRepository) UpdateFields(ctx context.Context, id ulid.ULID, update content.PostUpdate) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE posts SET
			caption = COALESCE($2, caption),
			updated_at = $3
		WHERE id = $1
	`, id.String(), update.Caption, update.UpdatedAt)
	if err != nil {
		return oops.Code("POST_UPDATE_FAILED").
			With("operation", "update post").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("POST_NOT_FOUND").
			With("id", id.String()).
			Wrap(content.ErrNotFound)
	}
	return nil
}

// Delete removes a post. Its attachment row is kept.
func (r *PostRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("POST_DELETE_FAILED").
			With("operation", "delete post").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("POST_NOT_FOUND").
			With("id", id.String()).
			Wrap(content.ErrNotFound)
	}
	return nil
}

func (r *PostRepository) attachPartners(ctx context.Context, posts []*content.Post) error {
	var ids []string
	seen := make(map[ulid.ULID]bool)
	for _, p := range posts {
		if p.Relationship != nil && !seen[p.Relationship.ID] {
			seen[p.Relationship.ID] = true
			ids = append(ids, p.Relationship.ID.String())
		}
	}
	if len(ids) == 0 {
		return nil
	}

	partners, err := loadPartners(ctx, r.pool, ids)
	if err != nil {
		return err
	}
	for _, p := range posts {
		if p.Relationship != nil {
			p.Relationship.Partners = partners[p.Relationship.ID]
		}
	}
	return nil
}

// scanPost scans one row of selectPosts.
// Callers are responsible for handling pgx.ErrNoRows.
func scanPost(row pgx.Row) (*content.Post, error) {
	var (
		idStr, caption, visibility string
		createdAt, updatedAt       time.Time
		authorIDStr, authorName    string
		attIDStr, attURL, attMime  *string
		attCreatedAt               *time.Time
		relIDStr, relStatus        *string
		relCreatedAt               *time.Time
	)
	err := row.Scan(
		&idStr, &caption, &visibility, &createdAt, &updatedAt,
		&authorIDStr, &authorName,
		&attIDStr, &attURL, &attMime, &attCreatedAt,
		&relIDStr, &relStatus, &relCreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with lookup context
		}
		return nil, oops.Code("POST_SCAN_FAILED").With("operation", "scan post").Wrap(err)
	}

	id, err := parseULID(idStr, "id")
	if err != nil {
		return nil, oops.Code("POST_INVALID_ID").Wrap(err)
	}
	authorID, err := parseULID(authorIDStr, "author_id")
	if err != nil {
		return nil, oops.Code("POST_INVALID_AUTHOR_ID").Wrap(err)
	}

	post := &content.Post{
		ID:         id,
		Caption:    caption,
		Visibility: content.Visibility(visibility),
		Author:     content.UserSummary{ID: authorID, Username: authorName},
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}

	if attIDStr != nil {
		attID, err := parseULID(*attIDStr, "attachment_id")
		if err != nil {
			return nil, oops.Code("POST_INVALID_ATTACHMENT_ID").Wrap(err)
		}
		post.Attachment = &content.Attachment{ID: attID}
		if attURL != nil {
			post.Attachment.URL = *attURL
		}
		if attMime != nil {
			post.Attachment.MimeType = *attMime
		}
		if attCreatedAt != nil {
			post.Attachment.CreatedAt = *attCreatedAt
		}
	}

	if relIDStr != nil {
		relID, err := parseULID(*relIDStr, "relationship_id")
		if err != nil {
			return nil, oops.Code("POST_INVALID_RELATIONSHIP_ID").Wrap(err)
		}
		post.Relationship = &content.Relationship{ID: relID}
		if relStatus != nil {
			post.Relationship.Status = content.RelationshipStatus(*relStatus)
		}
		if relCreatedAt != nil {
			post.Relationship.CreatedAt = *relCreatedAt
		}
	}
	return post, nil
}

// Compile-time interface check.
var _ content.PostRepository = (*PostRepository)(nil)
