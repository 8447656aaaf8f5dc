// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package content

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/dikser/dikser/internal/auth"
)

// PostRepository persists posts. Reads return fully joined aggregates.
type PostRepository interface {
	// Create stores a new post. Author, relationship and attachment are
	// referenced by ID.
	Create(ctx context.Context, post *Post) error

	// GetByID retrieves a post with author, relationship (and partners) and
	// attachment. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id ulid.ULID) (*Post, error)

	// List returns every post, newest first.
	List(ctx context.Context) ([]*Post, error)

	// UpdateFields applies the non-nil fields of update.
	UpdateFields(ctx context.Context, id ulid.ULID, update PostUpdate) error

	// Delete removes a post.
	Delete(ctx context.Context, id ulid.ULID) error
}

// AttachmentRepository persists attachments.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *Attachment) error
	Delete(ctx context.Context, id ulid.ULID) error
}

// RelationshipRepository looks up relationships.
type RelationshipRepository interface {
	// GetByID returns the relationship with its partners, or ErrNotFound.
	GetByID(ctx context.Context, id ulid.ULID) (*Relationship, error)
}

// UserLookup resolves a caller to its stored user record.
// auth.UserRepository satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error)
}
