// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package content

import (
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dikser/dikser/pkg/errutil"
)

// Visibility controls who a post is meant for.
type Visibility string

// Visibility values.
const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// ParseVisibility converts s to a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(s)
	if !v.Valid() {
		return "", oops.Code("POST_INVALID_VISIBILITY").
			With("visibility", s).
			Wrap(errutil.BadRequest(fmt.Sprintf("visibility must be %q or %q", VisibilityPublic, VisibilityPrivate)))
	}
	return v, nil
}

// UserSummary is the public view of a user embedded in posts.
type UserSummary struct {
	ID       ulid.ULID
	Username string
}

// Attachment is a media reference owned by exactly one post.
type Attachment struct {
	ID        ulid.ULID
	URL       string
	MimeType  string
	CreatedAt time.Time
}

// RelationshipStatus is the lifecycle state of a relationship.
type RelationshipStatus string

// Relationship states.
const (
	RelationshipPending RelationshipStatus = "pending"
	RelationshipActive  RelationshipStatus = "active"
	RelationshipEnded   RelationshipStatus = "ended"
)

// Relationship links two partners. Private posts hang off it.
type Relationship struct {
	ID        ulid.ULID
	Status    RelationshipStatus
	Partners  []UserSummary
	CreatedAt time.Time
}

// HasPartner reports whether userID is one of the partners.
func (r *Relationship) HasPartner(userID ulid.ULID) bool {
	for _, p := range r.Partners {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Post is the aggregate returned by repositories: author, relationship and
// attachment are already resolved.
type Post struct {
	ID           ulid.ULID
	Caption      string
	Visibility   Visibility
	Author       UserSummary
	Relationship *Relationship
	Attachment   *Attachment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAuthoredBy reports whether userID wrote the post.
func (p *Post) IsAuthoredBy(userID ulid.ULID) bool {
	return p.Author.ID == userID
}

// CreatePostInput carries the caller-supplied post fields.
type CreatePostInput struct {
	Caption    string
	Visibility Visibility
}

// CreateAttachmentInput describes media to attach to a new post.
type CreateAttachmentInput struct {
	URL      string
	MimeType string
}

// UpdatePostInput names a post and the fields to change. Nil fields are
// left alone. Visibility is fixed at creation; a non-nil Visibility must
// match the stored one.
type UpdatePostInput struct {
	ID         ulid.ULID
	Caption    *string
	Visibility *Visibility
}

// IsEmpty reports whether the input changes nothing.
func (in UpdatePostInput) IsEmpty() bool {
	return in.Caption == nil && in.Visibility == nil
}

// PostUpdate is the column-level change persisted by PostRepository.
type PostUpdate struct {
	Caption   *string
	UpdatedAt time.Time
}

// DeletedStatus is the status string of a deletion receipt.
const DeletedStatus = "DELETED"

// DeletionReceipt confirms a removal and carries the removed post.
type DeletionReceipt struct {
	Post   *Post
	Status string
	Code   int
}

func newDeletionReceipt(post *Post) *DeletionReceipt {
	return &DeletionReceipt{Post: post, Status: DeletedStatus, Code: http.StatusOK}
}
