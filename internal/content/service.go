// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package content

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dikser/dikser/internal/auth"
	"github.com/dikser/dikser/internal/clock"
	"github.com/dikser/dikser/pkg/errutil"
)

// ServiceConfig holds dependencies for Service.
type ServiceConfig struct {
	Posts         PostRepository
	Attachments   AttachmentRepository
	Relationships RelationshipRepository
	Users         UserLookup
	Clock         clock.Clock
	Logger        *slog.Logger
}

// Service authors and manages posts on behalf of an authenticated caller.
type Service struct {
	posts         PostRepository
	attachments   AttachmentRepository
	relationships RelationshipRepository
	users         UserLookup
	clock         clock.Clock
	logger        *slog.Logger
}

// NewService creates a Service. Clock and Logger default to the real clock
// and slog.Default.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Posts == nil:
		return nil, oops.Code("CONTENT_SERVICE_INVALID").Errorf("posts repository is required")
	case cfg.Attachments == nil:
		return nil, oops.Code("CONTENT_SERVICE_INVALID").Errorf("attachments repository is required")
	case cfg.Relationships == nil:
		return nil, oops.Code("CONTENT_SERVICE_INVALID").Errorf("relationships repository is required")
	case cfg.Users == nil:
		return nil, oops.Code("CONTENT_SERVICE_INVALID").Errorf("users lookup is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		posts:         cfg.Posts,
		attachments:   cfg.Attachments,
		relationships: cfg.Relationships,
		users:         cfg.Users,
		clock:         clk,
		logger:        logger,
	}, nil
}

// CreatePost creates a post authored by caller, optionally with an
// attachment. Private posts require the caller to hold a relationship; the
// check runs before anything is written.
func (s *Service) CreatePost(ctx context.Context, caller auth.Principal, in CreatePostInput, attachment *CreateAttachmentInput) (*Post, error) {
	if err := validateCreate(in, attachment); err != nil {
		return nil, oops.Code("POST_INVALID").Wrap(errutil.Tag(errutil.KindBadRequest, err.Error(), err))
	}

	author, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, oops.Code("POST_AUTHOR_UNRESOLVED").
			With("user_id", caller.UserID.String()).
			Wrap(err)
	}

	now := s.clock.Now()
	post := &Post{
		ID:         ulid.Make(),
		Caption:    in.Caption,
		Visibility: in.Visibility,
		Author:     UserSummary{ID: author.ID, Username: author.Username},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if in.Visibility == VisibilityPrivate {
		rel, err := s.authorRelationship(ctx, author)
		if err != nil {
			return nil, err
		}
		post.Relationship = rel
	}

	if attachment != nil {
		att := &Attachment{
			ID:        ulid.Make(),
			URL:       attachment.URL,
			MimeType:  attachment.MimeType,
			CreatedAt: now,
		}
		if err := s.attachments.Create(ctx, att); err != nil {
			return nil, oops.Code("ATTACHMENT_CREATE_FAILED").
				With("post_id", post.ID.String()).
				Wrap(err)
		}
		post.Attachment = att
	}

	if err := s.posts.Create(ctx, post); err != nil {
		if post.Attachment != nil {
			s.discardAttachment(ctx, post.Attachment.ID)
		}
		return nil, oops.Code("POST_CREATE_FAILED").
			With("post_id", post.ID.String()).
			Wrap(err)
	}
	return post, nil
}

// authorRelationship resolves the relationship a private post binds to.
func (s *Service) authorRelationship(ctx context.Context, author *auth.User) (*Relationship, error) {
	if !author.HasRelationship() {
		return nil, oops.Code("POST_NO_RELATIONSHIP").
			With("user_id", author.ID.String()).
			Wrap(errutil.BadRequest(noRelationshipMessage))
	}
	rel, err := s.relationships.GetByID(ctx, *author.RelationshipID)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code("POST_NO_RELATIONSHIP").
			With("user_id", author.ID.String()).
			With("relationship_id", author.RelationshipID.String()).
			Wrap(errutil.Tag(errutil.KindBadRequest, noRelationshipMessage, err))
	}
	if err != nil {
		return nil, oops.Code("RELATIONSHIP_LOOKUP_FAILED").
			With("relationship_id", author.RelationshipID.String()).
			Wrap(err)
	}
	if !rel.HasPartner(author.ID) {
		return nil, oops.Code("POST_NO_RELATIONSHIP").
			With("user_id", author.ID.String()).
			With("relationship_id", rel.ID.String()).
			Wrap(errutil.BadRequest(noRelationshipMessage))
	}
	return rel, nil
}

// discardAttachment removes an attachment whose post was never stored.
func (s *Service) discardAttachment(ctx context.Context, id ulid.ULID) {
	if err := s.attachments.Delete(context.WithoutCancel(ctx), id); err != nil {
		errutil.LogError(s.logger, "orphan attachment cleanup failed",
			oops.With("attachment_id", id.String()).Wrap(err))
	}
}

// ListPosts returns every post, newest first, with author, attachment and
// relationship populated.
func (s *Service) ListPosts(ctx context.Context) ([]*Post, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, oops.Code("POST_LIST_FAILED").Wrap(err)
	}
	return posts, nil
}

// GetPost returns a single post.
func (s *Service) GetPost(ctx context.Context, id ulid.ULID) (*Post, error) {
	post, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// UpdatePost applies the supplied fields to a post the caller wrote. Posts
// written by someone else are reported as not found. Switching between
// public and private is refused.
func (s *Service) UpdatePost(ctx context.Context, caller auth.Principal, in UpdatePostInput) (*Post, error) {
	post, err := s.update(ctx, caller, in)
	if err != nil {
		return nil, reclassify(err, "could not update post")
	}
	return post, nil
}

func (s *Service) update(ctx context.Context, caller auth.Principal, in UpdatePostInput) (*Post, error) {
	post, err := s.fetchOwned(ctx, caller, in.ID)
	if err != nil {
		return nil, err
	}
	if err := validateUpdate(in); err != nil {
		return nil, oops.Code("POST_INVALID").Wrap(errutil.Tag(errutil.KindBadRequest, err.Error(), err))
	}

	if in.Visibility != nil && *in.Visibility != post.Visibility {
		return nil, oops.Code("POST_VISIBILITY_IMMUTABLE").
			With("post_id", post.ID.String()).
			With("visibility", string(post.Visibility)).
			Wrap(errutil.BadRequest(visibilityImmutableMessage))
	}

	update := PostUpdate{Caption: in.Caption, UpdatedAt: s.clock.Now()}
	if err := s.posts.UpdateFields(ctx, post.ID, update); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("POST_NOT_FOUND").
				With("post_id", post.ID.String()).
				Wrap(errutil.Tag(errutil.KindNotFound, postNotFoundMessage, err))
		}
		return nil, oops.Code("POST_UPDATE_FAILED").
			With("post_id", post.ID.String()).
			Wrap(err)
	}
	return s.fetch(ctx, post.ID)
}

// RemovePost deletes a post the caller wrote and returns a receipt holding
// the removed post.
func (s *Service) RemovePost(ctx context.Context, caller auth.Principal, id ulid.ULID) (*DeletionReceipt, error) {
	post, err := s.fetchOwned(ctx, caller, id)
	if err != nil {
		return nil, reclassify(err, "could not remove post")
	}
	if err := s.posts.Delete(ctx, post.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = errutil.Tag(errutil.KindNotFound, postNotFoundMessage, err)
		}
		return nil, reclassify(oops.Code("POST_DELETE_FAILED").
			With("post_id", post.ID.String()).
			Wrap(err), "could not remove post")
	}
	return newDeletionReceipt(post), nil
}

func (s *Service) fetch(ctx context.Context, id ulid.ULID) (*Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code("POST_NOT_FOUND").
			With("post_id", id.String()).
			Wrap(errutil.Tag(errutil.KindNotFound, postNotFoundMessage, err))
	}
	if err != nil {
		return nil, oops.Code("POST_GET_FAILED").
			With("post_id", id.String()).
			Wrap(err)
	}
	return post, nil
}

// fetchOwned loads a post and hides it from anyone but its author.
func (s *Service) fetchOwned(ctx context.Context, caller auth.Principal, id ulid.ULID) (*Post, error) {
	post, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsAuthoredBy(caller.UserID) {
		return nil, oops.Code("POST_NOT_FOUND").
			With("post_id", id.String()).
			With("user_id", caller.UserID.String()).
			Wrap(errutil.NotFound(postNotFoundMessage))
	}
	return post, nil
}

// reclassify keeps Unauthorized and NotFound failures and reports anything
// else as a BadRequest. Untagged causes get the generic fallback message.
func reclassify(err error, fallback string) error {
	switch errutil.KindOf(err) {
	case errutil.KindUnauthorized, errutil.KindNotFound, errutil.KindBadRequest:
		return err
	}
	msg := fallback
	var tagged *errutil.Error
	if errors.As(err, &tagged) && tagged.Message != "" {
		msg = tagged.Message
	}
	return oops.Code("POST_REQUEST_REJECTED").Wrap(errutil.Tag(errutil.KindBadRequest, msg, err))
}
