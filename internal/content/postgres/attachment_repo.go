// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package postgres

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dikser/dikser/internal/content"
	"github.com/dikser/dikser/internal/store"
)

// AttachmentRepository implements content.AttachmentRepository using PostgreSQL.
type AttachmentRepository struct {
	pool store.Pool
}

// NewAttachmentRepository creates a new AttachmentRepository.
func NewAttachmentRepository(pool store.Pool) *AttachmentRepository {
	return &AttachmentRepository{pool: pool}
}

// Create stores an attachment.
func (r *AttachmentRepository) Create(ctx context.Context, a *content.Attachment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO attachments (id, url, mime_type, created_at)
		VALUES ($1, $2, $3, $4)
	`, a.ID.String(), a.URL, a.MimeType, a.CreatedAt)
	if err != nil {
		return oops.Code("ATTACHMENT_CREATE_FAILED").
			With("operation", "insert attachment").
			With("id", a.ID.String()).
			Wrap(err)
	}
	return nil
}

// Delete removes an attachment.
func (r *AttachmentRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("ATTACHMENT_DELETE_FAILED").
			With("operation", "delete attachment").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ATTACHMENT_NOT_FOUND").
			With("id", id.String()).
			Wrap(content.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ content.AttachmentRepository = (*AttachmentRepository)(nil)
