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

// RelationshipRepository implements content.RelationshipRepository using
// PostgreSQL. Partners are the users whose relationship_id points at the
// relationship.
type RelationshipRepository struct {
	pool store.Pool
}

// NewRelationshipRepository creates a new RelationshipRepository.
func NewRelationshipRepository(pool store.Pool) *RelationshipRepository {
	return &RelationshipRepository{pool: pool}
}

// Link stores rel and points each partner at it in one transaction. A
// partner that is missing or already holds a relationship aborts the link
// with content.ErrPartnerUnavailable and nothing is written.
func (r *RelationshipRepository) Link(ctx context.Context, rel *content.Relationship, partners ...ulid.ULID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").With("id", rel.ID.String()).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		INSERT INTO relationships (id, status, created_at)
		VALUES ($1, $2, $3)
	`, rel.ID.String(), string(rel.Status), rel.CreatedAt)
	if err != nil {
		return oops.Code("RELATIONSHIP_CREATE_FAILED").
			With("operation", "insert relationship").
			With("id", rel.ID.String()).
			Wrap(err)
	}

	for _, userID := range partners {
		result, err := tx.Exec(ctx, `
			UPDATE users SET relationship_id = $2, updated_at = now()
			WHERE id = $1 AND relationship_id IS NULL
		`, userID.String(), rel.ID.String())
		if err != nil {
			return oops.Code("RELATIONSHIP_ADD_PARTNER_FAILED").
				With("operation", "link partner").
				With("id", rel.ID.String()).
				With("user_id", userID.String()).
				Wrap(err)
		}
		if result.RowsAffected() == 0 {
			return oops.Code("RELATIONSHIP_EXISTS").
				With("id", rel.ID.String()).
				With("user_id", userID.String()).
				Wrap(content.ErrPartnerUnavailable)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").With("id", rel.ID.String()).Wrap(err)
	}
	return nil
}

// GetByID retrieves a relationship with its partners.
func (r *RelationshipRepository) GetByID(ctx context.Context, id ulid.ULID) (*content.Relationship, error) {
	var (
		status    string
		createdAt time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT status, created_at FROM relationships WHERE id = $1
	`, id.String()).Scan(&status, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RELATIONSHIP_NOT_FOUND").
			With("id", id.String()).
			Wrap(content.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RELATIONSHIP_GET_FAILED").
			With("operation", "get relationship").
			With("id", id.String()).
			Wrap(err)
	}

	rel := &content.Relationship{
		ID:        id,
		Status:    content.RelationshipStatus(status),
		CreatedAt: createdAt,
	}
	partners, err := loadPartners(ctx, r.pool, []string{id.String()})
	if err != nil {
		return nil, err
	}
	rel.Partners = partners[id]
	return rel, nil
}

// loadPartners returns the partners of each relationship ID, ordered by
// username.
func loadPartners(ctx context.Context, pool store.Pool, relationshipIDs []string) (map[ulid.ULID][]content.UserSummary, error) {
	partners := make(map[ulid.ULID][]content.UserSummary, len(relationshipIDs))
	if len(relationshipIDs) == 0 {
		return partners, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT relationship_id, id, username
		FROM users
		WHERE relationship_id = ANY($1)
		ORDER BY username
	`, relationshipIDs)
	if err != nil {
		return nil, oops.Code("RELATIONSHIP_PARTNERS_FAILED").
			With("operation", "query partners").
			Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		var relStr, userStr, username string
		if err := rows.Scan(&relStr, &userStr, &username); err != nil {
			return nil, oops.Code("RELATIONSHIP_PARTNERS_FAILED").
				With("operation", "scan partner").
				Wrap(err)
		}
		relID, err := parseULID(relStr, "relationship_id")
		if err != nil {
			return nil, oops.Code("RELATIONSHIP_PARTNERS_FAILED").Wrap(err)
		}
		userID, err := parseULID(userStr, "user_id")
		if err != nil {
			return nil, oops.Code("RELATIONSHIP_PARTNERS_FAILED").Wrap(err)
		}
		partners[relID] = append(partners[relID], content.UserSummary{ID: userID, Username: username})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("RELATIONSHIP_PARTNERS_FAILED").
			With("operation", "iterate partners").
			Wrap(err)
	}
	return partners, nil
}

// Compile-time interface check.
var _ content.RelationshipRepository = (*RelationshipRepository)(nil)
