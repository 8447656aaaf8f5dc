// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package content

import "errors"

// ErrNotFound is returned by repositories when an entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrPartnerUnavailable is returned when linking a user who is missing or
// already in a relationship.
var ErrPartnerUnavailable = errors.New("user is missing or already in a relationship")

const (
	noRelationshipMessage = "You do not have relationship just yet"
	postNotFoundMessage   = "post not found"

	visibilityImmutableMessage = "visibility cannot be changed after creation"
)
