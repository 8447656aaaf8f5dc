// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

func ulidToStringPtr(id *ulid.ULID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// parseOptionalULID returns nil for a NULL column.
func parseOptionalULID(strPtr *string, fieldName string) (*ulid.ULID, error) {
	if strPtr == nil {
		return nil, nil
	}
	id, err := ulid.Parse(*strPtr)
	if err != nil {
		return nil, oops.With("operation", "parse "+fieldName).With(fieldName, *strPtr).Wrap(err)
	}
	return &id, nil
}
