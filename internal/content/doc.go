// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

// Package content implements post authoring: creation with an optional
// attachment, listing, lookup, and author-only update and removal.
//
// Private posts are bound to the author's relationship at creation time. A
// caller without a relationship cannot create one.
package content
