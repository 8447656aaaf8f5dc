// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

// Package auth provides authentication primitives for Dikser.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with a validated username and password hash
//   - NewSession - creates a Session holding the hash of an issued token
//
// Direct struct initialization bypasses validation and may create invalid state.
//
// # Sessions
//
// Each user has at most one session. A successful login replaces whatever
// session the user had before, so only the most recently issued token
// validates.
//
// # Services
//
// Service coordinates login, token validation and logout. It is created with
// NewAuthService, which validates its dependencies.
package auth
