// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested user or session does not exist.
var ErrNotFound = errors.New("not found")

// ErrUsernameTaken is returned when creating a user whose username exists.
var ErrUsernameTaken = errors.New("username already taken")

// invalidCredentialsMessage is shared by unknown-user and wrong-password
// failures so the response never reveals which one happened.
const invalidCredentialsMessage = "Invalid given username/password"
