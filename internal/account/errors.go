// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package account

import "errors"

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when creating an account whose canonical id is
// already taken.
var ErrExists = errors.New("already exists")
