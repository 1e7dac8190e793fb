// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrWrongPassword is the user-facing login rejection. It covers every
// ordinary verification failure (bad password, throttled IP, unverifiable
// federated token) so that callers cannot distinguish them.
var ErrWrongPassword = errors.New("wrong password")
