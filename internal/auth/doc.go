// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth implements credential verification and the session
// lifecycle for the trust engine.
//
// # Failure model
//
// Ordinary negative outcomes (wrong password, throttled IP, a cookie that
// does not parse) are values: Verifier.Verify returns false, the session
// manager degrades to Guest or returns ErrWrongPassword. Errors carry
// infrastructure faults only (store unreachable, corrupt hash) and are
// wrapped with oops codes for the caller layer to translate into 5xx.
//
// # Services
//
//   - Verifier - password and federated-identity verification, throttle
//     bookkeeping
//   - Throttle - per-IP failure counting with a 24h decay window
//   - SessionManager - login, logout, cookie resolution, password change
package auth
