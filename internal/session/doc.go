// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the authenticated user's credentials and profile
// for the lifetime of a login.
//
// The manager is an explicit injected object: constructed at startup,
// populated by Login or Restore, and disposed by Logout. It implements
// api.CredentialSource so every backend request carries the session token
// and the denormalized user/org identifiers, and it owns the forced
// logout triggered by any 401 from any backend.
//
// Credentials are persisted encrypted at rest so a session survives a
// restart without re-entering a password.
package session
