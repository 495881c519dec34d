// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package admin is the roster console for organization admins: list
// and search users, toggle roles, and remove accounts. Every action is
// a round trip to the auth service; there is no local mutation, so a
// failed call leaves the roster exactly as the service sees it.
package admin
