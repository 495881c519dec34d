// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// USER ROLES
// =============================================================================

// Role identifies a user's product-level role.
type Role string

const (
	// RoleMember is a regular user.
	RoleMember Role = "member"
	// RoleAdmin may manage the organization's user roster.
	RoleAdmin Role = "admin"
)

// =============================================================================
// USER TYPE
// =============================================================================

// User is a registered account as returned by the auth service.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarID    string `json:"avatar_id,omitempty"`
	Role        Role   `json:"role"`
	OrgID       string `json:"org_id"`
}

// IsAdmin reports whether the user may use the admin roster screen.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Name returns the best display string for the user.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Participant is a user's membership record within one conversation.
// Display fields are denormalized so the thread view renders without a
// user lookup.
type Participant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarID    string `json:"avatar_id,omitempty"`
	Role        string `json:"role,omitempty"` // role within the conversation
}
