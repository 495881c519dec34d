// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/morganforge/relay-tui/internal/model"
)

// foldAccents decomposes characters and strips combining marks, so
// "José" matches a plain "jose" query.
var foldAccents = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeQuery canonicalizes a search term for matching: Unicode
// case folding plus accent stripping. Casers are stateful, so one is
// built per call.
func normalizeQuery(s string) string {
	folded := cases.Fold().String(strings.TrimSpace(s))
	out, _, err := transform.String(foldAccents, folded)
	if err != nil {
		return folded
	}
	return out
}

// filterUsers returns the users whose username or display name contains
// the query after normalization. An empty query returns everyone.
func filterUsers(users []model.User, query string) []model.User {
	q := normalizeQuery(query)
	if q == "" {
		return users
	}
	var out []model.User
	for _, u := range users {
		if strings.Contains(normalizeQuery(u.Username), q) ||
			strings.Contains(normalizeQuery(u.DisplayName), q) {
			out = append(out, u)
		}
	}
	return out
}
