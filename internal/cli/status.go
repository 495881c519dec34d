// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Session and endpoint status output.
package cli

import (
	"fmt"

	"github.com/morganforge/relay-tui/internal/config"
	"github.com/morganforge/relay-tui/internal/session"
)

// HandleStatus prints the signed-in identity and configured service
// endpoints.
func HandleStatus(cfg *config.Config, sess *session.Manager) {
	fmt.Println("relay status")
	fmt.Println()

	if user, ok := sess.CurrentUser(); ok {
		fmt.Printf("  session:  %s (%s)\n", user.Username, user.Role)
	} else {
		fmt.Println("  session:  not signed in")
	}
	fmt.Println()
	fmt.Printf("  auth:     %s\n", cfg.Endpoints.AuthURL)
	fmt.Printf("  chat:     %s\n", cfg.Endpoints.ChatURL)
	fmt.Printf("  presence: %s\n", cfg.Endpoints.PresenceURL)
	fmt.Printf("  media:    %s\n", cfg.Endpoints.MediaURL)
	fmt.Printf("  broker:   %s\n", cfg.Realtime.BrokerURL)
	fmt.Printf("  data dir: %s\n", cfg.Storage.DataDir)
}
