// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/morganforge/relay-tui/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		runPlain(cfg)
		return
	}

	if _, err := tea.NewProgram(NewWizard(cfg)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runPlain is the non-interactive fallback: run the same checks and
// print one line each.
func runPlain(cfg *config.Config) {
	w := NewWizard(cfg)
	failed := false
	for i := range w.checks {
		msg := w.runCheck(i)().(checkCompleteMsg)
		c := msg.result
		switch {
		case c.OK && c.Warn:
			fmt.Printf("warn  %s: %s\n", c.Name, c.Message)
		case c.OK:
			fmt.Printf("ok    %s\n", c.Name)
		default:
			fmt.Printf("fail  %s: %s\n", c.Name, c.Message)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
	if msg := w.writeConfig()().(configWrittenMsg); msg.err != nil {
		fmt.Fprintf(os.Stderr, "write config: %v\n", msg.err)
		os.Exit(1)
	} else {
		fmt.Printf("wrote %s\n", msg.path)
	}
}
