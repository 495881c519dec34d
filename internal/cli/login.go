// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// login.go - Interactive sign-in and sign-out for the relay CLI.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/morganforge/relay-tui/internal/session"
)

const loginTimeout = 30 * time.Second

// HandleLogin prompts for credentials and establishes a session. The
// username may be passed on the command line to skip that prompt.
func HandleLogin(args Args, sess *session.Manager) error {
	if !IsTTY() {
		return errors.New("login needs an interactive terminal")
	}

	username := strings.TrimSpace(args.Username)
	if username == "" {
		var err error
		username, err = promptUsername()
		if err != nil {
			return err
		}
	}
	if username == "" {
		return errors.New("username required")
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
	defer cancel()
	if err := sess.Login(ctx, username, string(password)); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Printf("Signed in as %s\n", username)
	return nil
}

// HandleLogout tears the session down. Local cache wiping is the
// caller's job; the CLI only owns the prompt surface.
func HandleLogout(sess *session.Manager) error {
	if !sess.Active() {
		fmt.Println("Not signed in")
		return nil
	}
	sess.Logout()
	fmt.Println("Signed out")
	return nil
}

// promptUsername reads the username with line editing.
func promptUsername() (string, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	input, err := line.Prompt("Username: ")
	if err != nil {
		if err == liner.ErrPromptAborted {
			return "", errors.New("login cancelled")
		}
		return "", err
	}
	return strings.TrimSpace(input), nil
}
