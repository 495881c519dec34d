// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Argument parsing and command routing for relay.
package cli

import (
	"fmt"
	"os"
	"runtime"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdLogout
	CmdStatus
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool

	// Command-specific
	Username string

	// Raw args remaining after flag parsing
	Raw []string
}

const usageText = `relay - terminal chat client

Relay is a terminal client for your organization's messaging service:
conversations, presence and file sharing over the realtime broker,
with an offline snapshot for instant startup.

Usage:
  relay                   Start the chat interface (default)
  relay login [username]  Sign in and store the session
  relay logout            Sign out and wipe local state
  relay status            Show session and endpoint status
  relay version           Show version information
  relay help              Show this help

Flags:
  -v, --verbose   Debug logging
  -q, --quiet     Errors only

Configuration lives in ~/.relay/config.toml and can be overridden with
RELAY_* environment variables (see the sample config for the full list).
`

// Parse reads os.Args and returns the command plus its arguments.
func Parse() (Command, Args) {
	args := Args{}
	rest := os.Args[1:]

	var positional []string
	for _, a := range rest {
		switch a {
		case "-v", "--verbose":
			args.Verbose = true
		case "-q", "--quiet":
			args.Quiet = true
		default:
			positional = append(positional, a)
		}
	}

	if len(positional) == 0 {
		return CmdTUI, args
	}

	cmd := positional[0]
	args.Raw = positional[1:]

	switch cmd {
	case "login":
		if len(args.Raw) > 0 {
			args.Username = args.Raw[0]
		}
		return CmdLogin, args
	case "logout":
		return CmdLogout, args
	case "status", "s":
		return CmdStatus, args
	case "version", "-V", "--version":
		return CmdVersion, args
	case "help", "-h", "--help":
		return CmdHelp, args
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usageText)
		os.Exit(2)
		return CmdHelp, args
	}
}

// HandleHelp prints usage.
func HandleHelp() {
	fmt.Print(usageText)
}

// HandleVersion prints build information.
func HandleVersion() {
	fmt.Printf("relay %s\n", Version)
	fmt.Printf("  commit:  %s\n", GitCommit)
	fmt.Printf("  built:   %s\n", BuildDate)
	fmt.Printf("  runtime: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
