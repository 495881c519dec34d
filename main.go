// relay - terminal client for the Morgan Forge messaging service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/morganforge/relay-tui/internal/api"
	"github.com/morganforge/relay-tui/internal/cli"
	"github.com/morganforge/relay-tui/internal/config"
	"github.com/morganforge/relay-tui/internal/logging"
	"github.com/morganforge/relay-tui/internal/realtime"
	"github.com/morganforge/relay-tui/internal/session"
	"github.com/morganforge/relay-tui/internal/storage"
	"github.com/morganforge/relay-tui/internal/store"
	"github.com/morganforge/relay-tui/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Program reference for pushing store events into the update loop.
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if args.Verbose {
		level = "debug"
	}
	if args.Quiet {
		level = "error"
	}
	if cfg.Logging.File != "" {
		_, err = logging.InitPath(cfg.Logging.File, level)
	} else {
		_, err = logging.Init(cfg.Storage.DataDir, level)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	sess := session.NewManager(cfg.Storage.DataDir)
	client := api.New(api.Config{
		AuthURL:     cfg.Endpoints.AuthURL,
		ChatURL:     cfg.Endpoints.ChatURL,
		PresenceURL: cfg.Endpoints.PresenceURL,
		MediaURL:    cfg.Endpoints.MediaURL,
		Realm:       cfg.Endpoints.Realm,
	}, sess)
	sess.AttachClient(client)

	if err := sess.Restore(); err != nil {
		logging.L().Debug("no session to restore", zap.Error(err))
	}

	switch cmd {
	case cli.CmdLogin:
		if err := cli.HandleLogin(args, sess); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case cli.CmdLogout:
		userID := sess.UserID()
		if err := cli.HandleLogout(sess); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if userID != "" {
			if err := storage.Remove(cfg.Storage.DataDir, userID); err != nil {
				logging.L().Warn("cache wipe failed", zap.Error(err))
			}
		}
	case cli.CmdStatus:
		cli.HandleStatus(cfg, sess)
	case cli.CmdVersion:
		cli.HandleVersion()
	case cli.CmdHelp:
		cli.HandleHelp()
	default:
		runTUI(cfg, sess, client)
	}
}

// runTUI wires the realtime transport, the local cache and the store,
// then hands the terminal to Bubble Tea.
func runTUI(cfg *config.Config, sess *session.Manager, client *api.Client) {
	local, ok := sess.CurrentUser()
	if !ok {
		fmt.Fprintln(os.Stderr, "Not signed in. Run: relay login")
		os.Exit(1)
	}

	log := logging.L()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := realtime.NewManager(cfg.Realtime.BrokerURL, local.ID, client)
	defer rt.Close()

	cache, err := storage.Open(cfg.Storage.DataDir, local.ID)
	if err != nil {
		// The snapshot is an accelerator, not a requirement.
		log.Warn("cache unavailable, starting cold", zap.Error(err))
		cache = nil
	} else {
		defer cache.Close()
	}

	st := store.New(store.Options{
		Backend:   client,
		Transport: rt,
		Cache:     cache,
		LocalUser: local,
		Notify:    sendStoreEvent,
	})
	st.Start(ctx)

	if err := rt.Connect(ctx); err != nil {
		// The TUI starts from the snapshot and reconnects in the
		// background.
		log.Warn("broker connect failed", zap.Error(err))
	}

	app := ui.NewApp(st, client, cfg, local)
	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())

	programMu.Lock()
	programRef = program
	programMu.Unlock()

	sess.SetLogoutCallback(func(userID string, forced bool) {
		if !forced {
			return
		}
		// Local state does not outlive the session it belongs to.
		if cache != nil {
			cache.Close()
		}
		if err := storage.Remove(cfg.Storage.DataDir, userID); err != nil {
			log.Warn("cache wipe failed", zap.Error(err))
		}
		sendMsg(ui.SessionEndedMsg{Reason: "session ended by the auth service"})
	})

	// Config edits apply on the next start; the watcher only logs them.
	if cfgPath, err := config.ConfigPath(); err == nil {
		stopWatch, err := config.Watch(cfgPath, func(*config.Config) {
			log.Info("config changed on disk, restart to apply")
		})
		if err == nil {
			defer stopWatch()
		}
	}

	final, err := program.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if app, ok := final.(ui.App); ok && app.ExitReason() != "" {
		fmt.Fprintln(os.Stderr, app.ExitReason())
		os.Exit(1)
	}
}

// sendStoreEvent forwards a store notification into the running
// program. Events fired before the program starts are dropped; the
// initial load command repaints anyway.
func sendStoreEvent(ev store.Event) {
	sendMsg(ui.StoreEventMsg{Event: ev})
}

func sendMsg(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}
