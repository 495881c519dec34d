// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/relay-tui/internal/config"
	"github.com/morganforge/relay-tui/internal/ui/styles"
)

// minDiskSpace is the smallest free space (bytes) the local cache and
// logs are comfortable with.
const minDiskSpace = 50 * 1024 * 1024

const probeTimeout = 3 * time.Second

// Phase tracks wizard progress.
type Phase int

const (
	PhaseChecking Phase = iota
	PhaseDone
	PhaseFailed
)

// CheckResult is one environment check's outcome.
type CheckResult struct {
	Name    string
	OK      bool
	Warn    bool
	Message string
}

// checkCompleteMsg carries a finished check back into the update loop.
type checkCompleteMsg struct {
	index  int
	result CheckResult
}

// configWrittenMsg signals the config file landed on disk.
type configWrittenMsg struct {
	path string
	err  error
}

// =============================================================================
// WIZARD MODEL
// =============================================================================

// Wizard runs the environment checks one at a time, then writes the
// default config.
type Wizard struct {
	cfg     *config.Config
	theme   *styles.Theme
	phase   Phase
	checks  []CheckResult
	current int
	cfgPath string
	err     error
}

func NewWizard(cfg *config.Config) *Wizard {
	return &Wizard{
		cfg:   cfg,
		theme: styles.NewTheme(cfg.UI.Theme),
		checks: []CheckResult{
			{Name: "config directory"},
			{Name: "disk space"},
			{Name: "auth service"},
			{Name: "chat service"},
			{Name: "realtime broker URL"},
		},
	}
}

func (w *Wizard) Init() tea.Cmd {
	return w.runCheck(0)
}

func (w *Wizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return w, tea.Quit
		}
		if w.phase != PhaseChecking {
			return w, tea.Quit
		}
		return w, nil

	case checkCompleteMsg:
		w.checks[msg.index] = msg.result
		if !msg.result.OK && !msg.result.Warn {
			w.phase = PhaseFailed
			return w, nil
		}
		if msg.index+1 < len(w.checks) {
			w.current = msg.index + 1
			return w, w.runCheck(w.current)
		}
		return w, w.writeConfig()

	case configWrittenMsg:
		if msg.err != nil {
			w.phase = PhaseFailed
			w.err = msg.err
			return w, nil
		}
		w.cfgPath = msg.path
		w.phase = PhaseDone
		return w, nil
	}
	return w, nil
}

func (w *Wizard) View() string {
	var sb strings.Builder
	sb.WriteString(w.theme.Brand.Render("relay setup"))
	sb.WriteString("\n\n")

	for i, c := range w.checks {
		switch {
		case i > w.current && w.phase == PhaseChecking:
			sb.WriteString("  " + w.theme.ShortcutDesc.Render(c.Name))
		case c.OK && c.Warn:
			sb.WriteString("  " + w.theme.WarnBanner.Render("warn") + " " + c.Name + ": " + c.Message)
		case c.OK:
			sb.WriteString("  " + w.theme.StatusOnline.Render("ok") + "   " + c.Name)
		case w.phase == PhaseFailed && i == w.current:
			sb.WriteString("  " + w.theme.StatusOff.Render("fail") + " " + c.Name + ": " + c.Message)
		default:
			sb.WriteString("  ...  " + c.Name)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	switch w.phase {
	case PhaseDone:
		sb.WriteString("Wrote " + w.cfgPath + "\n")
		sb.WriteString("Run " + w.theme.ShortcutKey.Render("relay login") + " to sign in.\n")
	case PhaseFailed:
		if w.err != nil {
			sb.WriteString(w.theme.StatusOff.Render(w.err.Error()) + "\n")
		}
		sb.WriteString("Fix the failing check and rerun relay-setup.\n")
	default:
		sb.WriteString(lipgloss.NewStyle().Faint(true).Render("checking...") + "\n")
	}
	return sb.String()
}

// =============================================================================
// CHECKS
// =============================================================================

func (w *Wizard) runCheck(index int) tea.Cmd {
	return func() tea.Msg {
		var result CheckResult
		switch index {
		case 0:
			result = w.checkConfigDir()
		case 1:
			result = w.checkDiskSpace()
		case 2:
			result = probeHTTP("auth service", w.cfg.Endpoints.AuthURL)
		case 3:
			result = probeHTTP("chat service", w.cfg.Endpoints.ChatURL)
		case 4:
			result = w.checkBrokerURL()
		}
		return checkCompleteMsg{index: index, result: result}
	}
}

func (w *Wizard) checkConfigDir() CheckResult {
	dir, err := config.EnsureConfigDir()
	if err != nil {
		return CheckResult{Name: "config directory", Message: err.Error()}
	}
	return CheckResult{Name: "config directory", OK: true, Message: dir}
}

func (w *Wizard) checkDiskSpace() CheckResult {
	free, err := freeDiskSpace(w.cfg.Storage.DataDir)
	if err != nil {
		// Non-fatal: the cache degrades to cold starts.
		return CheckResult{Name: "disk space", OK: true, Warn: true, Message: "could not measure"}
	}
	if free < minDiskSpace {
		return CheckResult{Name: "disk space", OK: true, Warn: true,
			Message: fmt.Sprintf("only %d MB free, cache may be disabled", free/(1024*1024))}
	}
	return CheckResult{Name: "disk space", OK: true}
}

func (w *Wizard) checkBrokerURL() CheckResult {
	u, err := url.Parse(w.cfg.Realtime.BrokerURL)
	if err != nil {
		return CheckResult{Name: "realtime broker URL", Message: err.Error()}
	}
	switch u.Scheme {
	case "ws", "wss", "tcp", "ssl":
		return CheckResult{Name: "realtime broker URL", OK: true}
	default:
		return CheckResult{Name: "realtime broker URL",
			Message: fmt.Sprintf("scheme %q is not a broker transport", u.Scheme)}
	}
}

// probeHTTP checks a service endpoint answers at all. Any HTTP status
// counts; the probe runs unauthenticated.
func probeHTTP(name, rawURL string) CheckResult {
	client := &http.Client{Timeout: probeTimeout}
	resp, err := client.Get(rawURL)
	if err != nil {
		// Unreachable services are a warning: setup on a laptop often
		// happens off the office network.
		return CheckResult{Name: name, OK: true, Warn: true, Message: "unreachable, check later"}
	}
	resp.Body.Close()
	return CheckResult{Name: name, OK: true}
}

// writeConfig persists the defaults, keeping an existing file intact.
func (w *Wizard) writeConfig() tea.Cmd {
	return func() tea.Msg {
		path, err := config.ConfigPath()
		if err != nil {
			return configWrittenMsg{err: err}
		}
		if _, err := os.Stat(path); err == nil {
			return configWrittenMsg{path: path}
		}
		if err := config.SaveToPath(w.cfg, path); err != nil {
			return configWrittenMsg{path: path, err: err}
		}
		return configWrittenMsg{path: path}
	}
}
