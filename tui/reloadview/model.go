// Package reloadview is the terminal status panel of a running hot reload
// session: reload status, available builds, the reload log and the plugin's
// own log, with an optional preview of the framebuffer.
package reloadview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/uireload/pkg/artifact"
	"github.com/grovetools/uireload/pkg/consumer"
	"github.com/grovetools/uireload/pkg/host"
	"github.com/grovetools/uireload/pkg/reload"
	"github.com/grovetools/uireload/tui/theme"
	"github.com/grovetools/uireload/tui/utils/scrollbar"
	"github.com/sirupsen/logrus"
)

const (
	reloadLogLines  = 100
	pluginLogLines  = 500
	pluginLogShown  = 6
	buildsRefresh   = time.Second
	previewMaxCols  = 80
	minLogViewLines = 4
)

// Controller is the part of the reload coordinator the view drives.
type Controller interface {
	Snapshot() reload.State
	Builds() ([]artifact.Artifact, error)
	LogTail(n int) []reload.LogEntry
	RequestReload() bool
	LoadArtifact(path string) bool
	SetAutoReload(enabled bool)
	SetMaxArtifacts(n int) int
}

type frameMsg time.Time

// Model is the bubbletea model of the status panel.
type Model struct {
	ctrl     Controller
	host     *host.Host
	interval time.Duration

	keys    keyMap
	help    help.Model
	logView viewport.Model

	width, height int
	state         reload.State
	builds        []artifact.Artifact
	buildsAt      time.Time
	cursor        int
	pluginLogs    []string
	showPreview   bool
	frameErr      error
	notice        string
}

// New returns the panel. h may be nil, in which case no frames are driven.
func New(ctrl Controller, h *host.Host, interval time.Duration) Model {
	if interval <= 0 {
		interval = host.DefaultFrameInterval
	}
	m := Model{
		ctrl:     ctrl,
		host:     h,
		interval: interval,
		keys:     defaultKeys(),
		help:     help.New(),
		logView:  viewport.New(80, minLogViewLines),
	}
	m.refresh(time.Now())
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.layout()
		return m, nil

	case frameMsg:
		if m.host != nil {
			m.frameErr = m.host.Frame()
			m.appendPluginLogs(m.host.Logs.TakeLogs())
		}
		m.refresh(time.Time(msg))
		return m, m.tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.logView, cmd = m.logView.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
	case key.Matches(msg, m.keys.Rebuild):
		if m.ctrl.RequestReload() {
			m.notice = "Rebuild requested"
		} else {
			m.notice = "Rebuild queue full"
		}
	case key.Matches(msg, m.keys.AutoReload):
		m.ctrl.SetAutoReload(!m.state.AutoReload)
		m.state = m.ctrl.Snapshot()
	case key.Matches(msg, m.keys.MoreBuilds):
		m.ctrl.SetMaxArtifacts(m.state.MaxArtifacts + 1)
		m.state = m.ctrl.Snapshot()
	case key.Matches(msg, m.keys.FewerBuild):
		m.ctrl.SetMaxArtifacts(m.state.MaxArtifacts - 1)
		m.state = m.ctrl.Snapshot()
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.builds)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Load):
		if m.cursor < len(m.builds) {
			b := m.builds[m.cursor]
			m.ctrl.LoadArtifact(b.Path)
			m.notice = "Loading " + b.Name()
		}
	case key.Matches(msg, m.keys.Preview):
		m.showPreview = !m.showPreview
		m.layout()
	case key.Matches(msg, m.keys.Flash):
		if m.host != nil {
			m.host.Flush.SetEnabled(!m.host.Flush.Enabled())
		}
	case key.Matches(msg, m.keys.Tree):
		m.notice = m.exportTree()
	default:
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) exportTree() string {
	if m.host == nil {
		return "No host attached"
	}
	root, err := m.host.RefreshTree()
	if err != nil {
		return "Tree export failed: " + err.Error()
	}
	if root == nil {
		return "Plugin exported no tree"
	}
	n := 0
	root.Walk(func(*consumer.TreeNode, int) { n++ })
	return fmt.Sprintf("Object tree: %d objects under %s", n, root.ClassName)
}

func (m *Model) refresh(now time.Time) {
	m.state = m.ctrl.Snapshot()
	if m.buildsAt.IsZero() || now.Sub(m.buildsAt) >= buildsRefresh {
		if builds, err := m.ctrl.Builds(); err == nil {
			m.builds = builds
		}
		m.buildsAt = now
		if m.cursor >= len(m.builds) {
			m.cursor = max(0, len(m.builds)-1)
		}
	}

	atBottom := m.logView.AtBottom()
	m.logView.SetContent(renderReloadLog(m.ctrl.LogTail(reloadLogLines)))
	if atBottom {
		m.logView.GotoBottom()
	}
}

func (m *Model) appendPluginLogs(lines []string) {
	m.pluginLogs = append(m.pluginLogs, lines...)
	if over := len(m.pluginLogs) - pluginLogLines; over > 0 {
		m.pluginLogs = append(m.pluginLogs[:0], m.pluginLogs[over:]...)
	}
}

// layout gives the reload log whatever height the other sections leave.
func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	m.logView.Width = max(10, m.width-1)
	used := lipgloss.Height(m.top()) + lipgloss.Height(m.bottom()) + 2
	m.logView.Height = max(minLogViewLines, m.height-used)
}

// View implements tea.Model.
func (m Model) View() string {
	t := theme.DefaultTheme
	return strings.Join([]string{
		m.top(),
		t.Header.Render("Reload Log"),
		scrollbar.Overlay(&m.logView),
		m.bottom(),
	}, "\n")
}

func (m Model) top() string {
	t := theme.DefaultTheme
	var b strings.Builder

	b.WriteString(t.Title.Render("uireload") + "  " + statusLine(m.state) + "\n\n")

	lastReload := "never"
	if !m.state.LastReload.IsZero() {
		lastReload = m.state.LastReload.Format("2006-01-02 15:04:05")
	}
	abi := m.state.ABIDescriptor
	if abi == "" {
		abi = "-"
	}
	auto := "off"
	if m.state.AutoReload {
		auto = "on"
	}
	fields := [][2]string{
		{"Plugin", orDash(m.state.CurrentName())},
		{"Last Reloaded", lastReload},
		{"ABI Hash", abi},
		{"Generation", fmt.Sprint(m.state.Generation)},
		{"Auto Reload", auto},
		{"Max Builds", fmt.Sprint(m.state.MaxArtifacts)},
	}
	if m.host != nil {
		fields = append(fields, [2]string{"FPS", fmt.Sprint(m.host.Renderer.FPS())})
	}
	var info []string
	for _, f := range fields {
		info = append(info, t.Muted.Render(fmt.Sprintf("%-14s", f[0]))+f[1])
	}
	if m.state.LastError != nil {
		info = append(info, t.Error.Render("Last error    ")+m.state.LastError.Error())
	}
	b.WriteString(t.Box.Render(strings.Join(info, "\n")) + "\n")

	b.WriteString(t.Header.Render("Available Builds") + "\n")
	if len(m.builds) == 0 {
		b.WriteString(t.Muted.Render("  no builds yet") + "\n")
	}
	for i, build := range m.builds {
		line := build.Name()
		if build.Active {
			line += " " + t.Success.Render("[ACTIVE]")
		}
		if i == m.cursor {
			b.WriteString(t.Accent.Render(theme.IconArrow) + " " + t.Selected.Render(line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	if m.showPreview && m.host != nil {
		pixels, w, h := m.host.Renderer.Snapshot()
		cols := previewMaxCols
		if m.width > 0 {
			cols = min(cols, m.width-2)
		}
		if preview := renderPreview(pixels, w, h, cols, m.host.Flush.ActiveEvents(), t.Colors.Orange); preview != "" {
			b.WriteString(t.Header.Render("Preview") + "\n" + preview + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) bottom() string {
	t := theme.DefaultTheme
	var b strings.Builder

	b.WriteString(t.Header.Render("Plugin Log") + "\n")
	start := max(0, len(m.pluginLogs)-pluginLogShown)
	if start == len(m.pluginLogs) {
		b.WriteString(t.Muted.Render("  (empty)") + "\n")
	}
	for _, line := range m.pluginLogs[start:] {
		b.WriteString("  " + line + "\n")
	}

	if m.frameErr != nil {
		b.WriteString(t.Error.Render(theme.IconError+" "+m.frameErr.Error()) + "\n")
	}
	if m.notice != "" {
		b.WriteString(t.Info.Render(m.notice) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func statusLine(s reload.State) string {
	t := theme.DefaultTheme
	switch {
	case s.Status.Failed():
		return t.Error.Render(theme.IconError + " " + s.Status.Label())
	case s.Status.Busy():
		return t.Warning.Render(theme.IconRunning + " " + s.Status.Label())
	case s.Status == reload.StatusReloadSuccessful:
		return t.Success.Render(theme.IconSuccess + " " + s.Status.Label())
	default:
		return t.Muted.Render(theme.IconIdle + " " + s.Status.Label())
	}
}

func renderReloadLog(entries []reload.LogEntry) string {
	t := theme.DefaultTheme
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		msg := e.Message
		switch {
		case e.Level <= logrus.ErrorLevel:
			msg = t.Error.Render(msg)
		case e.Level == logrus.WarnLevel:
			msg = t.Warning.Render(msg)
		}
		lines = append(lines, t.Muted.Render(e.Time.Format("15:04:05"))+" "+msg)
	}
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
