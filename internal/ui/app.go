package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/journal"
	"github.com/jfloresavalos/InvBF/internal/logging"
	"github.com/jfloresavalos/InvBF/internal/monitor"
	"github.com/jfloresavalos/InvBF/internal/prefs"
	"github.com/jfloresavalos/InvBF/internal/scan"
	"github.com/jfloresavalos/InvBF/internal/state"
	"github.com/jfloresavalos/InvBF/internal/syncer"
)

// View represents the current active view.
type View int

const (
	ViewScan View = iota
	ViewJournal
	ViewManual
	ViewMonitor
	ViewLog
)

var viewOrder = []View{ViewScan, ViewJournal, ViewManual, ViewMonitor, ViewLog}

func (v View) String() string {
	switch v {
	case ViewJournal:
		return "Readings"
	case ViewManual:
		return "Manual entry"
	case ViewMonitor:
		return "Monitor"
	case ViewLog:
		return "Log"
	default:
		return "Scan"
	}
}

type promptKind int

const (
	promptNone promptKind = iota
	promptLocation
	promptQuantity
	promptClear
)

// Options configures the UI.
type Options struct {
	Context     context.Context
	Coordinator *syncer.Coordinator
	Scanner     *scan.Loop
	Monitor     *monitor.Monitor
	State       *state.Store
	ThemeName   string
	PrefsPath   string
	LogPath     string
	// RefreshEvery drives the clock; core changes arrive by subscription.
	RefreshEvery time.Duration

	notify func()
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx          context.Context
	coord        *syncer.Coordinator
	scanner      *scan.Loop
	monitor      *monitor.Monitor
	store        *state.Store
	prefsPath    string
	logPath      string
	refreshEvery time.Duration
	notify       func()

	// Journal subscription
	watched *journal.Journal
	unwatch func()

	// UI state
	theme    Theme
	keys     keyMap
	view     View
	width    int
	height   int
	ready    bool
	showHelp bool
	now      time.Time

	// Data state
	snapshot state.Snapshot
	records  []inventory.ReadingRecord
	totals   journal.Totals
	sync     journal.SyncState

	// Status line
	busy     string
	flash    string
	flashErr bool
	flashAt  time.Time

	// Scan state
	scanInput textinput.Model
	lastScan  *scan.Result
	recent    []scan.Commit

	// Prompt modal
	prompt        promptKind
	promptInput   textinput.Model
	promptProduct inventory.CatalogEntry

	// Journal state
	journalSel int

	// Manual entry state
	manualInput textinput.Model
	results     []inventory.CatalogEntry
	resultSel   int
	suppliers   []string
	seasons     []string
	supplierIdx int // 0 = all
	seasonIdx   int // 0 = all

	// Log state
	logDebug    bool
	debugLines  []string
	logViewport viewport.Model
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	refresh := opts.RefreshEvery
	if refresh <= 0 {
		refresh = DefaultUIInterval
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	scanInput := textinput.New()
	scanInput.Placeholder = "Scan or type a code"
	scanInput.CharLimit = 64
	scanInput.Prompt = "› "
	scanInput.Focus()

	manualInput := textinput.New()
	manualInput.Placeholder = "Search description, model, ALU or SKU"
	manualInput.CharLimit = 80
	manualInput.Prompt = "/ "

	promptInput := textinput.New()
	promptInput.CharLimit = 64

	m := Model{
		ctx:          ctx,
		coord:        opts.Coordinator,
		scanner:      opts.Scanner,
		monitor:      opts.Monitor,
		store:        opts.State,
		prefsPath:    prefsPath,
		logPath:      opts.LogPath,
		refreshEvery: refresh,
		notify:       opts.notify,
		theme:        GetTheme(opts.ThemeName),
		keys:         DefaultKeyMap(),
		view:         ViewScan,
		now:          time.Now(),
		scanInput:    scanInput,
		manualInput:  manualInput,
		promptInput:  promptInput,
	}
	if m.store != nil {
		m.snapshot = m.store.Snapshot()
	}
	if m.coord != nil {
		m.busy = "Connecting..."
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		tickCmd(m.refreshEvery),
	}
	if cmd := m.connectCmd(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		if m.flash != "" && m.now.Sub(m.flashAt) > FlashDuration {
			m.flash = ""
		}
		return m, tickCmd(m.refreshEvery)

	case changedMsg:
		m.refreshData()
		return m, nil

	case connectMsg:
		m.busy = ""
		m.handleConnect(msg)
		return m, nil

	case pushMsg:
		m.busy = ""
		if msg.err != nil {
			m.setFlash(fmt.Sprintf("Send failed: %v", msg.err), true)
		} else {
			text := fmt.Sprintf("Sent %d readings (%d units)", msg.res.Records, msg.res.Quantity)
			if !msg.res.Clean {
				text += ", new readings still pending"
			}
			m.setFlash(text, false)
		}
		m.refreshData()
		return m, nil

	case debugLogMsg:
		if msg.err != nil {
			m.debugLines = []string{"Cannot read debug log: " + msg.err.Error()}
		} else {
			m.debugLines = msg.lines
		}
		m.updateLogViewport()
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.prompt != promptNone {
		return m.renderPrompt()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}
	if key.Matches(msg, m.keys.Quit) {
		m.stopMonitor()
		return m, tea.Quit
	}
	if m.prompt != promptNone {
		return m.handlePromptKey(msg)
	}
	if m.snapshot.Phase == state.PhaseBlocked {
		return m.handleBlockedKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		if _, err := prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.Theme = m.theme.Name }); err != nil {
			m.setFlash("Theme not saved: "+err.Error(), true)
		}
		return m, nil
	case key.Matches(msg, m.keys.Push):
		cmd := m.pushCmd()
		return m, cmd
	case key.Matches(msg, m.keys.Reconnect):
		cmd := m.connectCmd()
		return m, cmd
	case key.Matches(msg, m.keys.Tab):
		return m.switchView(nextView(m.view, 1))
	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView(nextView(m.view, -1))
	case key.Matches(msg, m.keys.ViewScan), key.Matches(msg, m.keys.Escape):
		return m.switchView(ViewScan)
	case key.Matches(msg, m.keys.ViewJournal):
		return m.switchView(ViewJournal)
	case key.Matches(msg, m.keys.ViewManual):
		return m.switchView(ViewManual)
	case key.Matches(msg, m.keys.ViewMonitor):
		return m.switchView(ViewMonitor)
	case key.Matches(msg, m.keys.ViewLog):
		return m.switchView(ViewLog)
	}

	switch m.view {
	case ViewScan:
		return m.handleScanKey(msg)
	case ViewJournal:
		return m.handleJournalKey(msg)
	case ViewManual:
		return m.handleManualKey(msg)
	case ViewMonitor:
		return m.handleMonitorKey(msg)
	case ViewLog:
		return m.handleLogKey(msg)
	}
	return m, nil
}

func nextView(current View, step int) View {
	for i, v := range viewOrder {
		if v == current {
			n := len(viewOrder)
			return viewOrder[((i+step)%n+n)%n]
		}
	}
	return ViewScan
}

// switchView leaves the current view and enters v. The progress monitor runs
// only while its view is open.
func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	if m.view == ViewMonitor && v != ViewMonitor {
		m.stopMonitor()
	}
	m.view = v
	m.scanInput.Blur()
	m.manualInput.Blur()

	var cmd tea.Cmd
	switch v {
	case ViewScan:
		cmd = m.scanInput.Focus()
	case ViewManual:
		m.refreshFilters()
		m.search()
		cmd = m.manualInput.Focus()
	case ViewMonitor:
		m.startMonitor()
	case ViewLog:
		m.updateLogViewport()
		if m.logDebug {
			cmd = m.readDebugLogCmd()
		}
	case ViewJournal:
		m.journalSel = clamp(m.journalSel, len(m.records))
	}
	return m, cmd
}

func (m *Model) startMonitor() {
	if m.monitor == nil || !m.snapshot.HasSession {
		return
	}
	m.monitor.Start(m.ctx)
}

func (m *Model) stopMonitor() {
	if m.monitor != nil {
		m.monitor.Stop()
	}
}

func (m Model) handleBlockedKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Retry):
		cmd := m.connectCmd()
		return m, cmd
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	}
	return m, nil
}

// refreshData pulls the latest state and journal into the model.
func (m *Model) refreshData() {
	if m.store != nil {
		m.snapshot = m.store.Snapshot()
	}
	m.watchJournal()
	if m.watched == nil {
		m.records, m.totals, m.sync = nil, journal.Totals{}, journal.SyncState{}
	} else {
		m.records = m.watched.Records()
		m.totals = m.watched.Totals()
		m.sync = m.watched.State()
	}
	m.journalSel = clamp(m.journalSel, len(m.records))
	if m.view == ViewLog {
		m.updateLogViewport()
	}
}

// watchJournal follows the coordinator's current journal, which is replaced
// on every connect.
func (m *Model) watchJournal() {
	if m.coord == nil {
		return
	}
	j := m.coord.Journal()
	if j == m.watched {
		return
	}
	if m.unwatch != nil {
		m.unwatch()
		m.unwatch = nil
	}
	m.watched = j
	if j != nil && m.notify != nil {
		m.unwatch = j.Subscribe(m.notify)
	}
}

func (m *Model) handleConnect(msg connectMsg) {
	m.refreshData()
	m.refreshFilters()
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return
		}
		m.setFlash(msg.err.Error(), true)
		return
	}
	switch msg.res.Phase {
	case state.PhaseActive:
		text := fmt.Sprintf("Connected to %s", msg.res.Session.Name)
		if msg.res.BaselineUsed {
			text += ", readings restored from server"
		}
		m.setFlash(text, false)
	case state.PhaseOffline:
		m.setFlash(fmt.Sprintf("Working offline (catalog from %s)", msg.res.CatalogTier), true)
	case state.PhaseNoSession:
		m.setFlash("No inventory is open on the server", true)
	}
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
	m.flashAt = m.now
	if m.flashAt.IsZero() {
		m.flashAt = time.Now()
	}
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	if m.snapshot.Phase == state.PhaseBlocked {
		return m.renderBlocked()
	}
	switch m.view {
	case ViewJournal:
		return m.renderJournal()
	case ViewManual:
		return m.renderManual()
	case ViewMonitor:
		return m.renderMonitor()
	case ViewLog:
		return m.renderLog()
	default:
		return m.renderScan()
	}
}

func (m Model) contentHeight() int {
	return maxInt(m.height-2, 3)
}

// Messages

type tickMsg time.Time

type changedMsg struct{}

type connectMsg struct {
	res syncer.ConnectResult
	err error
}

type pushMsg struct {
	res syncer.PushResult
	err error
}

type debugLogMsg struct {
	lines []string
	err   error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) connectCmd() tea.Cmd {
	if m.coord == nil {
		return nil
	}
	m.busy = "Connecting..."
	coord, ctx := m.coord, m.ctx
	return func() tea.Msg {
		res, err := coord.Connect(ctx)
		return connectMsg{res: res, err: err}
	}
}

func (m *Model) pushCmd() tea.Cmd {
	if m.coord == nil {
		return nil
	}
	m.busy = "Sending..."
	coord, ctx := m.coord, m.ctx
	return func() tea.Msg {
		res, err := coord.Push(ctx)
		return pushMsg{res: res, err: err}
	}
}

func (m Model) readDebugLogCmd() tea.Cmd {
	path := m.logPath
	return func() tea.Msg {
		lines, err := logging.Tail(path, DebugLogLines, "debug")
		return debugLogMsg{lines: lines, err: err}
	}
}

// Run starts the Bubble Tea program. Core change notifications are coalesced
// and delivered to the program without ever blocking the notifying goroutine.
func Run(opts Options) error {
	changes := make(chan struct{}, 1)
	opts.notify = func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}

	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if opts.State != nil {
		unsubscribe := opts.State.Subscribe(func(state.Snapshot) { opts.notify() })
		defer unsubscribe()
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-changes:
				p.Send(changedMsg{})
			}
		}
	}()
	if opts.Context != nil {
		go func() {
			select {
			case <-opts.Context.Done():
				p.Quit()
			case <-stop:
			}
		}()
	}

	_, err := p.Run()
	if opts.Monitor != nil {
		opts.Monitor.Stop()
	}
	return err
}
