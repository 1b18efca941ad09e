// Package app is the root Bubble Tea model. It owns the single notification
// store of a session and routes between the dashboard, the notification
// dropdown, the full notifications page, help and setup.
package app

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nhle/evaldash/internal/api"
	"github.com/nhle/evaldash/internal/keys"
	"github.com/nhle/evaldash/internal/model"
	"github.com/nhle/evaldash/internal/notify"
	appsync "github.com/nhle/evaldash/internal/sync"
	"github.com/nhle/evaldash/internal/theme"
	"github.com/nhle/evaldash/internal/ui"
	"github.com/nhle/evaldash/internal/ui/command"
	helpview "github.com/nhle/evaldash/internal/ui/help"
	"github.com/nhle/evaldash/internal/ui/page"
	"github.com/nhle/evaldash/internal/ui/setup"
	"github.com/nhle/evaldash/internal/ui/widget"
)

// noticeTTL is how long a status bar notice stays up.
const noticeTTL = 4 * time.Second

// widgetWidth is the width of the dropdown panel on the dashboard.
const widgetWidth = 56

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewDashboard ViewState = iota
	ViewPage
	ViewHelp
	ViewSetup
	ViewCommand
)

// clearNoticeMsg expires the notice with the same sequence number.
type clearNoticeMsg struct {
	seq int
}

// session bundles what lives and dies with one backend connection.
type session struct {
	store   *notify.Store
	poller  *appsync.Poller
	changes <-chan struct{}

	unsubscribe  func()
	closeBackend func() error
	closeOnce    sync.Once
}

func (s *session) close(logger *zap.Logger) {
	s.closeOnce.Do(func() {
		s.poller.Stop()
		s.unsubscribe()
		s.store.Close()
		if s.closeBackend != nil {
			if err := s.closeBackend(); err != nil {
				logger.Warn("closing backend", zap.Error(err))
			}
		}
	})
}

// Option configures a Model.
type Option func(*Model)

// WithBackendFactory replaces OpenBackend.
func WithBackendFactory(f BackendFactory) Option {
	return func(m *Model) { m.open = f }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// StartInSetup opens the setup form first, for a first run without a
// config file.
func StartInSetup() Option {
	return func(m *Model) { m.currentView = ViewSetup }
}

// Model is the root Bubble Tea model.
type Model struct {
	cfg        *model.AppConfig
	configPath string
	open       BackendFactory
	logger     *zap.Logger
	session    *session

	keys         *keys.KeyMap
	layout       ui.Layout
	ready        bool
	currentView  ViewState
	previousView ViewState
	widgetOpen   bool

	widget      widget.Model
	page        page.Model
	helpView    helpview.Model
	setupView   setup.Model
	commandView command.Model

	notice    string
	noticeSeq int
	authError string
}

// New opens the configured backend and builds the root model around a
// single notification store.
func New(cfg *model.AppConfig, configPath string, opts ...Option) (Model, error) {
	m := Model{
		cfg:        cfg,
		configPath: configPath,
		open:       OpenBackend,
		logger:     zap.NewNop(),
		keys:       keys.DefaultKeyMap(),
		layout:     ui.NewLayout(80, 24),
	}
	for _, opt := range opts {
		opt(&m)
	}

	sess, err := m.connect(cfg)
	if err != nil {
		return Model{}, err
	}
	m.attach(sess)

	m.helpView = helpview.New(m.keys, 80, 22)
	m.setupView = setup.New(cfg, configPath, 80, 22)
	m.commandView = command.New(80, 22)
	return m, nil
}

// connect opens the backend and a fresh store scoped to the session user.
func (m Model) connect(cfg *model.AppConfig) (*session, error) {
	backend, err := m.open(cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.API.Backend, err)
	}

	st := notify.New(backend.API,
		notify.WithUserScope(api.UserScope{
			UserID:    cfg.Session.UserID,
			Role:      cfg.Session.Role,
			SchoolIDs: cfg.Session.SchoolIDs,
		}),
		notify.WithScope(notify.SchoolScope(cfg.Session.SchoolIDs...)),
		notify.WithTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second),
		notify.WithLogger(m.logger.Named("notify")),
	)
	changes, unsubscribe := st.Subscribe()

	interval := time.Duration(cfg.Display.PollIntervalSec) * time.Second
	return &session{
		store:        st,
		poller:       appsync.New(st, interval, m.logger.Named("poller")),
		changes:      changes,
		unsubscribe:  unsubscribe,
		closeBackend: backend.Close,
	}, nil
}

// attach points both views at sess. They share its store.
func (m *Model) attach(sess *session) {
	m.session = sess
	m.widget = widget.New(sess.store, m.keys,
		widget.WithMaxItems(m.cfg.Widget.MaxItems),
		widget.WithWidth(widgetWidth),
	)
	m.page = page.New(sess.store, m.keys, m.layout.ContentWidth(), m.layout.ContentHeight())
}

// start returns the commands that bring a freshly attached session up.
func (m Model) start() tea.Cmd {
	return tea.Batch(
		m.widget.Init(),
		m.page.Init(),
		ui.WaitForChange(m.session.changes),
		ui.Load(m.session.store),
		m.session.poller.Start(),
	)
}

// Init loads the store and starts polling.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.start()}
	if m.currentView == ViewSetup {
		cmds = append(cmds, m.setupView.Init())
	}
	return tea.Batch(cmds...)
}

// Close tears down the session. It is safe to call more than once.
func (m Model) Close() {
	if m.session != nil {
		m.session.close(m.logger)
	}
}

// quit ends the session before the program exits.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.Close()
	return m, tea.Quit
}

// Store returns the session's notification store.
func (m Model) Store() *notify.Store {
	return m.session.store
}

// CurrentView returns the active view.
func (m Model) CurrentView() ViewState {
	return m.currentView
}

// WidgetOpen reports whether the dropdown is showing.
func (m Model) WidgetOpen() bool {
	return m.widgetOpen
}

// Notice returns the current status bar notice, if any.
func (m Model) Notice() string {
	return m.notice
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.page.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.setupView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.widget.SetWidth(min(widgetWidth, w))
		return m, nil

	case ui.StoreChangedMsg:
		// Both views read the same store, so both re-render.
		m.widget, _ = m.widget.Update(msg)
		m.page, _ = m.page.Update(msg)
		return m, ui.WaitForChange(m.session.changes)

	case ui.LoadResultMsg:
		return m, m.handleError(msg.Err)

	case ui.MutationResultMsg:
		if msg.Err != nil {
			return m, m.handleError(msg.Err)
		}
		if msg.Op == notify.OpMarkAllRead {
			if msg.Count == 0 {
				return m, m.setNotice("Nothing to mark as read.")
			}
			return m, m.setNotice(fmt.Sprintf("Marked %d as read.", msg.Count))
		}
		return m, nil

	case ui.RefreshRequestedMsg:
		m.session.poller.Trigger()
		return m, nil

	case appsync.RefreshResultMsg:
		switch {
		case msg.AuthError != nil:
			m.authError = msg.AuthError.Message
		case msg.Error == nil:
			m.authError = ""
		}
		return m, m.session.poller.WaitForNextResult()

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case widget.SelectedMsg:
		m.widgetOpen = false
		m.previousView = ViewDashboard
		m.currentView = ViewPage
		m.page.Focus(msg.Notification.ID)
		return m, nil

	case command.Msg:
		m.currentView = m.previousView
		return m.execute(msg.Command)

	case command.ClosedMsg:
		m.currentView = m.previousView
		return m, nil

	case setup.SavedMsg:
		return m.reconnect(msg.Config)

	case setup.CancelledMsg:
		m.currentView = m.previousView
		m.setupView = setup.New(m.cfg, m.configPath, m.layout.ContentWidth(), m.layout.ContentHeight())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveView(msg)
}

// execute runs a palette command.
func (m Model) execute(c command.Command) (tea.Model, tea.Cmd) {
	switch c.Kind {
	case command.Refresh:
		m.session.poller.Trigger()
	case command.ReadAll:
		return m, ui.MarkAllRead(m.session.store)
	case command.Filter:
		m.page.SetFilter(c.Type)
		m.currentView = ViewPage
	case command.Search:
		m.page.SetSearch(c.Term)
		m.currentView = ViewPage
	case command.Page:
		m.widgetOpen = false
		m.currentView = ViewPage
	case command.Dashboard:
		m.currentView = ViewDashboard
	case command.Configure:
		m.previousView = ViewDashboard
		m.currentView = ViewSetup
		return m, m.setupView.Init()
	case command.Help:
		m.previousView = m.currentView
		m.currentView = ViewHelp
	case command.Quit:
		return m.quit()
	}
	return m, nil
}

// reconnect swaps in a session for cfg. On failure the old session stays.
func (m Model) reconnect(cfg *model.AppConfig) (tea.Model, tea.Cmd) {
	sess, err := m.connect(cfg)
	if err != nil {
		m.logger.Error("reconnecting after setup", zap.Error(err))
		m.currentView = ViewDashboard
		return m, m.setNotice("Couldn't open the new backend: " + err.Error())
	}

	m.session.close(m.logger)
	m.cfg = cfg
	m.authError = ""
	m.attach(sess)
	m.setupView = setup.New(cfg, m.configPath, m.layout.ContentWidth(), m.layout.ContentHeight())
	m.currentView = ViewDashboard
	return m, tea.Batch(m.start(), m.setNotice("Configuration saved."))
}

// handleError turns a failed load or mutation into a notice. Auth failures
// also stick in the status bar until the next successful refresh.
func (m *Model) handleError(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	if errors.Is(err, notify.ErrClosed) {
		return nil
	}
	if api.IsAuthError(err) {
		m.authError = ui.ErrorText(err)
	}
	return m.setNotice(ui.ErrorText(err))
}

// setNotice shows text in the status bar and schedules its removal.
func (m *Model) setNotice(text string) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	seq := m.noticeSeq
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	switch m.currentView {
	case ViewSetup:
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg { return setup.CancelledMsg{} }
		}
		var cmd tea.Cmd
		m.setupView, cmd = m.setupView.Update(msg)
		return m, cmd

	case ViewCommand:
		var cmd tea.Cmd
		m.commandView, cmd = m.commandView.Update(msg)
		return m, cmd

	case ViewHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Back) {
			m.currentView = m.previousView
		}
		return m, nil

	case ViewPage:
		if m.page.Searching() {
			var cmd tea.Cmd
			m.page, cmd = m.page.Update(msg)
			return m, cmd
		}
		if key.Matches(msg, m.keys.Back) && !m.page.CapturesBack() {
			m.currentView = ViewDashboard
			return m, nil
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.Configure):
		m.previousView = m.currentView
		m.currentView = ViewSetup
		return m, m.setupView.Init()

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus()
	}

	if m.currentView == ViewPage {
		var cmd tea.Cmd
		m.page, cmd = m.page.Update(msg)
		return m, cmd
	}
	return m.handleDashboardKey(msg)
}

func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleWidget):
		m.widgetOpen = !m.widgetOpen
		return m, nil

	case key.Matches(msg, m.keys.ViewAll):
		m.widgetOpen = false
		m.previousView = ViewDashboard
		m.currentView = ViewPage
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.widgetOpen = false
		return m, nil
	}

	if m.widgetOpen {
		var cmd tea.Cmd
		m.widget, cmd = m.widget.Update(msg)
		return m, cmd
	}

	if key.Matches(msg, m.keys.Refresh) {
		m.session.poller.Trigger()
	}
	return m, nil
}

// updateActiveView forwards non-key messages such as spinner ticks and
// huh internals to the views that may be waiting on them.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.widget, cmd = m.widget.Update(msg)
	cmds = append(cmds, cmd)
	m.page, cmd = m.page.Update(msg)
	cmds = append(cmds, cmd)

	switch m.currentView {
	case ViewSetup:
		m.setupView, cmd = m.setupView.Update(msg)
		cmds = append(cmds, cmd)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View renders the full terminal UI.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("evaldash", ui.Bell(m.session.store.UnreadCount()))
	notice := m.notice
	if notice == "" && m.currentView != ViewSetup {
		notice = m.authError
	}
	status := m.layout.RenderStatusBar(m.keyHints(), notice)

	return m.layout.RenderWithFrame(header, m.renderContent(), status)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewPage:
		return m.page.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewSetup:
		return m.setupView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return m.renderDashboard()
	}
}

// renderDashboard shows the session summary, with the dropdown docked on
// the right when open.
func (m Model) renderDashboard() string {
	width := m.layout.ContentWidth()
	if m.widgetOpen {
		width -= widgetWidth
	}

	st := m.session.store
	counts := st.TypeCounts()

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("School evaluation dashboard"))
	b.WriteString("\n\n")

	status, _ := st.Status()
	snap := st.Snapshot()
	switch {
	case status == notify.StatusReady && !snap.LoadedAt.IsZero():
		b.WriteString(theme.DimmedStyle.Render("Updated " + ui.RelativeTime(snap.LoadedAt, time.Now())))
	default:
		b.WriteString(theme.DimmedStyle.Render(status.String()))
	}
	if line := m.syncLine(); line != "" {
		b.WriteString(theme.DimmedStyle.Render(" · " + line))
	}
	b.WriteString("\n\n")

	for _, t := range model.Types {
		s := theme.ForType(t)
		label := lipgloss.NewStyle().Foreground(s.Color).Width(20).Render(s.Icon + " " + s.Label)
		fmt.Fprintf(&b, "%s %d\n", label, counts[t])
	}
	fmt.Fprintf(&b, "\n%d unread of %d\n", st.UnreadCount(), counts[model.TypeAll])

	summary := lipgloss.NewStyle().Width(max(width, 0)).Padding(1, 2).Render(b.String())
	if !m.widgetOpen {
		return summary
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, summary, m.widget.View())
}

// syncLine describes the poller's last outcome, or "" before its first run.
func (m Model) syncLine() string {
	st := m.session.poller.Status()
	switch {
	case st.State == appsync.SyncRunning:
		return "syncing…"
	case st.State == appsync.SyncError:
		return "last sync failed"
	case !st.LastSync.IsZero():
		return "synced " + ui.RelativeTime(st.LastSync, time.Now())
	}
	return ""
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewSetup:
		return "enter next | shift+tab previous | esc cancel"
	case ViewCommand:
		return "enter run | tab complete | esc close"
	case ViewPage:
		if m.page.Searching() {
			return "enter keep search | esc clear"
		}
		return "tab filter | / search | r read | u unread | x archive | A all read | R refresh | esc back"
	default:
		if m.widgetOpen {
			return "j/k move | enter open | v view all | R refresh | esc close"
		}
		return "q quit | ? help | : command | n notifications | v view all | c configure"
	}
}
