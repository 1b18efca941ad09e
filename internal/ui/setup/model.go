// Package setup is the backend configuration form. It writes the config
// file and stores the backend secret in the system keyring.
package setup

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/evaldash/internal/credential"
	"github.com/nhle/evaldash/internal/model"
	"github.com/nhle/evaldash/internal/theme"
)

// SavedMsg is sent once the new configuration has been written.
type SavedMsg struct {
	Config *model.AppConfig
}

// CancelledMsg is sent when the user aborts the form.
type CancelledMsg struct{}

// savedInternalMsg carries the result of the save command.
type savedInternalMsg struct {
	cfg *model.AppConfig
	err error
}

// fields is what the form binds to. It lives on the heap so copies of
// Model share it with the huh form.
type fields struct {
	backend    string
	userID     string
	schoolIDs  string
	sqlitePath string
	baseURL    string
	token      string
	imapHost   string
	imapPort   string
	imapUser   string
	imapTLS    bool
	password   string
}

// Option configures a Model.
type Option func(*Model)

// WithSecretWriter replaces the keyring writer.
func WithSecretWriter(fn func(key, value string) error) Option {
	return func(m *Model) { m.setSecret = fn }
}

// Model is the setup form.
type Model struct {
	form      *huh.Form
	fields    *fields
	base      *model.AppConfig
	path      string
	setSecret func(key, value string) error

	saving bool
	err    error

	width, height int
}

// New builds the form prefilled from cfg. path is where the result is
// written.
func New(cfg *model.AppConfig, path string, width, height int, opts ...Option) Model {
	f := &fields{
		backend:    cfg.API.Backend,
		userID:     cfg.Session.UserID,
		schoolIDs:  strings.Join(cfg.Session.SchoolIDs, ", "),
		sqlitePath: cfg.API.SQLitePath,
		baseURL:    cfg.API.BaseURL,
		imapHost:   cfg.API.IMAP.Host,
		imapPort:   cfg.API.IMAP.Port,
		imapUser:   cfg.API.IMAP.Username,
		imapTLS:    cfg.API.IMAP.TLS,
	}

	m := Model{
		fields:    f,
		base:      cfg,
		path:      path,
		setSecret: credential.Set,
		width:     width,
		height:    height,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.form = m.buildForm()
	return m
}

func (m Model) buildForm() *huh.Form {
	f := m.fields

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Notification source").
				Options(
					huh.NewOption("Local database (SQLite)", model.BackendSQLite),
					huh.NewOption("Dashboard REST API", model.BackendREST),
					huh.NewOption("IMAP mailbox", model.BackendIMAP),
				).
				Value(&f.backend),
			huh.NewInput().
				Title("User ID").
				Description("Used to pick your notifications out of shared ones").
				Value(&f.userID),
			huh.NewInput().
				Title("Schools").
				Description("Comma separated school IDs. Leave empty for all").
				Value(&f.schoolIDs),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Database file").
				Value(&f.sqlitePath).
				Validate(validateRequired("Database file")),
		).WithHideFunc(func() bool { return f.backend != model.BackendSQLite }),
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL").
				Placeholder("https://dashboard.example.com").
				Value(&f.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("API token").
				Description("Leave empty to keep the stored token").
				EchoMode(huh.EchoModePassword).
				Value(&f.token),
		).WithHideFunc(func() bool { return f.backend != model.BackendREST }),
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP host").
				Placeholder("imap.example.com").
				Value(&f.imapHost).
				Validate(validateRequired("IMAP host")),
			huh.NewInput().
				Title("Port").
				Value(&f.imapPort).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Value(&f.imapUser).
				Validate(validateRequired("Username")),
			huh.NewConfirm().
				Title("Use TLS?").
				Value(&f.imapTLS),
			huh.NewInput().
				Title("Password").
				Description("Leave empty to keep the stored password").
				EchoMode(huh.EchoModePassword).
				Value(&f.password),
		).WithHideFunc(func() bool { return f.backend != model.BackendIMAP }),
	).WithWidth(m.formWidth()).WithShowHelp(true)
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update drives the form and the save that follows it.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case savedInternalMsg:
		m.saving = false
		if msg.err != nil {
			m.err = msg.err
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		return m, func() tea.Msg { return SavedMsg{Config: msg.cfg} }

	case tea.KeyMsg:
		if m.saving {
			return m, nil
		}
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.saving = true
		return m, m.save()
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelledMsg{} }
	}
	return m, cmd
}

// save writes the config file and keyring entry.
func (m Model) save() tea.Cmd {
	cfg := m.config()
	f := *m.fields
	path := m.path
	setSecret := m.setSecret

	return func() tea.Msg {
		if err := cfg.Validate(); err != nil {
			return savedInternalMsg{err: err}
		}

		switch {
		case cfg.API.Backend == model.BackendREST && f.token != "":
			if err := setSecret(credential.KeyRESTToken, f.token); err != nil {
				return savedInternalMsg{err: fmt.Errorf("saving token: %w", err)}
			}
		case cfg.API.Backend == model.BackendIMAP && f.password != "":
			if err := setSecret(credential.KeyIMAPPassword, f.password); err != nil {
				return savedInternalMsg{err: fmt.Errorf("saving password: %w", err)}
			}
		}

		if err := model.SaveConfig(path, cfg); err != nil {
			return savedInternalMsg{err: err}
		}
		return savedInternalMsg{cfg: cfg}
	}
}

// config returns a copy of the base config with the form values applied.
func (m Model) config() *model.AppConfig {
	cfg := *m.base
	f := m.fields

	cfg.API.Backend = f.backend
	cfg.Session.UserID = strings.TrimSpace(f.userID)
	cfg.Session.SchoolIDs = splitList(f.schoolIDs)

	switch f.backend {
	case model.BackendSQLite:
		cfg.API.SQLitePath = strings.TrimSpace(f.sqlitePath)
	case model.BackendREST:
		cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(f.baseURL), "/")
	case model.BackendIMAP:
		cfg.API.IMAP.Host = strings.TrimSpace(f.imapHost)
		cfg.API.IMAP.Port = strings.TrimSpace(f.imapPort)
		cfg.API.IMAP.Username = strings.TrimSpace(f.imapUser)
		cfg.API.IMAP.TLS = f.imapTLS
	}
	return &cfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// View renders the form.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Configure notifications")

	parts := []string{title}
	if m.err != nil {
		parts = append(parts, theme.ErrorStyle.Render("Save failed: "+m.err.Error()), "")
	}
	if m.saving {
		parts = append(parts, theme.DimmedStyle.Render("Saving…"))
	} else {
		parts = append(parts, m.form.View())
	}

	return theme.PanelStyle.
		Width(m.formWidth()).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	return min(max(m.width-8, 40), 80)
}

func validateRequired(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}
