// Package tui is the interactive front end of the capture wizard: one
// page per wizard screen, driven by the pure controller in
// internal/wizard and the daemon API client.
package tui

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"fieldcap/internal/client"
	"fieldcap/internal/config"
	"fieldcap/internal/geo"
	"fieldcap/internal/logging"
	"fieldcap/internal/record"
	"fieldcap/internal/session"
	"fieldcap/internal/wizard"
)

// Options wires the wizard's collaborators.
type Options struct {
	Config   *config.Config
	Client   *client.Client
	Resolver *geo.Resolver
	Sessions *session.Manager
	Logger   *slog.Logger
}

// Run starts the wizard and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	stored, err := opts.Sessions.Load()
	if err != nil && err != session.ErrNoSession {
		return err
	}

	m := newModel(ctx, opts, stored)
	program := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

type model struct {
	ctx       context.Context
	opts      Options
	styles    Styles
	ctrl      *wizard.Controller
	submitter *wizard.Submitter
	logger    *slog.Logger

	width  int
	height int

	// gen guards async results: it bumps on every screen change and
	// stale responses are discarded.
	gen int

	errText string
	notice  string

	// identity screen
	identityCursor int

	// location screen
	resolving  bool
	manualMode bool
	geoNote    string
	geoInputs  []textinput.Model
	geoFocus   int

	// metadata screen
	metaInputs []textinput.Model
	metaFocus  int

	// video screen
	pathInput  textinput.Model
	fileCursor int
	rejections []string

	// review screen
	submitting    bool
	submitPercent int
	submitStep    string
	submitCh      chan tea.Msg

	// history screen
	historyLoading bool
	historyCursor  int
	history        []record.TestRecord
}

func newModel(ctx context.Context, opts Options, stored record.Session) *model {
	m := &model{
		ctx:       ctx,
		opts:      opts,
		styles:    DefaultStyles(),
		ctrl:      wizard.New(stored),
		submitter: wizard.NewSubmitter(opts.Client),
		logger:    logging.NewComponentLogger(opts.Logger, "tui"),
	}
	m.geoInputs = newInputs([]string{"latitude", "longitude", "city", "state"})
	m.pathInput = textinput.New()
	m.pathInput.Prompt = "> "
	m.pathInput.Placeholder = "/path/to/clip.mp4 (separate multiple files with spaces)"
	m.pathInput.CharLimit = 1024
	m.pathInput.Width = 72
	return m
}

func newInputs(placeholders []string) []textinput.Model {
	inputs := make([]textinput.Model, len(placeholders))
	for i, placeholder := range placeholders {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = placeholder
		ti.CharLimit = 256
		ti.Width = 40
		inputs[i] = ti
	}
	return inputs
}

func (m *model) Init() tea.Cmd {
	if m.ctrl.Screen() == wizard.ScreenGeoLocation {
		return m.startResolve()
	}
	return nil
}

// enterScreen bumps the generation and clears transient screen state.
func (m *model) enterScreen() tea.Cmd {
	m.gen++
	m.errText = ""
	m.notice = ""

	switch m.ctrl.Screen() {
	case wizard.ScreenGeoLocation:
		m.manualMode = false
		m.geoNote = ""
		return m.startResolve()
	case wizard.ScreenMetadataForm:
		m.buildMetadataInputs()
	case wizard.ScreenVideoUpload:
		m.pathInput.SetValue("")
		m.pathInput.Focus()
		m.fileCursor = 0
		m.rejections = nil
	case wizard.ScreenReviewSubmit:
		m.submitting = false
		m.submitPercent = 0
		m.submitStep = ""
	case wizard.ScreenHistory:
		return m.startHistoryLoad()
	}
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case sessionBoundMsg:
		return m.onSessionBound(msg)
	case fixResolvedMsg:
		return m.onFixResolved(msg)
	case submitProgressMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.submitPercent = msg.percent
		m.submitStep = msg.step
		return m, m.waitSubmit()
	case submitDoneMsg:
		return m.onSubmitDone(msg)
	case editSavedMsg:
		return m.onEditSaved(msg)
	case historyLoadedMsg:
		return m.onHistoryLoaded(msg)
	case testDeletedMsg:
		return m.onTestDeleted(msg)
	}

	switch m.ctrl.Screen() {
	case wizard.ScreenUserInfo:
		return m.updateIdentity(msg)
	case wizard.ScreenDashboard:
		return m.updateDashboard(msg)
	case wizard.ScreenGeoLocation:
		return m.updateLocation(msg)
	case wizard.ScreenMetadataForm:
		return m.updateMetadata(msg)
	case wizard.ScreenVideoUpload:
		return m.updateVideos(msg)
	case wizard.ScreenReviewSubmit:
		return m.updateReview(msg)
	case wizard.ScreenHistory:
		return m.updateHistory(msg)
	}
	return m, nil
}

func (m *model) View() string {
	var body string
	switch m.ctrl.Screen() {
	case wizard.ScreenUserInfo:
		body = m.viewIdentity()
	case wizard.ScreenDashboard:
		body = m.viewDashboard()
	case wizard.ScreenGeoLocation:
		body = m.viewLocation()
	case wizard.ScreenMetadataForm:
		body = m.viewMetadata()
	case wizard.ScreenVideoUpload:
		body = m.viewVideos()
	case wizard.ScreenReviewSubmit:
		body = m.viewReview()
	case wizard.ScreenHistory:
		body = m.viewHistory()
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("fieldcap"))
	b.WriteString("  ")
	b.WriteString(m.styles.Subtitle.Render(screenTitle(m.ctrl.Screen())))
	b.WriteString("\n\n")
	b.WriteString(body)
	if m.errText != "" {
		b.WriteString("\n\n")
		b.WriteString(m.styles.Error.Render(m.errText))
	}
	if m.notice != "" {
		b.WriteString("\n\n")
		b.WriteString(m.styles.Success.Render(m.notice))
	}
	return b.String()
}

func screenTitle(screen wizard.Screen) string {
	switch screen {
	case wizard.ScreenUserInfo:
		return "Choose your identity"
	case wizard.ScreenDashboard:
		return "Dashboard"
	case wizard.ScreenGeoLocation:
		return "Capture location"
	case wizard.ScreenMetadataForm:
		return "Test metadata"
	case wizard.ScreenVideoUpload:
		return "Select videos"
	case wizard.ScreenReviewSubmit:
		return "Review and submit"
	case wizard.ScreenHistory:
		return "Upload history"
	}
	return string(screen)
}

func (m *model) fail(err error) {
	if err == nil {
		return
	}
	m.errText = err.Error()
}

func (m *model) remediationFor(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", err.Error(), geo.Remediation(err))
}
