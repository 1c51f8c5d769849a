package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"fieldcap/internal/geo"
	"fieldcap/internal/record"
)

// --- identity selection ---

func (m *model) updateIdentity(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	testers := m.opts.Config.Testers
	switch key.String() {
	case "up", "k":
		if m.identityCursor > 0 {
			m.identityCursor--
		}
	case "down", "j":
		if m.identityCursor < len(testers)-1 {
			m.identityCursor++
		}
	case "enter":
		if len(testers) == 0 {
			m.errText = "no testers configured; add [[testers]] entries to the config file"
			return m, nil
		}
		chosen := testers[m.identityCursor]
		identity := record.UserIdentity{DisplayName: chosen.Name, Email: chosen.Email}
		return m, m.startSessionBind(identity)
	case "q", "esc":
		return m, tea.Quit
	}
	return m, nil
}

// startSessionBind establishes the local session and registers it with
// the daemon before entering the dashboard.
func (m *model) startSessionBind(identity record.UserIdentity) tea.Cmd {
	gen := m.gen
	return func() tea.Msg {
		bound, err := m.opts.Sessions.Establish(identity)
		if err != nil {
			return sessionBoundMsg{gen: gen, err: err}
		}
		if err := m.opts.Client.CreateSession(m.ctx, bound); err != nil {
			return sessionBoundMsg{gen: gen, err: fmt.Errorf("register session: %w", err)}
		}
		return sessionBoundMsg{gen: gen, session: bound}
	}
}

func (m *model) onSessionBound(msg sessionBoundMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}
	if msg.err != nil {
		m.fail(msg.err)
		return m, nil
	}
	if err := m.ctrl.BindSession(msg.session); err != nil {
		m.fail(err)
		return m, nil
	}
	return m, m.enterScreen()
}

func (m *model) viewIdentity() string {
	var b strings.Builder
	b.WriteString(m.styles.Label.Render("Who is running this test?"))
	b.WriteString("\n\n")
	if len(m.opts.Config.Testers) == 0 {
		b.WriteString(m.styles.Warning.Render("No testers configured. Add [[testers]] entries to the config file."))
		b.WriteString("\n")
	}
	for i, tester := range m.opts.Config.Testers {
		line := fmt.Sprintf("%s <%s>", tester.Name, tester.Email)
		if i == m.identityCursor {
			b.WriteString(m.styles.Selected.Render("> " + line))
		} else {
			b.WriteString(m.styles.Value.Render("  " + line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("up/down choose · enter confirm · q quit"))
	return b.String()
}

// --- dashboard ---

func (m *model) updateDashboard(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "n", "enter":
		if err := m.ctrl.StartNewTest(); err != nil {
			m.fail(err)
			return m, nil
		}
		return m, m.enterScreen()
	case "h":
		if err := m.ctrl.OpenHistory(); err != nil {
			m.fail(err)
			return m, nil
		}
		return m, m.enterScreen()
	case "q", "esc":
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) viewDashboard() string {
	user := m.ctrl.User()
	var b strings.Builder
	b.WriteString(m.styles.Value.Render(fmt.Sprintf("Signed in as %s <%s>", user.DisplayName, user.Email)))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Label.Render("n") + m.styles.Value.Render("  start a new test"))
	b.WriteString("\n")
	b.WriteString(m.styles.Label.Render("h") + m.styles.Value.Render("  upload history"))
	b.WriteString("\n")
	b.WriteString(m.styles.Label.Render("q") + m.styles.Value.Render("  quit"))
	return b.String()
}

// --- location capture ---

func (m *model) startResolve() tea.Cmd {
	m.resolving = true
	gen := m.gen
	return func() tea.Msg {
		result := m.opts.Resolver.Acquire(m.ctx)
		return fixResolvedMsg{gen: gen, result: result}
	}
}

func (m *model) onFixResolved(msg fixResolvedMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}
	m.resolving = false
	if err := m.ctrl.SetFix(msg.result.Fix); err != nil {
		m.fail(err)
		return m, nil
	}
	if msg.result.GPSErr != nil {
		m.geoNote = m.remediationFor(msg.result.GPSErr)
	} else {
		m.geoNote = ""
	}
	if msg.result.Fix.Source == record.SourceManual {
		m.enterManualMode()
	}
	return m, nil
}

func (m *model) enterManualMode() {
	m.manualMode = true
	m.geoFocus = 0
	fix := m.ctrl.Draft().Fix
	if fix != nil {
		if fix.Latitude != 0 || fix.Longitude != 0 {
			m.geoInputs[0].SetValue(strconv.FormatFloat(fix.Latitude, 'f', 6, 64))
			m.geoInputs[1].SetValue(strconv.FormatFloat(fix.Longitude, 'f', 6, 64))
		}
		if fix.City != record.UnknownPlace {
			m.geoInputs[2].SetValue(fix.City)
		}
		if fix.State != record.UnknownPlace {
			m.geoInputs[3].SetValue(fix.State)
		}
	}
	for i := range m.geoInputs {
		m.geoInputs[i].Blur()
	}
	m.geoInputs[0].Focus()
}

func (m *model) updateLocation(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.manualMode {
		return m.updateManualLocation(key)
	}

	switch key.String() {
	case "r":
		if m.resolving {
			return m, nil
		}
		m.gen++
		return m, m.startResolve()
	case "m":
		m.enterManualMode()
		return m, nil
	case "enter":
		if m.resolving {
			return m, nil
		}
		if err := m.ctrl.ConfirmLocation(); err != nil {
			m.fail(err)
			return m, nil
		}
		return m, m.enterScreen()
	case "esc":
		if err := m.ctrl.Back(); err != nil {
			m.fail(err)
			return m, nil
		}
		return m, m.enterScreen()
	}
	return m, nil
}

func (m *model) updateManualLocation(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.manualMode = false
		return m, nil
	case "tab", "down":
		m.moveGeoFocus(1)
		return m, nil
	case "shift+tab", "up":
		m.moveGeoFocus(-1)
		return m, nil
	case "enter":
		return m.applyManualFix()
	}

	var cmd tea.Cmd
	m.geoInputs[m.geoFocus], cmd = m.geoInputs[m.geoFocus].Update(key)
	return m, cmd
}

func (m *model) moveGeoFocus(delta int) {
	m.geoInputs[m.geoFocus].Blur()
	m.geoFocus = (m.geoFocus + delta + len(m.geoInputs)) % len(m.geoInputs)
	m.geoInputs[m.geoFocus].Focus()
}

// applyManualFix overlays the typed fields on the held fix; untouched
// fields keep their current values.
func (m *model) applyManualFix() (tea.Model, tea.Cmd) {
	draft := m.ctrl.Draft()
	fix := record.GeoFix{Source: record.SourceManual}
	if draft.Fix != nil {
		fix = *draft.Fix
	}

	latRaw := strings.TrimSpace(m.geoInputs[0].Value())
	lonRaw := strings.TrimSpace(m.geoInputs[1].Value())
	if latRaw != "" {
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil {
			m.errText = "latitude must be a decimal number"
			return m, nil
		}
		fix.Latitude = lat
		fix.Source = record.SourceManual
	}
	if lonRaw != "" {
		lon, err := strconv.ParseFloat(lonRaw, 64)
		if err != nil {
			m.errText = "longitude must be a decimal number"
			return m, nil
		}
		fix.Longitude = lon
		fix.Source = record.SourceManual
	}
	fix = geo.ApplyManual(fix, m.geoInputs[2].Value(), m.geoInputs[3].Value(), time.Now().UTC())

	if err := m.ctrl.SetFix(fix); err != nil {
		m.fail(err)
		return m, nil
	}
	m.manualMode = false
	m.errText = ""
	m.notice = "Location updated"
	return m, nil
}

func (m *model) viewLocation() string {
	var b strings.Builder
	if m.resolving {
		b.WriteString(m.styles.Value.Render("Resolving location (GPS, then IP fallback)..."))
		b.WriteString("\n\n")
		b.WriteString(m.styles.Help.Render("esc back"))
		return b.String()
	}

	fix := m.ctrl.Draft().Fix
	if fix != nil {
		b.WriteString(m.styles.Label.Render("Location  "))
		b.WriteString(m.styles.Value.Render(fmt.Sprintf("%s, %s", fix.City, fix.State)))
		b.WriteString("\n")
		if fix.Latitude != 0 || fix.Longitude != 0 {
			b.WriteString(m.styles.Label.Render("Position  "))
			b.WriteString(m.styles.Value.Render(fmt.Sprintf("%.6f, %.6f", fix.Latitude, fix.Longitude)))
			b.WriteString("\n")
		}
		b.WriteString(m.styles.Label.Render("Source    "))
		source := string(fix.Source)
		if fix.Approximate {
			source += " (approximate)"
		}
		b.WriteString(m.styles.Value.Render(source))
		b.WriteString("\n")
	}
	if m.geoNote != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Warning.Render(m.geoNote))
		b.WriteString("\n")
	}

	if m.manualMode {
		b.WriteString("\n")
		labels := []string{"Latitude ", "Longitude", "City     ", "State    "}
		for i, input := range m.geoInputs {
			b.WriteString(m.styles.Label.Render(labels[i] + " "))
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.styles.Help.Render("tab next field · enter apply · esc cancel"))
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("enter continue · r refresh · m manual entry · esc back"))
	return b.String()
}
