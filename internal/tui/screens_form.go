package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"fieldcap/internal/record"
)

// metaField binds one form row to a metadata field. The battery field
// is the lone non-string and is parsed from yes/no text.
type metaField struct {
	label    string
	required bool
	get      func(*record.Metadata) string
	set      func(*record.Metadata, string)
}

var metaFields = []metaField{
	{"Device ID", true,
		func(m *record.Metadata) string { return m.DeviceID },
		func(m *record.Metadata, v string) { m.DeviceID = v }},
	{"Device type", true,
		func(m *record.Metadata) string { return m.DeviceType },
		func(m *record.Metadata, v string) { m.DeviceType = v }},
	{"Test cycle", true,
		func(m *record.Metadata) string { return m.TestCycle },
		func(m *record.Metadata, v string) { m.TestCycle = v }},
	{"Environment", true,
		func(m *record.Metadata) string { return m.Environment },
		func(m *record.Metadata, v string) { m.Environment = v }},
	{"Road type", true,
		func(m *record.Metadata) string { return m.RoadType },
		func(m *record.Metadata, v string) { m.RoadType = v }},
	{"Traffic density", false,
		func(m *record.Metadata) string { return m.TrafficDensity },
		func(m *record.Metadata, v string) { m.TrafficDensity = v }},
	{"Lighting", false,
		func(m *record.Metadata) string { return m.Lighting },
		func(m *record.Metadata, v string) { m.Lighting = v }},
	{"Weather", false,
		func(m *record.Metadata) string { return m.Weather },
		func(m *record.Metadata, v string) { m.Weather = v }},
	{"Temperature", false,
		func(m *record.Metadata) string { return m.Temperature },
		func(m *record.Metadata, v string) { m.Temperature = v }},
	{"Test date", false,
		func(m *record.Metadata) string { return m.TestDate },
		func(m *record.Metadata, v string) { m.TestDate = v }},
	{"Speed range", false,
		func(m *record.Metadata) string { return m.SpeedRange },
		func(m *record.Metadata, v string) { m.SpeedRange = v }},
	{"Vehicle make", false,
		func(m *record.Metadata) string { return m.VehicleMake },
		func(m *record.Metadata, v string) { m.VehicleMake = v }},
	{"Vehicle model", false,
		func(m *record.Metadata) string { return m.VehicleModel },
		func(m *record.Metadata, v string) { m.VehicleModel = v }},
	{"Vehicle year", false,
		func(m *record.Metadata) string { return m.VehicleYear },
		func(m *record.Metadata, v string) { m.VehicleYear = v }},
	{"Mount height", false,
		func(m *record.Metadata) string { return m.MountHeight },
		func(m *record.Metadata, v string) { m.MountHeight = v }},
	{"Mount angle", false,
		func(m *record.Metadata) string { return m.MountAngle },
		func(m *record.Metadata, v string) { m.MountAngle = v }},
	{"Mount position", false,
		func(m *record.Metadata) string { return m.MountPosition },
		func(m *record.Metadata, v string) { m.MountPosition = v }},
	{"Lens orientation", false,
		func(m *record.Metadata) string { return m.LensOrientation },
		func(m *record.Metadata, v string) { m.LensOrientation = v }},
	{"Camera firmware", false,
		func(m *record.Metadata) string { return m.CameraFirmware },
		func(m *record.Metadata, v string) { m.CameraFirmware = v }},
	{"Modem firmware", false,
		func(m *record.Metadata) string { return m.ModemFirmware },
		func(m *record.Metadata, v string) { m.ModemFirmware = v }},
	{"Software version", false,
		func(m *record.Metadata) string { return m.SoftwareVersion },
		func(m *record.Metadata, v string) { m.SoftwareVersion = v }},
	{"SIM carrier", false,
		func(m *record.Metadata) string { return m.SIMCarrier },
		func(m *record.Metadata, v string) { m.SIMCarrier = v }},
	{"External battery (yes/no)", false, getBattery, setBattery},
	{"Comments", false,
		func(m *record.Metadata) string { return m.Comments },
		func(m *record.Metadata, v string) { m.Comments = v }},
}

func getBattery(m *record.Metadata) string {
	if m.ExternalBattery == nil {
		return ""
	}
	if *m.ExternalBattery {
		return "yes"
	}
	return "no"
}

func setBattery(m *record.Metadata, v string) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true":
		value := true
		m.ExternalBattery = &value
	case "no", "n", "false":
		value := false
		m.ExternalBattery = &value
	default:
		m.ExternalBattery = nil
	}
}

// buildMetadataInputs seeds the form from the controller-owned draft.
func (m *model) buildMetadataInputs() {
	meta := m.ctrl.Draft().Metadata
	if meta == nil {
		meta = &record.Metadata{}
	}
	inputs := newInputs(make([]string, len(metaFields)))
	for i, field := range metaFields {
		inputs[i].Placeholder = ""
		inputs[i].SetValue(field.get(meta))
	}
	m.metaInputs = inputs
	m.metaFocus = 0
	m.metaInputs[0].Focus()
}

// syncMetadata broadcasts the form's current values into the draft so
// navigating away never loses edits.
func (m *model) syncMetadata() {
	meta := record.Metadata{}
	if existing := m.ctrl.Draft().Metadata; existing != nil {
		meta = *existing
	}
	for i, field := range metaFields {
		field.set(&meta, strings.TrimSpace(m.metaInputs[i].Value()))
	}
	m.ctrl.SetMetadata(meta)
}

func (m *model) updateMetadata(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "esc":
		if err := m.ctrl.Back(); err != nil {
			m.fail(err)
			return m, nil
		}
		return m, m.enterScreen()
	case "tab", "down":
		m.moveMetaFocus(1)
		return m, nil
	case "shift+tab", "up":
		m.moveMetaFocus(-1)
		return m, nil
	case "enter":
		return m.submitMetadata()
	}

	var cmd tea.Cmd
	m.metaInputs[m.metaFocus], cmd = m.metaInputs[m.metaFocus].Update(key)
	m.syncMetadata()
	return m, cmd
}

func (m *model) moveMetaFocus(delta int) {
	m.metaInputs[m.metaFocus].Blur()
	m.metaFocus = (m.metaFocus + delta + len(m.metaInputs)) % len(m.metaInputs)
	m.metaInputs[m.metaFocus].Focus()
}

func (m *model) submitMetadata() (tea.Model, tea.Cmd) {
	m.syncMetadata()
	if err := m.ctrl.SubmitMetadata(); err != nil {
		m.fail(err)
		return m, nil
	}
	if m.ctrl.EditMode() {
		return m, m.startEditSave()
	}
	return m, m.enterScreen()
}

// startEditSave persists an edit-mode patch: update first, transparent
// create fallback when the record vanished server-side.
func (m *model) startEditSave() tea.Cmd {
	gen := m.gen
	rec := m.ctrl.BuildRecord()
	return func() tea.Msg {
		return editSavedMsg{gen: gen, err: m.submitter.SubmitEdit(m.ctx, rec)}
	}
}

func (m *model) onEditSaved(msg editSavedMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}
	if msg.err != nil {
		m.fail(msg.err)
		return m, nil
	}
	if err := m.ctrl.FinishEdit(); err != nil {
		m.fail(err)
		return m, nil
	}
	cmd := m.enterScreen()
	m.notice = "Metadata saved"
	return m, cmd
}

func (m *model) viewMetadata() string {
	var b strings.Builder
	if m.ctrl.EditMode() {
		b.WriteString(m.styles.Subtitle.Render(fmt.Sprintf("Editing %s", m.ctrl.Draft().TestID)))
		b.WriteString("\n\n")
	}

	// Window the form around the focused row so long forms fit.
	start, end := formWindow(m.metaFocus, len(metaFields), visibleRows(m.height))
	if start > 0 {
		b.WriteString(m.styles.Muted.Render("  ..."))
		b.WriteString("\n")
	}
	for i := start; i < end; i++ {
		field := metaFields[i]
		label := field.label
		if field.required {
			label += " *"
		}
		marker := "  "
		style := m.styles.Label
		if i == m.metaFocus {
			marker = "> "
			style = m.styles.Selected
		}
		b.WriteString(style.Render(fmt.Sprintf("%s%-28s", marker, label)))
		b.WriteString(m.metaInputs[i].View())
		b.WriteString("\n")
	}
	if end < len(metaFields) {
		b.WriteString(m.styles.Muted.Render("  ..."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	help := "tab/arrows move · enter submit · esc back"
	if m.ctrl.EditMode() {
		help = "tab/arrows move · enter save · esc cancel edit"
	}
	b.WriteString(m.styles.Help.Render(help))
	return b.String()
}

func visibleRows(height int) int {
	rows := height - 10
	if rows < 5 {
		rows = 5
	}
	if rows > len(metaFields) {
		rows = len(metaFields)
	}
	return rows
}

func formWindow(focus, total, visible int) (int, int) {
	if total <= visible {
		return 0, total
	}
	start := focus - visible/2
	if start < 0 {
		start = 0
	}
	if start+visible > total {
		start = total - visible
	}
	return start, start + visible
}
