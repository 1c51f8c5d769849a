package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"fieldcap/internal/record"
)

// --- video selection ---

func (m *model) updateVideos(msg tea.Msg) (tea.Model, tea.Cmd) {
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
	case "enter":
		value := strings.TrimSpace(m.pathInput.Value())
		if value != "" {
			rejected, err := m.ctrl.SelectVideos(strings.Fields(value))
			if err != nil {
				m.fail(err)
				return m, nil
			}
			m.rejections = m.rejections[:0]
			for _, r := range rejected {
				m.rejections = append(m.rejections, r.String())
			}
			if m.ctrl.Draft().Files.Len() == 0 {
				m.errText = "no qualifying video files in that selection"
			} else {
				m.errText = ""
			}
			m.pathInput.SetValue("")
			return m, nil
		}
		return m.confirmVideos(false)
	case "ctrl+u":
		return m.confirmVideos(true)
	case "ctrl+x":
		if m.ctrl.Draft().Files.Len() > 0 {
			if err := m.ctrl.RemoveVideo(m.fileCursor); err != nil {
				m.fail(err)
				return m, nil
			}
			if m.fileCursor >= m.ctrl.Draft().Files.Len() && m.fileCursor > 0 {
				m.fileCursor--
			}
		}
		return m, nil
	case "ctrl+n":
		if m.fileCursor < m.ctrl.Draft().Files.Len()-1 {
			m.fileCursor++
		}
		return m, nil
	case "ctrl+p":
		if m.fileCursor > 0 {
			m.fileCursor--
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(key)
	return m, cmd
}

func (m *model) confirmVideos(uploadLater bool) (tea.Model, tea.Cmd) {
	if err := m.ctrl.ConfirmVideos(uploadLater); err != nil {
		m.fail(err)
		return m, nil
	}
	return m, m.enterScreen()
}

func (m *model) viewVideos() string {
	var b strings.Builder
	b.WriteString(m.styles.Label.Render("Video files"))
	b.WriteString("\n")
	b.WriteString(m.pathInput.View())
	b.WriteString("\n\n")

	files := m.ctrl.Draft().Files.Files()
	if len(files) == 0 {
		b.WriteString(m.styles.Muted.Render("No files selected yet"))
		b.WriteString("\n")
	}
	for i, file := range files {
		marker := "  "
		style := m.styles.Value
		if i == m.fileCursor {
			marker = "> "
			style = m.styles.Selected
		}
		b.WriteString(style.Render(fmt.Sprintf("%s%s  %s  %s", marker, file.Name, humanize.IBytes(uint64(file.Size)), file.Type)))
		b.WriteString("\n")
	}
	for _, rejection := range m.rejections {
		b.WriteString(m.styles.Warning.Render("rejected: " + rejection))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("type paths, enter to stage (replaces selection) · empty enter continue · ctrl+u upload later · ctrl+p/n move · ctrl+x remove · esc back"))
	return b.String()
}

// --- review and submit ---

func (m *model) updateReview(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.submitting {
		return m, nil
	}
	switch key.String() {
	case "enter":
		return m, m.startSubmit()
	case "esc":
		if err := m.ctrl.Back(); err != nil {
			m.fail(err)
			return m, nil
		}
		return m, m.enterScreen()
	}
	return m, nil
}

func (m *model) startSubmit() tea.Cmd {
	m.submitting = true
	m.errText = ""
	gen := m.gen
	rec := m.ctrl.BuildRecord()
	files := m.ctrl.Draft().Files.Files()

	ch := make(chan tea.Msg, 8)
	m.submitCh = ch
	go func() {
		err := m.submitter.Submit(m.ctx, rec, files, func(percent int, step string) {
			ch <- submitProgressMsg{gen: gen, percent: percent, step: step}
		})
		ch <- submitDoneMsg{gen: gen, err: err}
		close(ch)
	}()
	return m.waitSubmit()
}

func (m *model) waitSubmit() tea.Cmd {
	ch := m.submitCh
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *model) onSubmitDone(msg submitDoneMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}
	m.submitting = false
	if msg.err != nil {
		// Draft stays intact; the same submit can be retried.
		m.fail(msg.err)
		return m, nil
	}
	testID := m.ctrl.Draft().TestID
	if err := m.ctrl.CompleteSubmission(); err != nil {
		m.fail(err)
		return m, nil
	}
	cmd := m.enterScreen()
	m.notice = fmt.Sprintf("Submitted %s", testID)
	return m, cmd
}

func (m *model) viewReview() string {
	draft := m.ctrl.Draft()
	user := m.ctrl.User()
	var b strings.Builder

	b.WriteString(m.styles.Label.Render("Test      "))
	b.WriteString(m.styles.Value.Render(draft.TestID))
	b.WriteString("\n")
	b.WriteString(m.styles.Label.Render("Tester    "))
	b.WriteString(m.styles.Value.Render(fmt.Sprintf("%s <%s>", user.DisplayName, user.Email)))
	b.WriteString("\n")
	if draft.Fix != nil {
		b.WriteString(m.styles.Label.Render("Location  "))
		b.WriteString(m.styles.Value.Render(fmt.Sprintf("%s, %s (%s)", draft.Fix.City, draft.Fix.State, draft.Fix.Source)))
		b.WriteString("\n")
	}
	if draft.Metadata != nil {
		b.WriteString(m.styles.Label.Render("Device    "))
		b.WriteString(m.styles.Value.Render(fmt.Sprintf("%s (%s)", draft.Metadata.DeviceID, draft.Metadata.DeviceType)))
		b.WriteString("\n")
		b.WriteString(m.styles.Label.Render("Scene     "))
		b.WriteString(m.styles.Value.Render(fmt.Sprintf("%s / %s / %s", draft.Metadata.TestCycle, draft.Metadata.Environment, draft.Metadata.RoadType)))
		b.WriteString("\n")
	}

	files := draft.Files.Files()
	if len(files) == 0 {
		b.WriteString(m.styles.Label.Render("Videos    "))
		b.WriteString(m.styles.Muted.Render("none (upload later)"))
		b.WriteString("\n")
	} else {
		b.WriteString(m.styles.Label.Render("Videos    "))
		b.WriteString(m.styles.Value.Render(fmt.Sprintf("%d file(s), %s", len(files), humanize.IBytes(uint64(draft.Files.TotalSize())))))
		b.WriteString("\n")
		for _, file := range files {
			b.WriteString(m.styles.Muted.Render("  " + file.Name))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.submitting {
		b.WriteString(m.styles.Value.Render(fmt.Sprintf("Submitting... %d%%  %s", m.submitPercent, m.submitStep)))
	} else {
		b.WriteString(m.styles.Help.Render("enter submit · esc back"))
	}
	return b.String()
}

// --- upload history ---

func (m *model) startHistoryLoad() tea.Cmd {
	m.historyLoading = true
	gen := m.gen
	return func() tea.Msg {
		tests, err := m.opts.Client.ListTests(m.ctx)
		return historyLoadedMsg{gen: gen, tests: tests, err: err}
	}
}

func (m *model) onHistoryLoaded(msg historyLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}
	m.historyLoading = false
	if msg.err != nil {
		m.fail(msg.err)
		return m, nil
	}
	m.history = msg.tests
	if m.historyCursor >= len(m.history) {
		m.historyCursor = 0
	}
	return m, nil
}

func (m *model) updateHistory(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.historyCursor > 0 {
			m.historyCursor--
		}
	case "down", "j":
		if m.historyCursor < len(m.history)-1 {
			m.historyCursor++
		}
	case "r":
		m.gen++
		return m, m.startHistoryLoad()
	case "e", "enter":
		if len(m.history) == 0 {
			return m, nil
		}
		if err := m.ctrl.EditTest(m.history[m.historyCursor]); err != nil {
			m.fail(err)
			return m, nil
		}
		return m, m.enterScreen()
	case "x":
		if len(m.history) == 0 {
			return m, nil
		}
		return m, m.startDelete(m.history[m.historyCursor].TestID)
	case "esc", "q":
		if err := m.ctrl.Back(); err != nil {
			m.fail(err)
			return m, nil
		}
		return m, m.enterScreen()
	}
	return m, nil
}

func (m *model) startDelete(testID string) tea.Cmd {
	gen := m.gen
	return func() tea.Msg {
		return testDeletedMsg{gen: gen, testID: testID, err: m.opts.Client.DeleteTest(m.ctx, testID)}
	}
}

func (m *model) onTestDeleted(msg testDeletedMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}
	if msg.err != nil {
		m.fail(msg.err)
		return m, nil
	}
	m.notice = fmt.Sprintf("Deleted %s", msg.testID)
	return m, m.startHistoryLoad()
}

func (m *model) viewHistory() string {
	var b strings.Builder
	if m.historyLoading {
		b.WriteString(m.styles.Value.Render("Loading tests..."))
		return b.String()
	}
	if len(m.history) == 0 {
		b.WriteString(m.styles.Muted.Render("No tests recorded yet"))
		b.WriteString("\n\n")
		b.WriteString(m.styles.Help.Render("esc back"))
		return b.String()
	}

	for i, test := range m.history {
		marker := "  "
		style := m.styles.Value
		if i == m.historyCursor {
			marker = "> "
			style = m.styles.Selected
		}
		line := fmt.Sprintf("%s%-26s %-22s %-10s %d video(s)  %s",
			marker, test.TestID, historyLocation(test), test.Status, len(test.Videos), humanize.Time(test.CreatedAt))
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("up/down move · e edit metadata · x delete · r refresh · esc back"))
	return b.String()
}

func historyLocation(test record.TestRecord) string {
	if test.Geo == nil {
		return record.UnknownPlace
	}
	return test.Geo.City + ", " + test.Geo.State
}
