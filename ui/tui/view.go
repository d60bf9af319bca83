package main

import (
	"fmt"
	"strings"

	"reviewpanel/internal/jsontree"
	"reviewpanel/internal/panel"
	"reviewpanel/internal/score"
)

func (m appModel) View() string {
	w, h := m.effectiveSize()
	if w < 20 || h < 6 {
		return m.viewTooSmall(w, h)
	}

	base := m.viewHome()
	if m.panel != nil {
		base = m.viewPanel()
	}

	switch m.currentOverlay() {
	case overlayModelSelect:
		return renderOverlay(m.th, base, m.viewModelSelect())
	case overlayQuitConfirm:
		return renderOverlay(m.th, base, m.viewQuitConfirm())
	case overlayAlert:
		return renderOverlay(m.th, base, m.viewAlert())
	case overlayHelp:
		return renderOverlay(m.th, base, m.viewHelp())
	default:
		return base
	}
}

func (m appModel) viewHome() string {
	header := renderHeader(m.th, m.cfg.version, m.cfg.endpoint, m.sessionID)

	file := m.workspacePath()
	lines := []string{
		fmt.Sprintf("FILE:  %s", nonEmpty(file, m.th.Muted.Render("(none, send an open command)"))),
		fmt.Sprintf("MODEL: %s", nonEmpty(m.model, m.th.Alert.Render("(not selected)"))),
		"",
		m.th.Accent.Render("Press [a] to review the selection, or the whole file when nothing is selected."),
		"",
	}
	if n := len(m.alerts); n > 0 {
		lines = append(lines, m.th.Muted.Render("Recent:"))
		for _, a := range m.alerts[max(0, n-5):] {
			lines = append(lines, "  "+m.renderAlert(a))
		}
	}
	lines = append(lines, "", m.statusLine(), m.help.View(homeKeys(m.keys)))

	frame := m.th.Frame
	if w, _ := m.effectiveSize(); w >= 4 {
		frame = frame.Width(w - 2)
	}
	return frame.Render(header + "\n" + strings.Join(lines, "\n"))
}

func (m appModel) viewPanel() string {
	p := m.panel
	st := p.state
	header := renderHeader(m.th, m.cfg.version, m.cfg.endpoint, m.sessionID)
	now := m.clock()

	codeTab := m.th.Tab.Render("Code")
	resultTab := m.th.Tab.Render("Result")
	if st.Tab == panel.TabCode {
		codeTab = m.th.TabActive.Render("Code")
	} else {
		resultTab = m.th.TabActive.Render("Result")
	}
	if st.NewResult {
		resultTab += m.th.Badge.Render("●")
	}
	model := st.Model
	if model == "" {
		model = "(select with ctrl+o)"
	}
	modelStyle := m.th.Muted
	if st.ModelError {
		modelStyle = m.th.Danger
	}
	tabs := codeTab + " " + resultTab + "   " + modelStyle.Render("model: "+model)

	var body string
	if st.Tab == panel.TabCode {
		meta := m.th.Muted.Render("(no file)")
		if st.HasPayload {
			meta = m.th.Muted.Render(fmt.Sprintf("%s · %s · %s", st.Payload.FileName, st.Payload.LanguageID, st.Payload.Mode))
		}
		body = meta + "\n" + p.editor.View()
	} else {
		body = p.result.View()
	}

	box := m.th.Panel
	if st.Flashing(now) {
		box = m.th.PanelFlash
	}
	w, _ := m.effectiveSize()
	if w >= 6 {
		box = box.Width(w - 4)
	}

	lines := []string{tabs, box.Render(body), m.statusLine(), m.help.View(panelKeys(m.keys))}
	frame := m.th.Frame
	if w >= 4 {
		frame = frame.Width(w - 2)
	}
	return frame.Render(header + "\n" + strings.Join(lines, "\n"))
}

// statusLine shows the panel status, then a transient toast.
func (m appModel) statusLine() string {
	var parts []string
	if m.panel != nil {
		st := m.panel.state
		switch {
		case st.Loading:
			parts = append(parts, m.panel.spin.View()+" "+m.th.Accent.Render(nonEmpty(st.Status, panel.StatusSending)))
		case st.IsError:
			parts = append(parts, m.th.Danger.Render(st.Status))
		case st.Status != "":
			parts = append(parts, m.th.Muted.Render(st.Status))
		}
	}
	if m.toast != "" {
		parts = append(parts, m.th.Alert.Render(m.toast))
	}
	return strings.Join(parts, "  ")
}

// renderResultBody is the scrollable content of the result tab.
func (m appModel) renderResultBody(width int) string {
	st := m.panel.state
	result, has := st.Result()
	if !has {
		switch {
		case st.Loading:
			return m.th.Accent.Render(nonEmpty(st.Status, panel.StatusSending))
		case st.IsError:
			return m.th.Danger.Render(st.Status) + "\n\n" + m.th.Muted.Render("Fix the problem and press ctrl+s to try again.")
		default:
			return m.th.Muted.Render("No review yet. Press ctrl+s to analyze the code tab.")
		}
	}

	barW := clamp(width-30, 10, 40)
	d := st.Displayed
	lines := []string{
		fmt.Sprintf("%s  %s  %s",
			m.th.Header.Render("OVERALL"),
			m.th.scoreStyle(d.Overall).Render(fmt.Sprintf("%3d", d.Overall)),
			m.th.scoreStyle(d.Overall).Render(score.Label(d.Overall)),
		),
		renderScoreBar(m.th, d.Overall, barW),
		"",
	}
	for _, name := range score.CategoryNames() {
		v := d.Category(name)
		lines = append(lines, fmt.Sprintf("%-16s %s %s", name, m.th.scoreStyle(v).Render(fmt.Sprintf("%3d", v)), renderScoreBar(m.th, v, barW)))
	}

	if review := st.ReviewText(); strings.TrimSpace(review) != "" {
		lines = append(lines, "", m.th.Header.Render("REVIEW"), m.md.Render(review))
	}
	lines = append(lines, "", m.th.Header.Render("RAW RESULT"), jsontree.Render(result, m.th.JSON))
	return strings.Join(lines, "\n")
}

func (m appModel) viewModelSelect() string {
	lines := []string{
		m.th.Accent.Render("MODEL SELECT"),
		m.th.Muted.Render("Esc: back    Enter: apply"),
	}
	current := m.currentModel()
	for i, it := range m.cfg.models {
		prefix := "  "
		text := it
		if it == current {
			text += " " + m.th.Muted.Render("(current)")
		}
		if i == m.modelSelectIndex {
			prefix = m.th.Accent.Render("> ")
			text = m.th.Accent.Render(it)
		}
		lines = append(lines, prefix+text)
	}
	return m.th.OverlayBox.Render(strings.Join(lines, "\n"))
}

func (m appModel) viewQuitConfirm() string {
	lines := []string{
		m.th.Danger.Render("QUIT REVIEW PANEL?"),
		m.th.Muted.Render("Enter/y: quit    Esc/n: cancel"),
	}
	return m.th.OverlayBox.Render(strings.Join(lines, "\n"))
}

func (m appModel) viewAlert() string {
	lines := []string{
		m.th.Danger.Render("ERROR"),
		m.alertText,
		m.th.Muted.Render("Enter/Esc: dismiss"),
	}
	return m.th.OverlayBox.Render(strings.Join(lines, "\n"))
}

func (m appModel) viewHelp() string {
	groups := homeKeys(m.keys).FullHelp()
	if m.panel != nil {
		groups = panelKeys(m.keys).FullHelp()
	}
	return m.th.OverlayBox.Render(m.th.Accent.Render("KEYS") + "\n" + m.help.FullHelpView(groups))
}

func (m appModel) renderAlert(a systemAlert) string {
	style := m.th.Muted
	switch a.Severity {
	case alertWarn:
		style = m.th.Alert
	case alertError:
		style = m.th.Danger
	}
	return style.Render(fmt.Sprintf("[%s] %s", a.Severity, a.Message))
}

func renderHeader(th theme, version string, endpoint string, sessionID string) string {
	left := fmt.Sprintf("REVIEW PANEL %s", version)
	right := fmt.Sprintf("[ %s ]", nonEmpty(endpoint, "no endpoint"))
	return th.Header.Render(left+" "+right) + "\n" + th.Muted.Render(fmt.Sprintf("Session: %s", sessionID))
}

func renderOverlay(th theme, base string, overlay string) string {
	dim := th.Overlay.Render(base)
	return dim + "\n\n" + overlay
}

// renderScoreBar draws a 0-100 score as a fixed-width bar.
func renderScoreBar(th theme, v int, width int) string {
	v = clamp(v, 0, 100)
	filled := v * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return th.scoreStyle(v).Render("[" + bar + "]")
}

func (m appModel) viewTooSmall(w, h int) string {
	lines := []string{
		m.th.Header.Render("REVIEW PANEL"),
		m.th.Alert.Render("Terminal too small"),
		m.th.Muted.Render(fmt.Sprintf("Minimum: 20x6. Current: %dx%d", w, h)),
	}
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonEmpty(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
