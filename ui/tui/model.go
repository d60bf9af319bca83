package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"reviewpanel/internal/editor"
	"reviewpanel/internal/panel"
	"reviewpanel/internal/protocol"
	"reviewpanel/internal/score"
)

type overlay int

const (
	overlayNone overlay = iota
	overlayModelSelect
	overlayQuitConfirm
	overlayAlert
	overlayHelp
)

func (o overlay) String() string {
	switch o {
	case overlayNone:
		return "none"
	case overlayModelSelect:
		return "model_select"
	case overlayQuitConfirm:
		return "quit_confirm"
	case overlayAlert:
		return "alert"
	case overlayHelp:
		return "help"
	default:
		return "unknown"
	}
}

type appConfig struct {
	stateDir      string
	sessionID     string
	version       string
	endpoint      string
	models        []string
	defaultModel  string
	animDuration  time.Duration
	animFrame     time.Duration
	commandsPath  string
	markdownStyle string
	wordWrap      int
	plain         bool
	now           func() time.Time
}

// appDeps are the collaborators the model talks to.
type appDeps struct {
	link      hostLink
	workspace *editor.Workspace
	clipboard ClipboardWriter
	log       *zap.Logger
	events    *eventLogger
}

type appModel struct {
	cfg  appConfig
	th   theme
	keys keyMap
	help help.Model
	md   *markdownRenderer

	width  int
	height int

	link      hostLink
	workspace *editor.Workspace
	clipboard ClipboardWriter
	log       *zap.Logger
	events    *eventLogger

	sessionID string

	// panel is the open display surface, nil when closed.
	panel *surfacePanel
	// model is carried into the next panel.
	model string

	overlays         []overlay
	modelSelectIndex int
	alertText        string

	toast      string
	toastUntil time.Time

	alerts         []systemAlert
	recentCommands []string
	analyses       int

	now              time.Time
	commandBusPath   string
	commandBusOffset int64
	actionSource     string
	quitRequested    bool
}

// surfacePanel is the on-screen part of one display surface.
type surfacePanel struct {
	id      uint64
	dispose func()
	state   *panel.State
	editor  textarea.Model
	result  viewport.Model
	spin    spinner.Model
}

// frameMsg samples the score animation of generation gen on the panel
// with the given surface id.
type frameMsg struct {
	surface uint64
	gen     uint64
	at      time.Time
}

type clipboardResultMsg struct {
	what string
	err  error
}

const toastDuration = 3 * time.Second

func newAppModel(cfg appConfig, deps appDeps) appModel {
	th := defaultTheme()
	if cfg.plain {
		th = plainTheme()
	}
	if len(cfg.models) == 0 {
		cfg.models = []string{"gpt-4.1-mini"}
	}
	if deps.log == nil {
		deps.log = zap.NewNop()
	}
	if deps.clipboard == nil {
		deps.clipboard = realClipboard{}
	}
	m := appModel{
		cfg:            cfg,
		th:             th,
		keys:           defaultKeyMap(),
		help:           help.New(),
		md:             newMarkdownRenderer(cfg.markdownStyle, cfg.wordWrap),
		link:           deps.link,
		workspace:      deps.workspace,
		clipboard:      deps.clipboard,
		log:            deps.log,
		events:         deps.events,
		sessionID:      cfg.sessionID,
		model:          cfg.defaultModel,
		alerts:         []systemAlert{},
		recentCommands: []string{},
		commandBusPath: cfg.commandsPath,
		actionSource:   "tui",
	}
	m.commandBusOffset = initCommandBus(cfg.commandsPath)
	m.systemAlert(alertInfo, "reviewpanel.started", "Review panel started", map[string]any{"endpoint": cfg.endpoint})
	return m
}

func (m appModel) Init() tea.Cmd {
	return tickCmd()
}

func (m appModel) clock() time.Time {
	if m.cfg.now != nil {
		return m.cfg.now()
	}
	return time.Now()
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return t })
}

func frameCmd(surface, gen uint64, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return frameMsg{surface: surface, gen: gen, at: t} })
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch t := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = t.Width
		m.height = t.Height
		m = m.layout()
		return m, nil
	case time.Time:
		return m.onTick(t)
	case busWakeMsg:
		return m.consumeCommandBus()
	case surfaceOpenedMsg:
		return m.openPanel(t)
	case surfaceRevealMsg:
		if m.panel != nil && m.panel.id == t.id {
			m.emitEvent("ui.panel.reveal", "host", map[string]any{"surface": t.id}, "", "")
		}
		return m, nil
	case surfaceMsg:
		return m.receive(t)
	case frameMsg:
		return m.onFrame(t)
	case toastMsg:
		m = m.showToast(t.text)
		m.systemAlert(alertWarn, "editor.notice", t.text, nil)
		return m, nil
	case clipboardResultMsg:
		return m.onClipboard(t)
	case spinner.TickMsg:
		if m.panel == nil || !m.panel.state.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.panel.spin, cmd = m.panel.spin.Update(t)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(t)
	default:
		if m.panel != nil && m.panel.state.Tab == panel.TabCode {
			var cmd tea.Cmd
			m.panel.editor, cmd = m.panel.editor.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

func (m appModel) onTick(now time.Time) (tea.Model, tea.Cmd) {
	m.now = now
	if m.toast != "" && !now.Before(m.toastUntil) {
		m.toast = ""
	}
	next, cmd := m.consumeCommandBus()
	if am, ok := next.(appModel); ok {
		m = am
	}
	if m.quitRequested {
		return m, cmd
	}
	return m, tea.Batch(cmd, tickCmd())
}

func (m appModel) openPanel(t surfaceOpenedMsg) (tea.Model, tea.Cmd) {
	ed := textarea.New()
	ed.ShowLineNumbers = true
	ed.CharLimit = 0
	ed.MaxHeight = 0
	ed.Placeholder = "Paste or type code to analyze…"
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = m.th.Accent

	m.panel = &surfacePanel{
		id:      t.id,
		dispose: t.dispose,
		state:   panel.New(m.model, score.NewAnimation(m.cfg.animDuration, m.cfg.animFrame)),
		editor:  ed,
		result:  viewport.New(0, 0),
		spin:    sp,
	}
	m = m.layout()
	m.emitEvent("ui.panel.open", "host", map[string]any{"surface": t.id, "model": m.model}, "", "")
	return m, m.panel.editor.Focus()
}

func (m appModel) closePanel() appModel {
	if m.panel == nil {
		return m
	}
	id := m.panel.id
	if m.panel.dispose != nil {
		m.panel.dispose()
	}
	m.panel = nil
	m.emitEvent("ui.panel.close", m.actionSource, map[string]any{"surface": id}, "", "")
	return m
}

func (m appModel) receive(t surfaceMsg) (tea.Model, tea.Cmd) {
	if m.panel == nil || m.panel.id != t.id {
		m.log.Debug("dropping message for closed panel", zap.Uint64("surface", t.id), zap.String("type", kindOf(t.msg)))
		return m, nil
	}
	p := m.panel
	eff := p.state.Receive(t.msg, m.clock())
	m.emitEvent("panel.receive", "host", map[string]any{"type": kindOf(t.msg), "phase": p.state.Phase().String()}, "", "")

	var cmds []tea.Cmd
	switch msg := t.msg.(type) {
	case protocol.NewCode:
		p.editor.SetValue(msg.Payload.Code)
		p.result.GotoTop()
	case protocol.AnalyzeProgress:
		cmds = append(cmds, p.spin.Tick)
	case protocol.AnalyzeResult:
		m.analyses++
		p.result.GotoTop()
		m.systemAlert(alertInfo, "review.completed", fmt.Sprintf("Review complete: %s", score.Label(p.state.Target.Overall)), map[string]any{"overall": p.state.Target.Overall})
	case protocol.AnalyzeError:
		m.systemAlert(alertWarn, "review.failed", msg.Message, nil)
	}
	if eff.Animate {
		cmds = append(cmds, frameCmd(p.id, eff.Generation, p.state.FrameInterval()))
	}
	cmds = append(cmds, m.syncFocus())
	m = m.refreshResult()
	return m, tea.Batch(cmds...)
}

func (m appModel) onFrame(t frameMsg) (tea.Model, tea.Cmd) {
	if m.panel == nil || m.panel.id != t.surface {
		return m, nil
	}
	more := m.panel.state.Frame(t.gen, t.at)
	m = m.refreshResult()
	if !more {
		return m, nil
	}
	return m, frameCmd(t.surface, t.gen, m.panel.state.FrameInterval())
}

func (m appModel) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(k, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.currentOverlay() {
	case overlayModelSelect:
		return m.updateModelSelect(k)
	case overlayQuitConfirm:
		return m.updateQuitConfirm(k)
	case overlayAlert:
		if k.Type == tea.KeyEnter || k.Type == tea.KeyEscape {
			m.alertText = ""
			m = m.closeOverlay()
		}
		return m, nil
	case overlayHelp:
		m = m.closeOverlay()
		return m, nil
	}

	switch {
	case key.Matches(k, m.keys.Back):
		m = m.openOverlay(overlayQuitConfirm)
		return m, nil
	case key.Matches(k, m.keys.Model):
		m.modelSelectIndex = 0
		for i, it := range m.cfg.models {
			if it == m.currentModel() {
				m.modelSelectIndex = i
			}
		}
		m = m.openOverlay(overlayModelSelect)
		return m, nil
	case key.Matches(k, m.keys.Recapture):
		return m.trigger()
	}

	if m.panel == nil {
		return m.updateHome(k)
	}
	return m.updatePanel(k)
}

func (m appModel) updateHome(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(k, m.keys.Trigger):
		return m.trigger()
	case key.Matches(k, m.keys.Help):
		m = m.openOverlay(overlayHelp)
	case k.String() == "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m appModel) updatePanel(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.panel
	switch {
	case key.Matches(k, m.keys.Submit):
		return m.submit()
	case key.Matches(k, m.keys.FullDoc):
		msg := p.state.RequestFullDocument()
		m.recordCommand("analyze.document")
		m.deliver(msg)
		return m, nil
	case key.Matches(k, m.keys.Copy):
		return m.copy()
	case key.Matches(k, m.keys.Switch):
		p.state.ToggleTab()
		m.emitEvent("ui.tab", m.actionSource, map[string]any{"tab": p.state.Tab.String()}, "", "")
		return m, m.syncFocus()
	case key.Matches(k, m.keys.ClosePane):
		m = m.closePanel()
		return m, nil
	}

	var cmd tea.Cmd
	if p.state.Tab == panel.TabCode {
		before := p.editor.Value()
		p.editor, cmd = p.editor.Update(k)
		if v := p.editor.Value(); v != before {
			p.state.SetCode(v)
		}
		return m, cmd
	}
	if key.Matches(k, m.keys.Help) {
		m = m.openOverlay(overlayHelp)
		return m, nil
	}
	p.result, cmd = p.result.Update(k)
	return m, cmd
}

func (m appModel) trigger() (tea.Model, tea.Cmd) {
	m.recordCommand("analyze.trigger")
	m.emitEvent("editor.trigger", m.actionSource, map[string]any{"file": m.workspacePath()}, "", "")
	if m.link != nil {
		m.link.Trigger()
	}
	return m, nil
}

func (m appModel) submit() (tea.Model, tea.Cmd) {
	p := m.panel
	msg, ok := p.state.Submit()
	if !ok {
		m.emitEvent("analyze.rejected", m.actionSource, map[string]any{"status": p.state.Status, "modelError": p.state.ModelError}, "", "")
		m = m.refreshResult()
		return m, nil
	}
	m.recordCommand("analyze.submit")
	m.deliver(msg)
	m = m.refreshResult()
	return m, tea.Batch(p.spin.Tick, m.syncFocus())
}

func (m appModel) deliver(msg protocol.Message) {
	m.emitEvent("panel.send", m.actionSource, map[string]any{"type": kindOf(msg)}, "", "")
	if m.link != nil {
		m.link.Deliver(msg)
	}
}

func (m appModel) copy() (tea.Model, tea.Cmd) {
	p := m.panel
	what, text := "code", p.state.Code
	if p.state.Tab == panel.TabResult {
		what, text = "review", p.state.ReviewText()
	}
	if strings.TrimSpace(text) == "" {
		m = m.showToast("Nothing to copy")
		return m, nil
	}
	cb := m.clipboard
	return m, func() tea.Msg {
		return clipboardResultMsg{what: what, err: cb.WriteText(text)}
	}
}

func (m appModel) onClipboard(t clipboardResultMsg) (tea.Model, tea.Cmd) {
	if t.err != nil {
		m.alertText = fmt.Sprintf("Copy failed: %v", t.err)
		m.systemAlert(alertError, "clipboard.failed", m.alertText, map[string]any{"what": t.what})
		m = m.openOverlay(overlayAlert)
		return m, nil
	}
	m = m.showToast(fmt.Sprintf("Copied %s to clipboard", t.what))
	return m, nil
}

func (m appModel) updateModelSelect(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.cfg.models
	if len(items) == 0 {
		m = m.closeAllOverlays()
		return m, nil
	}
	if m.modelSelectIndex >= len(items) {
		m.modelSelectIndex = len(items) - 1
	}

	switch k.Type {
	case tea.KeyUp:
		if m.modelSelectIndex > 0 {
			m.modelSelectIndex--
		}
	case tea.KeyDown:
		if m.modelSelectIndex < len(items)-1 {
			m.modelSelectIndex++
		}
	case tea.KeyEnter:
		m = m.selectModel(items[m.modelSelectIndex])
		m = m.closeAllOverlays()
	case tea.KeyEscape:
		m = m.closeOverlay()
	}
	return m, nil
}

func (m appModel) selectModel(model string) appModel {
	m.model = strings.TrimSpace(model)
	if m.panel != nil {
		m.panel.state.SelectModel(m.model)
		m = m.refreshResult()
	}
	m.systemAlert(alertInfo, "model.set", fmt.Sprintf("Model set to %s", m.model), map[string]any{"model": m.model})
	return m
}

func (m appModel) currentModel() string {
	if m.panel != nil {
		return m.panel.state.Model
	}
	return m.model
}

func (m appModel) updateQuitConfirm(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.Type {
	case tea.KeyEnter:
		m.recordCommand("quit.confirm")
		return m, tea.Quit
	case tea.KeyEscape:
		m = m.closeOverlay()
	case tea.KeyRunes:
		switch string(k.Runes) {
		case "y", "Y":
			m.recordCommand("quit.y")
			return m, tea.Quit
		case "n", "N":
			m.recordCommand("quit.n")
			m = m.closeOverlay()
		}
	}
	return m, nil
}

func (m appModel) currentOverlay() overlay {
	if len(m.overlays) == 0 {
		return overlayNone
	}
	return m.overlays[len(m.overlays)-1]
}

func (m appModel) openOverlay(o overlay) appModel {
	m.overlays = append(m.overlays, o)
	m.emitEvent("ui.overlay.open", m.actionSource, map[string]any{"overlay": o.String(), "depth": len(m.overlays)}, "", "")
	return m
}

func (m appModel) closeOverlay() appModel {
	if len(m.overlays) == 0 {
		return m
	}
	popped := m.overlays[len(m.overlays)-1]
	m.overlays = m.overlays[:len(m.overlays)-1]
	m.emitEvent("ui.overlay.close", m.actionSource, map[string]any{"overlay": popped.String(), "depth": len(m.overlays)}, "", "")
	return m
}

func (m appModel) closeAllOverlays() appModel {
	for len(m.overlays) > 0 {
		m = m.closeOverlay()
	}
	return m
}

// syncFocus focuses the code editor only while the code tab is shown.
func (m appModel) syncFocus() tea.Cmd {
	if m.panel == nil {
		return nil
	}
	if m.panel.state.Tab == panel.TabCode {
		return m.panel.editor.Focus()
	}
	m.panel.editor.Blur()
	return nil
}

// layout sizes the editor and result viewport to the window.
func (m appModel) layout() appModel {
	w, h := m.effectiveSize()
	m.help.Width = w
	if m.panel == nil {
		return m
	}
	innerW := max(w-6, 10)
	innerH := max(h-12, 3)
	m.panel.editor.SetWidth(innerW)
	m.panel.editor.SetHeight(innerH)
	m.panel.result.Width = innerW
	m.panel.result.Height = innerH
	return m.refreshResult()
}

func (m appModel) refreshResult() appModel {
	if m.panel == nil {
		return m
	}
	m.panel.result.SetContent(m.renderResultBody(m.panel.result.Width))
	return m
}

func (m appModel) showToast(text string) appModel {
	m.toast = text
	m.toastUntil = m.clock().Add(toastDuration)
	return m
}

func (m *appModel) recordCommand(name string) {
	m.recentCommands = append(m.recentCommands, name)
	if len(m.recentCommands) > 50 {
		m.recentCommands = m.recentCommands[len(m.recentCommands)-50:]
	}
	m.emitEvent("command.submitted", m.actionSource, map[string]any{"text": name}, "", "")
}

func (m appModel) workspacePath() string {
	if m.workspace == nil {
		return ""
	}
	return m.workspace.Path()
}

func (m appModel) emitEvent(eventType string, source string, payload any, correlationID string, causationID string) {
	if m.events == nil {
		return
	}
	m.events.Append(source, eventType, payload, correlationID, causationID)
}

func (m *appModel) systemAlert(sev alertSeverity, code string, message string, context map[string]any) {
	cid := newCorrelationID()
	a := systemAlert{
		At:            m.clock().UTC().Format(time.RFC3339Nano),
		Severity:      sev,
		Code:          code,
		Message:       message,
		Context:       context,
		CorrelationID: cid,
	}
	m.alerts = append(m.alerts, a)
	if len(m.alerts) > 50 {
		m.alerts = m.alerts[len(m.alerts)-50:]
	}
	m.emitEvent("system.alert", "system", a, cid, "")
}

func (m appModel) effectiveSize() (int, int) {
	w := m.width
	h := m.height
	// Smoke runs and headless sessions may never get a WindowSizeMsg.
	if w <= 0 {
		w = 80
	}
	if h <= 0 {
		h = 24
	}
	return w, h
}

func kindOf(msg protocol.Message) string {
	if msg == nil {
		return "<nil>"
	}
	return string(msg.Kind())
}
