package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"reviewpanel/internal/editor"
	"reviewpanel/internal/panel"
	"reviewpanel/internal/protocol"
)

// busCommand is one line of commands.jsonl. An editor integration appends
// these to drive the panel the way editor actions would.
type busCommand struct {
	Version    int    `json:"version"`
	Type       string `json:"type"`
	Path       string `json:"path,omitempty"`
	StartLine  int    `json:"startLine,omitempty"`
	EndLine    int    `json:"endLine,omitempty"`
	Selection  string `json:"selection,omitempty"`
	LanguageID string `json:"languageId,omitempty"`
	Text       string `json:"text,omitempty"`
	Keys       string `json:"keys,omitempty"`
	Source     string `json:"source,omitempty"` // cli|editor|system
	// Message is a raw panel envelope for "deliver".
	Message json.RawMessage `json:"message,omitempty"`
}

func initCommandBus(path string) int64 {
	if strings.TrimSpace(path) == "" {
		return 0
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	st, err := os.Stat(path)
	if err != nil {
		_ = os.WriteFile(path, []byte{}, 0o644)
		return 0
	}
	// Commands written before this session started are not replayed.
	return st.Size()
}

func (m appModel) consumeCommandBus() (tea.Model, tea.Cmd) {
	if strings.TrimSpace(m.commandBusPath) == "" {
		return m, nil
	}
	cmds, newOffset := readBusCommands(m.commandBusPath, m.commandBusOffset)
	m.commandBusOffset = newOffset
	var outCmds []tea.Cmd
	for _, c := range cmds {
		var cmd tea.Cmd
		m, cmd = m.applyBusCommand(c)
		if cmd != nil {
			outCmds = append(outCmds, cmd)
		}
		if m.quitRequested {
			break
		}
	}
	if len(outCmds) == 0 {
		return m, nil
	}
	return m, tea.Batch(outCmds...)
}

func readBusCommands(path string, offset int64) ([]busCommand, int64) {
	f, err := os.Open(path)
	if err != nil {
		return nil, offset
	}
	defer f.Close()

	st, err := f.Stat()
	if err == nil && offset > st.Size() {
		// Truncated; start over.
		offset = 0
	}
	if offset > 0 {
		if _, err := f.Seek(offset, 0); err != nil {
			return nil, offset
		}
	}

	var cmds []busCommand
	reader := bufio.NewReader(f)
	cur := offset
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// A partial last line is read again once it is complete.
			break
		}
		cur += int64(len(line))
		txt := strings.TrimSpace(line)
		if txt == "" {
			continue
		}
		var c busCommand
		if json.Unmarshal([]byte(txt), &c) == nil && c.Version == 1 && strings.TrimSpace(c.Type) != "" {
			cmds = append(cmds, c)
		}
	}
	return cmds, cur
}

func (m appModel) applyBusCommand(c busCommand) (out appModel, cmd tea.Cmd) {
	src := strings.TrimSpace(c.Source)
	if src == "" {
		src = "cli"
	}
	prevSource := m.actionSource
	m.actionSource = src
	defer func() { out.actionSource = prevSource }()

	typ := strings.TrimSpace(strings.ToLower(c.Type))
	m.emitEvent("bus.command", src, c, "", "")

	switch typ {
	case "stop":
		m.systemAlert(alertInfo, "session.stop", "Stop requested", map[string]any{"source": src})
		m = m.closeAllOverlays()
		m.quitRequested = true
		return m, tea.Quit
	case "open":
		if m.workspace == nil {
			return m, nil
		}
		sel := editor.Selection{StartLine: c.StartLine, EndLine: c.EndLine, Text: c.Selection}
		if err := m.workspace.Open(c.Path, sel, c.LanguageID); err != nil {
			m.systemAlert(alertWarn, "editor.open_failed", err.Error(), map[string]any{"path": c.Path})
			return m, nil
		}
		m.systemAlert(alertInfo, "editor.open", "Opened "+m.workspace.Path(), nil)
		return m, nil
	case "select":
		if m.workspace != nil {
			m.workspace.Select(editor.Selection{StartLine: c.StartLine, EndLine: c.EndLine, Text: c.Selection})
		}
		return m, nil
	case "analyze":
		next, tc := m.trigger()
		return next.(appModel), tc
	case "analyze_document":
		if m.panel != nil {
			m.recordCommand("analyze.document")
			m.deliver(m.panel.state.RequestFullDocument())
			return m, nil
		}
		if m.workspace != nil {
			m.workspace.Select(editor.Selection{})
		}
		next, tc := m.trigger()
		return next.(appModel), tc
	case "model":
		model := strings.TrimSpace(c.Text)
		if model == "" {
			return m, nil
		}
		if !slices.Contains(m.cfg.models, model) {
			m.systemAlert(alertWarn, "model.unknown", "Unknown model "+model, map[string]any{"models": m.cfg.models})
			return m, nil
		}
		return m.selectModel(model), nil
	case "close":
		return m.closePanel(), nil
	case "close_editor":
		if m.workspace != nil {
			m.workspace.Close()
			m.systemAlert(alertInfo, "editor.close", "Closed the active document", nil)
		}
		return m, nil
	case "deliver":
		return m.deliverRaw(c.Message), nil
	case "key":
		keys := splitKeys(c.Keys)
		var cmds []tea.Cmd
		for _, k := range keys {
			if m.quitRequested {
				break
			}
			var kc tea.Cmd
			m, kc = m.applySyntheticKey(k)
			if kc != nil {
				cmds = append(cmds, kc)
			}
		}
		if len(cmds) == 0 {
			return m, nil
		}
		return m, tea.Batch(cmds...)
	default:
		m.systemAlert(alertWarn, "command.unknown", "Unknown bus command type", map[string]any{"type": c.Type})
		return m, nil
	}
}

func splitKeys(keys string) []string {
	raw := strings.FieldsFunc(keys, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		s := strings.TrimSpace(t)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

var syntheticKeys = map[string]tea.KeyType{
	"enter":     tea.KeyEnter,
	"esc":       tea.KeyEscape,
	"escape":    tea.KeyEscape,
	"up":        tea.KeyUp,
	"down":      tea.KeyDown,
	"tab":       tea.KeyTab,
	"backspace": tea.KeyBackspace,
	"ctrl+s":    tea.KeyCtrlS,
	"ctrl+o":    tea.KeyCtrlO,
	"ctrl+f":    tea.KeyCtrlF,
	"ctrl+y":    tea.KeyCtrlY,
	"ctrl+w":    tea.KeyCtrlW,
	"ctrl+r":    tea.KeyCtrlR,
}

func (m appModel) applySyntheticKey(token string) (appModel, tea.Cmd) {
	t := strings.TrimSpace(token)
	if t == "" {
		return m, nil
	}

	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(t)}
	if kt, ok := syntheticKeys[strings.ToLower(t)]; ok {
		msg = tea.KeyMsg{Type: kt}
	}

	next, cmd := m.Update(msg)
	if am, ok := next.(appModel); ok {
		m = am
	}
	return m, cmd
}

// deliverRaw forwards an encoded surface message to the controller as if
// the open panel had posted it.
func (m appModel) deliverRaw(raw json.RawMessage) appModel {
	msg, err := protocol.Decode(raw)
	if err != nil {
		m.systemAlert(alertWarn, "command.malformed", err.Error(), nil)
		return m
	}
	if !protocol.FromSurface(msg.Kind()) {
		m.systemAlert(alertWarn, "command.direction", "Only surface messages can be delivered", map[string]any{"type": kindOf(msg)})
		return m
	}
	if m.panel == nil {
		m.systemAlert(alertWarn, "panel.closed", "No panel is open", map[string]any{"type": kindOf(msg)})
		return m
	}
	if _, ok := msg.(protocol.RequestAnalyze); ok {
		st := m.panel.state
		st.Loading = true
		st.IsError = false
		st.ModelError = false
		st.Status = panel.StatusSending
		st.Tab = panel.TabResult
	}
	m.recordCommand("bus.deliver")
	m.deliver(msg)
	return m
}
