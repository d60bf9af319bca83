package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// sessionSummary builds the summary.json document for m.
func sessionSummary(m appModel) map[string]any {
	alerts := m.alerts
	if len(alerts) > 10 {
		alerts = alerts[len(alerts)-10:]
	}
	cmds := m.recentCommands
	if len(cmds) > 10 {
		cmds = cmds[len(cmds)-10:]
	}

	out := map[string]any{
		"version":        1,
		"updatedAt":      m.clock().UTC().Format(time.RFC3339Nano),
		"sessionId":      m.sessionID,
		"endpoint":       m.cfg.endpoint,
		"overlay":        m.currentOverlay().String(),
		"selectedModel":  m.currentModel(),
		"activeFile":     m.workspacePath(),
		"panelOpen":      m.panel != nil,
		"analyses":       m.analyses,
		"recentAlerts":   alerts,
		"recentCommands": cmds,
		"eventsPath":     filepath.Join(m.cfg.stateDir, m.sessionID, "events.jsonl"),
	}
	if m.panel != nil {
		st := m.panel.state
		out["phase"] = st.Phase().String()
		out["tab"] = st.Tab.String()
		out["status"] = st.Status
		out["scores"] = st.Displayed
		out["label"] = st.Label()
	}
	return out
}

func writeSessionSummary(m appModel) {
	if m.cfg.stateDir == "" || m.sessionID == "" {
		return
	}
	dir := filepath.Join(m.cfg.stateDir, m.sessionID)
	_ = os.MkdirAll(dir, 0o755)

	b, err := json.MarshalIndent(sessionSummary(m), "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(dir, "summary.json"), append(b, '\n'), 0o644)
}
