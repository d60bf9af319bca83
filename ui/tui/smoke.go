package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"reviewpanel/internal/editor"
	"reviewpanel/internal/host"
	"reviewpanel/internal/panel"
	"reviewpanel/internal/review"
)

const smokeSample = "def add(a, b):\n    return a + b\n\n\ndef sub(a, b):\n    return a - b\n"

// cannedReviewer answers without the network.
type cannedReviewer struct{}

func (cannedReviewer) Review(_ context.Context, r review.Request) (any, error) {
	return map[string]any{
		"quality_score": 0.8,
		"scores_by_category": map[string]any{
			"bug":             90,
			"maintainability": 0.5,
			"style":           70,
			"security":        100,
		},
		"review_summary": fmt.Sprintf("Looks fine. `%s` is small and readable.", filepath.Base(r.FilePath)),
	}, nil
}

type smokeReport struct {
	view  string
	json  string
	final appModel
}

// harness drives a model synchronously: controller replies land in the
// queue and are fed back through Update.
type harness struct {
	model tea.Model
	queue *msgQueue
}

func (h *harness) send(msgs ...tea.Msg) {
	for _, msg := range msgs {
		h.model, _ = h.model.Update(msg)
	}
	for {
		pending := h.queue.drain()
		if len(pending) == 0 {
			return
		}
		for _, msg := range pending {
			h.model, _ = h.model.Update(msg)
		}
	}
}

func (h *harness) key(k tea.KeyType) {
	h.send(tea.KeyMsg{Type: k})
}

func (h *harness) runes(s string) {
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *harness) app() appModel {
	am, _ := h.model.(appModel)
	return am
}

// settle runs the score animation to its end.
func (h *harness) settle(at time.Time) {
	am := h.app()
	if am.panel == nil {
		return
	}
	h.send(frameMsg{surface: am.panel.id, gen: am.panel.state.Generation(), at: at})
}

func runSmokeCommand(ctx context.Context, out io.Writer, appCfg appConfig, reviewer host.Reviewer, events *eventLogger) error {
	outDir := os.Getenv("REVIEWPANEL_SMOKE_OUT_DIR")
	if strings.TrimSpace(outDir) == "" {
		outDir = filepath.Join(appCfg.stateDir, "verify", "tui", fmt.Sprintf("run_%d", time.Now().UnixMilli()))
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	sample := filepath.Join(outDir, "sample.py")
	if err := os.WriteFile(sample, []byte(smokeSample), 0o644); err != nil {
		return err
	}

	appCfg.plain = true
	appCfg.markdownStyle = "notty"
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	appCfg.now = func() time.Time { return start }

	queue := &msgQueue{}
	ws := editor.NewWorkspace(func(msg string) { queue.Send(toastMsg{text: msg}) })
	if err := ws.Open(sample, editor.Selection{StartLine: 1, EndLine: 2}, ""); err != nil {
		return err
	}
	ctl := host.NewController(ws, host.NewRegistry(surfaceFactory(queue)), reviewer,
		host.WithLogger(logger),
		host.WithTrace(events.traceProtocol),
	)
	m := newAppModel(appCfg, appDeps{
		link:      syncLink{ctx: ctx, ctl: ctl},
		workspace: ws,
		log:       logger,
		events:    events,
	})

	report := runSmoke(m, queue, start)
	_ = os.WriteFile(filepath.Join(outDir, "view.txt"), []byte(report.view+"\n"), 0o644)
	_ = os.WriteFile(filepath.Join(outDir, "summary.json"), []byte(report.json+"\n"), 0o644)
	writeSessionSummary(report.final)
	fmt.Fprintln(out, "tui-smoke-ok")
	return nil
}

func runSmoke(m appModel, queue *msgQueue, start time.Time) smokeReport {
	h := &harness{model: m, queue: queue}

	panelOpened := false
	codeReceived := false
	modelErrorShown := false
	modelSelectOpened := false
	selectedModel := ""
	resultReady := false
	tabToggled := false
	quitConfirmOpened := false

	// Editor action: selection of lines 1-2.
	h.runes("a")
	if am := h.app(); am.panel != nil {
		panelOpened = true
		codeReceived = strings.HasPrefix(am.panel.state.Code, "def add")
	}

	// Submitting without a model is rejected locally.
	if h.app().currentModel() == "" {
		h.key(tea.KeyCtrlS)
		if am := h.app(); am.panel != nil {
			modelErrorShown = am.panel.state.ModelError
		}
	}

	h.key(tea.KeyCtrlO)
	modelSelectOpened = h.app().currentOverlay() == overlayModelSelect
	h.key(tea.KeyDown)
	h.key(tea.KeyEnter)
	selectedModel = h.app().currentModel()

	h.key(tea.KeyCtrlS)
	h.settle(start.Add(time.Hour))
	am := h.app()
	if am.panel != nil {
		resultReady = am.panel.state.Phase() == panel.PhaseResultReady
	}
	resultView := am.View()

	h.key(tea.KeyTab)
	if am := h.app(); am.panel != nil {
		tabToggled = am.panel.state.Tab == panel.TabCode
	}
	h.key(tea.KeyTab)

	h.key(tea.KeyEscape)
	quitConfirmOpened = h.app().currentOverlay() == overlayQuitConfirm
	h.runes("n")

	final := h.app()
	summary := map[string]any{
		"version":           1,
		"ok":                panelOpened && codeReceived && resultReady,
		"sessionId":         final.sessionID,
		"panelOpened":       panelOpened,
		"codeReceived":      codeReceived,
		"modelErrorShown":   modelErrorShown,
		"modelSelectOpened": modelSelectOpened,
		"selectedModel":     selectedModel,
		"resultReady":       resultReady,
		"tabToggled":        tabToggled,
		"quitConfirmOpened": quitConfirmOpened,
		"overlay":           final.currentOverlay().String(),
	}
	if final.panel != nil {
		summary["scores"] = final.panel.state.Displayed
		summary["label"] = final.panel.state.Label()
	}
	b, _ := json.Marshal(summary)

	return smokeReport{view: resultView, json: string(b), final: final}
}
