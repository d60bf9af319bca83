package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"reviewpanel/internal/editor"
	"reviewpanel/internal/host"
	"reviewpanel/internal/panel"
	"reviewpanel/internal/protocol"
	"reviewpanel/internal/review"
	"reviewpanel/internal/score"
)

var testStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type mockClipboard struct {
	mu       sync.Mutex
	lastText string
	err      error
}

func (m *mockClipboard) WriteText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.lastText = text
	return nil
}

type fakeReviewer struct {
	mu     sync.Mutex
	result any
	err    error
	reqs   []review.Request
}

func (f *fakeReviewer) Review(_ context.Context, r review.Request) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, r)
	return f.result, f.err
}

func (f *fakeReviewer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type testEnv struct {
	h      *harness
	ws     *editor.Workspace
	clip   *mockClipboard
	ctl    *host.Controller
	events *observer.ObservedLogs
}

func newTestEnv(t *testing.T, rv host.Reviewer, mutate ...func(*appConfig)) *testEnv {
	t.Helper()
	cfg := appConfig{
		sessionID:     "sess_test",
		version:       "test",
		endpoint:      "http://review.test",
		models:        []string{"gpt-4.1-mini", "gpt-4.1"},
		animDuration:  600 * time.Millisecond,
		animFrame:     16 * time.Millisecond,
		markdownStyle: "notty",
		wordWrap:      80,
		plain:         true,
		now:           func() time.Time { return testStart },
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	queue := &msgQueue{}
	ws := editor.NewWorkspace(func(msg string) { queue.Send(toastMsg{text: msg}) })
	ctl := host.NewController(ws, host.NewRegistry(surfaceFactory(queue)), rv)
	core, logs := observer.New(zap.DebugLevel)
	clip := &mockClipboard{}
	m := newAppModel(cfg, appDeps{
		link:      syncLink{ctx: context.Background(), ctl: ctl},
		workspace: ws,
		clipboard: clip,
		events:    newEventLoggerWithCore("", core),
	})
	return &testEnv{h: &harness{model: m, queue: queue}, ws: ws, clip: clip, ctl: ctl, events: logs}
}

func writeSource(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

// runCmd executes cmd and feeds its message back, as the runtime would.
func (e *testEnv) runCmd(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		e.h.send(msg)
	}
}

func reviewResult() map[string]any {
	return map[string]any{
		"quality_score": 0.8,
		"scores_by_category": map[string]any{
			"bug":             90,
			"maintainability": 0.5,
			"style":           70,
			"security":        100,
		},
		"review_summary": "Looks fine.",
	}
}

func TestTriggerOpensPanelWithSelection(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})
	path := writeSource(t, "calc.py", "def add(a, b):\n    return a + b\n\nprint(add(1, 2))\n")
	require.NoError(t, env.ws.Open(path, editor.Selection{StartLine: 1, EndLine: 2}, ""))

	env.h.runes("a")

	am := env.h.app()
	require.NotNil(t, am.panel)
	st := am.panel.state
	assert.Equal(t, "def add(a, b):\n    return a + b", st.Code)
	assert.Equal(t, "python", st.Payload.LanguageID)
	assert.Equal(t, protocol.ModeSelection, st.Payload.Mode)
	assert.Equal(t, panel.TabCode, st.Tab)
	assert.Equal(t, st.Code, am.panel.editor.Value())
	assert.True(t, st.Flashing(testStart))
	assert.Equal(t, []string{"analyze.trigger"}, am.recentCommands)
}

func TestTriggerWithoutEditorShowsToast(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})

	env.h.runes("a")

	am := env.h.app()
	assert.Nil(t, am.panel)
	assert.Equal(t, host.MsgNoEditor, am.toast)
	assert.Contains(t, am.View(), host.MsgNoEditor)
}

func TestToastExpiresOnTick(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})
	env.h.runes("a")
	require.NotEmpty(t, env.h.app().toast)

	env.h.send(testStart.Add(time.Second))
	assert.NotEmpty(t, env.h.app().toast)

	env.h.send(testStart.Add(toastDuration))
	assert.Empty(t, env.h.app().toast)
}

func TestSubmitWithoutModelIsRejected(t *testing.T) {
	rv := &fakeReviewer{result: reviewResult()}
	env := newTestEnv(t, rv)
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", "x = 1\n"), editor.Selection{}, ""))
	env.h.runes("a")

	env.h.key(tea.KeyCtrlS)

	st := env.h.app().panel.state
	assert.True(t, st.ModelError)
	assert.Equal(t, panel.StatusNeedModel, st.Status)
	assert.Zero(t, rv.calls())

	// Picking a model clears the error.
	env.h.key(tea.KeyCtrlO)
	assert.Equal(t, overlayModelSelect, env.h.app().currentOverlay())
	env.h.key(tea.KeyDown)
	env.h.key(tea.KeyEnter)

	am := env.h.app()
	assert.Equal(t, overlayNone, am.currentOverlay())
	assert.Equal(t, "gpt-4.1", am.currentModel())
	assert.False(t, am.panel.state.ModelError)
	assert.False(t, am.panel.state.IsError)
}

func TestSubmitShowsResultAndAnimatesScores(t *testing.T) {
	rv := &fakeReviewer{result: reviewResult()}
	env := newTestEnv(t, rv, func(c *appConfig) { c.defaultModel = "gpt-4.1-mini" })
	path := writeSource(t, "a.py", "x = 1\n")
	require.NoError(t, env.ws.Open(path, editor.Selection{}, ""))
	env.h.runes("a")

	env.h.key(tea.KeyCtrlS)

	require.Equal(t, 1, rv.calls())
	assert.Equal(t, review.Request{
		CodeSnippet: "x = 1\n",
		Language:    "python",
		FilePath:    env.ws.Path(),
		Model:       "gpt-4.1-mini",
	}, rv.reqs[0])

	am := env.h.app()
	st := am.panel.state
	assert.Equal(t, panel.PhaseResultReady, st.Phase())
	assert.Equal(t, panel.TabResult, st.Tab)
	assert.Equal(t, score.Set{}, st.Displayed)
	assert.Equal(t, 1, am.analyses)

	env.h.settle(testStart.Add(time.Hour))

	st = env.h.app().panel.state
	assert.Equal(t, score.Set{Overall: 80, Bug: 90, Maintainability: 50, Style: 70, Security: 100}, st.Displayed)
	assert.Equal(t, "Good", st.Label())

	env.h.send(tea.WindowSizeMsg{Width: 120, Height: 80})
	view := env.h.app().View()
	assert.Contains(t, view, "Good")
	assert.Contains(t, view, "Looks fine.")
	assert.Contains(t, view, "quality_score: 0.8")
}

func TestStaleFrameIsIgnored(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{result: reviewResult()}, func(c *appConfig) { c.defaultModel = "gpt-4.1" })
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", "x = 1\n"), editor.Selection{}, ""))
	env.h.runes("a")
	env.h.key(tea.KeyCtrlS)

	am := env.h.app()
	gen := am.panel.state.Generation()
	env.h.send(frameMsg{surface: am.panel.id, gen: gen + 1, at: testStart.Add(time.Hour)})

	assert.Equal(t, score.Set{}, env.h.app().panel.state.Displayed)
}

func TestFrameFromClosedPanelIsIgnored(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{result: reviewResult()}, func(c *appConfig) { c.defaultModel = "gpt-4.1" })
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", "x = 1\n"), editor.Selection{}, ""))
	env.h.runes("a")
	env.h.key(tea.KeyCtrlS)
	old := env.h.app().panel
	oldGen := old.state.Generation()

	env.h.key(tea.KeyCtrlW)
	env.h.runes("a")
	env.h.key(tea.KeyCtrlS)
	am := env.h.app()
	require.NotEqual(t, old.id, am.panel.id)
	require.Equal(t, oldGen, am.panel.state.Generation(), "generations restart per panel")

	env.h.send(frameMsg{surface: old.id, gen: oldGen, at: testStart.Add(time.Hour)})
	assert.Equal(t, score.Set{}, env.h.app().panel.state.Displayed)

	env.h.settle(testStart.Add(time.Hour))
	assert.Equal(t, 80, env.h.app().panel.state.Displayed.Overall)
}

func TestServerErrorShowsStatus(t *testing.T) {
	rv := &fakeReviewer{err: &review.StatusError{StatusCode: 500, Body: "internal error"}}
	env := newTestEnv(t, rv, func(c *appConfig) { c.defaultModel = "gpt-4.1" })
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", "x = 1\n"), editor.Selection{}, ""))
	env.h.runes("a")

	env.h.key(tea.KeyCtrlS)

	am := env.h.app()
	st := am.panel.state
	assert.Equal(t, panel.PhaseError, st.Phase())
	assert.Equal(t, "Review service error (HTTP 500): internal error", st.Status)
	assert.False(t, st.Loading)
	assert.Contains(t, am.View(), "HTTP 500")
	require.NotEmpty(t, am.alerts)
	assert.Equal(t, "review.failed", am.alerts[len(am.alerts)-1].Code)
}

func TestFullDocumentReplacesSelection(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})
	text := "a = 1\nb = 2\n"
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", text), editor.Selection{StartLine: 2, EndLine: 2}, ""))
	env.h.runes("a")
	require.Equal(t, "b = 2", env.h.app().panel.state.Code)

	env.h.key(tea.KeyCtrlF)

	am := env.h.app()
	assert.Equal(t, text, am.panel.state.Code)
	assert.Equal(t, protocol.ModeDocument, am.panel.state.Payload.Mode)
	assert.Equal(t, text, am.panel.editor.Value())
}

func TestTypingEditsCode(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", "x = 1"), editor.Selection{}, ""))
	env.h.runes("a")

	env.h.runes("2")

	assert.Equal(t, "x = 12", env.h.app().panel.state.Code)
}

func TestClosedPanelDropsLateMessages(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", "x = 1\n"), editor.Selection{}, ""))
	env.h.runes("a")
	first := env.h.app().panel.id

	env.h.key(tea.KeyCtrlW)
	require.Nil(t, env.h.app().panel)

	env.h.send(surfaceMsg{id: first, msg: protocol.AnalyzeResult{Result: reviewResult()}})
	assert.Nil(t, env.h.app().panel)

	env.h.runes("a")
	am := env.h.app()
	require.NotNil(t, am.panel)
	assert.NotEqual(t, first, am.panel.id)

	env.h.send(surfaceMsg{id: first, msg: protocol.AnalyzeResult{Result: reviewResult()}})
	assert.Equal(t, panel.PhaseCodeReady, env.h.app().panel.state.Phase())
}

func TestConcurrentTriggersOpenOnePanel(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", "x = 1\n"), editor.Selection{}, ""))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.ctl.TriggerAnalysis()
		}()
	}
	wg.Wait()
	env.h.send()

	assert.Equal(t, 1, env.events.FilterMessage("ui.panel.open").Len())
	am := env.h.app()
	require.NotNil(t, am.panel)
	assert.Equal(t, "x = 1\n", am.panel.state.Code)

	// The panel can still be closed and recreated.
	env.h.key(tea.KeyCtrlW)
	require.Nil(t, env.h.app().panel)
	env.h.runes("a")
	am = env.h.app()
	require.NotNil(t, am.panel)
	assert.Equal(t, "x = 1\n", am.panel.state.Code)
}

func TestModelCarriesIntoNewPanel(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", "x = 1\n"), editor.Selection{}, ""))

	env.h.key(tea.KeyCtrlO)
	env.h.key(tea.KeyDown)
	env.h.key(tea.KeyEnter)
	env.h.runes("a")

	assert.Equal(t, "gpt-4.1", env.h.app().panel.state.Model)
}

func TestCopyCode(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", "x = 1\n"), editor.Selection{}, ""))
	env.h.runes("a")

	_, cmd := env.h.model.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	env.runCmd(cmd)

	assert.Equal(t, "x = 1\n", env.clip.lastText)
	assert.Equal(t, "Copied code to clipboard", env.h.app().toast)
}

func TestCopyFailureOpensAlert(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})
	env.clip.err = errors.New("no clipboard utility")
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", "x = 1\n"), editor.Selection{}, ""))
	env.h.runes("a")

	_, cmd := env.h.model.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	env.runCmd(cmd)

	am := env.h.app()
	assert.Equal(t, overlayAlert, am.currentOverlay())
	assert.Equal(t, "Copy failed: no clipboard utility", am.alertText)
	assert.Contains(t, am.View(), "no clipboard utility")

	env.h.key(tea.KeyEnter)
	assert.Equal(t, overlayNone, env.h.app().currentOverlay())
}

func TestCopyEmptyReview(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", "x = 1\n"), editor.Selection{}, ""))
	env.h.runes("a")
	env.h.key(tea.KeyTab)

	_, cmd := env.h.model.Update(tea.KeyMsg{Type: tea.KeyCtrlY})

	assert.Nil(t, cmd)
	assert.Empty(t, env.clip.lastText)
}

func TestQuitConfirm(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})

	env.h.key(tea.KeyEscape)
	assert.Equal(t, overlayQuitConfirm, env.h.app().currentOverlay())
	assert.Contains(t, env.h.app().View(), "QUIT REVIEW PANEL?")

	env.h.runes("n")
	assert.Equal(t, overlayNone, env.h.app().currentOverlay())

	env.h.key(tea.KeyEscape)
	_, cmd := env.h.model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestPanelEventsAreRecorded(t *testing.T) {
	env := newTestEnv(t, &fakeReviewer{})
	require.NoError(t, env.ws.Open(writeSource(t, "a.py", "x = 1\n"), editor.Selection{}, ""))

	env.h.runes("a")

	assert.Equal(t, 1, env.events.FilterMessage("ui.panel.open").Len())
	received := env.events.FilterMessage("panel.receive").All()
	require.Len(t, received, 1)
	payload, ok := received[0].ContextMap()["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(protocol.KindNewCode), payload["type"])
}

func TestSmokeRun(t *testing.T) {
	env := newTestEnv(t, cannedReviewer{})
	require.NoError(t, env.ws.Open(writeSource(t, "sample.py", smokeSample), editor.Selection{StartLine: 1, EndLine: 2}, ""))
	am := env.h.app()

	report := runSmoke(am, env.h.queue, testStart)

	assert.Contains(t, report.json, `"ok":true`)
	assert.Contains(t, report.json, `"modelErrorShown":true`)
	assert.Contains(t, report.json, `"selectedModel":"gpt-4.1"`)
	assert.Contains(t, report.view, "Good")
	assert.Equal(t, overlayNone, report.final.currentOverlay())
}
