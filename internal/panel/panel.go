// Package panel is the display surface state machine: it applies protocol
// messages and user actions to a single DisplayState and derives the
// animated scores shown in the result view.
package panel

import (
	"strings"
	"time"

	"reviewpanel/internal/protocol"
	"reviewpanel/internal/review"
	"reviewpanel/internal/score"
)

// Tab is the active view of the panel.
type Tab int

const (
	TabCode Tab = iota
	TabResult
)

func (t Tab) String() string {
	switch t {
	case TabCode:
		return "code"
	case TabResult:
		return "result"
	default:
		return "unknown"
	}
}

// Phase is the behavioural state derived from the flags in State.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCodeReady
	PhaseSubmitting
	PhaseResultReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCodeReady:
		return "code_ready"
	case PhaseSubmitting:
		return "submitting"
	case PhaseResultReady:
		return "result_ready"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Status lines set by local validation.
const (
	StatusNeedCode  = "Paste code or send a selection from your editor first."
	StatusNeedModel = "Select a model before analyzing."
	StatusSending   = "Sending code for review…"
	StatusDone      = "Review complete."
)

// FlashDuration is how long the highlight cue stays on.
const FlashDuration = 700 * time.Millisecond

// State is the single mutable state of the display surface.
type State struct {
	Payload    protocol.CodePayload
	HasPayload bool
	Code       string
	Tab        Tab
	Model      string
	Loading    bool
	IsError    bool
	ModelError bool
	Status     string
	NewResult  bool
	FlashUntil time.Time

	Target    score.Set
	Displayed score.Set

	result    any
	hasResult bool
	anim      score.Animation
}

// New returns an idle state. model preselects a model and may be empty.
func New(model string, anim score.Animation) *State {
	return &State{Model: model, anim: anim}
}

// Effect tells the renderer what follow-up work a transition needs.
type Effect struct {
	// Animate is set when a new score animation started; frames must be
	// scheduled with Generation.
	Animate    bool
	Generation uint64
}

// Result returns the raw result and whether one is present.
func (s *State) Result() (any, bool) {
	return s.result, s.hasResult
}

// Phase derives the behavioural state.
func (s *State) Phase() Phase {
	switch {
	case s.Loading:
		return PhaseSubmitting
	case s.hasResult:
		return PhaseResultReady
	case s.IsError:
		return PhaseError
	case s.HasPayload || strings.TrimSpace(s.Code) != "":
		return PhaseCodeReady
	default:
		return PhaseIdle
	}
}

// Flashing reports whether the highlight cue is on at now.
func (s *State) Flashing(now time.Time) bool {
	return !s.FlashUntil.IsZero() && now.Before(s.FlashUntil)
}

// Receive applies a message from the controller. Unknown messages are
// ignored. A late result or error for a superseded request is applied like
// any other; requests are not tracked.
func (s *State) Receive(msg protocol.Message, now time.Time) Effect {
	switch t := msg.(type) {
	case protocol.NewCode:
		s.Payload = t.Payload
		s.HasPayload = true
		s.Code = t.Payload.Code
		s.Tab = TabCode
		s.Loading = false
		s.IsError = false
		s.ModelError = false
		s.Status = ""
		s.NewResult = false
		s.FlashUntil = now.Add(FlashDuration)
		s.clearResult()
	case protocol.AnalyzeProgress:
		s.Status = t.Status
		s.Tab = TabResult
	case protocol.AnalyzeResult:
		s.Loading = false
		s.IsError = false
		s.ModelError = false
		s.Status = StatusDone
		s.NewResult = true
		s.FlashUntil = now.Add(FlashDuration)
		s.result = t.Result
		s.hasResult = true
		s.Target = score.FromResult(t.Result)
		s.Displayed = score.Set{}
		gen := s.anim.Start(score.Set{}, s.Target, now)
		return Effect{Animate: true, Generation: gen}
	case protocol.AnalyzeError:
		s.Loading = false
		s.IsError = true
		s.Status = t.Message
		s.NewResult = false
		s.clearResult()
	}
	return Effect{}
}

func (s *State) clearResult() {
	s.result = nil
	s.hasResult = false
	s.Target = score.Set{}
	s.Displayed = score.Set{}
	s.anim.Stop()
}

// Submit validates the buffer and model. On success it switches to the
// result view and returns the REQUEST_ANALYZE message to send.
func (s *State) Submit() (protocol.Message, bool) {
	if strings.TrimSpace(s.Code) == "" {
		s.Status = StatusNeedCode
		return nil, false
	}
	if strings.TrimSpace(s.Model) == "" {
		s.ModelError = true
		s.IsError = true
		s.Status = StatusNeedModel
		return nil, false
	}
	s.Loading = true
	s.IsError = false
	s.ModelError = false
	s.Status = StatusSending
	s.Tab = TabResult
	return protocol.RequestAnalyze{Request: protocol.AnalyzeRequest{
		Code:       s.Code,
		FilePath:   s.Payload.FilePath,
		LanguageID: s.Payload.LanguageID,
		Model:      s.Model,
	}}, true
}

// RequestFullDocument returns the message asking the controller to resend
// the whole active document.
func (s *State) RequestFullDocument() protocol.Message {
	s.Status = "Requesting the full document…"
	return protocol.RequestFullDocument{}
}

// SelectModel sets the model and clears a model-selection error.
func (s *State) SelectModel(model string) {
	s.Model = strings.TrimSpace(model)
	if s.ModelError && s.Model != "" {
		s.ModelError = false
		s.IsError = false
		s.Status = ""
	}
}

// SetCode replaces the buffer after a user edit.
func (s *State) SetCode(code string) {
	s.Code = code
}

// SetTab switches views. Opening the result view acknowledges a new result.
func (s *State) SetTab(t Tab) {
	s.Tab = t
	if t == TabResult {
		s.NewResult = false
	}
}

// ToggleTab switches between the code and result views.
func (s *State) ToggleTab() {
	if s.Tab == TabCode {
		s.SetTab(TabResult)
		return
	}
	s.SetTab(TabCode)
}

// Frame applies one animation frame. It returns false when the frame is
// stale or the animation is over, in which case no more frames are needed.
func (s *State) Frame(gen uint64, now time.Time) (more bool) {
	set, done, ok := s.anim.Sample(gen, now)
	if !ok {
		return false
	}
	s.Displayed = set
	return !done
}

// Generation identifies the latest score animation.
func (s *State) Generation() uint64 {
	return s.anim.Generation()
}

// FrameInterval is the animation sampling interval.
func (s *State) FrameInterval() time.Duration {
	return s.anim.Frame
}

// ReviewText is the narrative review of the current result.
func (s *State) ReviewText() string {
	if !s.hasResult {
		return ""
	}
	return review.Summary(s.result)
}

// Label is the qualitative label of the displayed overall score.
func (s *State) Label() string {
	return score.Label(s.Displayed.Overall)
}
