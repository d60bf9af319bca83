// Package host is the controller side of the review panel: it reads code
// from the editor, owns the single display surface, and relays analysis
// requests to the review service.
package host

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"reviewpanel/internal/editor"
	"reviewpanel/internal/protocol"
	"reviewpanel/internal/review"
)

// User-facing messages.
const (
	MsgNoEditor       = "No active editor. Open a file to analyze."
	MsgBlankSelection = "Nothing to analyze: the selection and document are empty."
	MsgBlankCode      = "No code to analyze."
	MsgNoDocument     = "No active editor to read the full document from."
	MsgBlankDocument  = "The active document is empty."
	MsgUnexpected     = "Unexpected error while contacting the review service."
)

// Reviewer performs one review call.
type Reviewer interface {
	Review(ctx context.Context, r review.Request) (any, error)
}

// Direction of a traced message.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Controller relays between the editor, the surface and the review service.
type Controller struct {
	editor   editor.Editor
	panels   *Registry
	reviewer Reviewer
	log      *zap.Logger
	trace    func(Direction, protocol.Message)

	wg sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTrace observes every message the controller receives or posts.
func WithTrace(fn func(Direction, protocol.Message)) Option {
	return func(c *Controller) { c.trace = fn }
}

// NewController wires a controller.
func NewController(ed editor.Editor, panels *Registry, reviewer Reviewer, opts ...Option) *Controller {
	c := &Controller{
		editor:   ed,
		panels:   panels,
		reviewer: reviewer,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TriggerAnalysis captures the selection (or the whole document when the
// selection is empty) and sends it to the surface, creating the surface on
// first use. It reports whether NEW_CODE was sent.
func (c *Controller) TriggerAnalysis() bool {
	doc, ok := c.editor.ActiveDocument()
	if !ok {
		c.log.Info("trigger without active editor")
		c.editor.ShowError(MsgNoEditor)
		return false
	}

	code := doc.SelectedText()
	mode := protocol.ModeSelection
	if strings.TrimSpace(code) == "" {
		code = doc.FullText()
		mode = protocol.ModeDocument
	}
	if strings.TrimSpace(code) == "" {
		c.log.Info("trigger with blank input", zap.String("file", doc.FilePath()))
		c.editor.ShowError(MsgBlankSelection)
		return false
	}

	surface, created := c.panels.Ensure()
	c.log.Debug("surface ready", zap.Bool("created", created))
	c.send(surface, protocol.NewCode{
		Payload: protocol.NewCodePayload(code, doc.FilePath(), doc.LanguageID(), mode),
	})
	return true
}

// Receive handles a message from the surface without blocking the caller;
// review calls run on their own goroutine.
func (c *Controller) Receive(ctx context.Context, msg protocol.Message) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Handle(ctx, msg)
	}()
}

// Wait blocks until every Receive goroutine has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Handle processes a message from the surface synchronously. Unknown
// kinds are ignored.
func (c *Controller) Handle(ctx context.Context, msg protocol.Message) {
	c.traceMsg(Inbound, msg)
	switch t := msg.(type) {
	case protocol.RequestAnalyze:
		c.analyze(ctx, t.Request)
	case protocol.RequestFullDocument:
		c.fullDocument()
	default:
		c.log.Debug("ignoring message", zap.String("type", kindOf(msg)))
	}
}

func (c *Controller) analyze(ctx context.Context, req protocol.AnalyzeRequest) {
	if strings.TrimSpace(req.Code) == "" {
		c.post(protocol.AnalyzeError{Message: MsgBlankCode})
		return
	}

	status := "Analyzing…"
	if req.Model != "" {
		status = fmt.Sprintf("Analyzing with %s…", req.Model)
	}
	c.post(protocol.AnalyzeProgress{Status: status})

	result, err := c.reviewer.Review(ctx, review.Request{
		CodeSnippet: req.Code,
		Language:    req.LanguageID,
		FilePath:    req.FilePath,
		Model:       req.Model,
	})
	if err != nil {
		c.log.Warn("review failed", zap.Error(err), zap.String("model", req.Model))
		c.post(protocol.AnalyzeError{Message: ErrorMessage(err)})
		return
	}
	c.log.Info("review completed", zap.String("model", req.Model), zap.String("file", req.FilePath))
	c.post(protocol.AnalyzeResult{Result: result})
}

func (c *Controller) fullDocument() {
	doc, ok := c.editor.ActiveDocument()
	if !ok {
		c.post(protocol.AnalyzeError{Message: MsgNoDocument})
		return
	}
	text := doc.FullText()
	if strings.TrimSpace(text) == "" {
		c.post(protocol.AnalyzeError{Message: MsgBlankDocument})
		return
	}
	c.post(protocol.NewCode{
		Payload: protocol.NewCodePayload(text, doc.FilePath(), doc.LanguageID(), protocol.ModeDocument),
	})
}

// ErrorMessage turns a review error into the text shown on the surface.
func ErrorMessage(err error) string {
	if err == nil {
		return MsgUnexpected
	}
	var se *review.StatusError
	if errors.As(err, &se) {
		if strings.TrimSpace(se.Body) == "" {
			return fmt.Sprintf("Review service error (HTTP %d)", se.StatusCode)
		}
		return fmt.Sprintf("Review service error (HTTP %d): %s", se.StatusCode, se.Body)
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return MsgUnexpected
}

// post sends to the live surface; replies for a closed surface are dropped.
func (c *Controller) post(msg protocol.Message) {
	surface, ok := c.panels.Current()
	if !ok {
		c.log.Info("surface closed, dropping message", zap.String("type", kindOf(msg)))
		return
	}
	c.send(surface, msg)
}

func (c *Controller) send(s Surface, msg protocol.Message) {
	c.traceMsg(Outbound, msg)
	s.Post(msg)
}

func (c *Controller) traceMsg(d Direction, msg protocol.Message) {
	if c.trace != nil {
		c.trace(d, msg)
	}
}

func kindOf(msg protocol.Message) string {
	if msg == nil {
		return "<nil>"
	}
	return string(msg.Kind())
}
