package main

import (
	"context"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"reviewpanel/internal/host"
	"reviewpanel/internal/protocol"
)

// sender is the part of *tea.Program the surface needs.
type sender interface {
	Send(msg tea.Msg)
}

// surfaceOpenedMsg creates the panel for a new surface id.
type surfaceOpenedMsg struct {
	id      uint64
	dispose func()
}

// surfaceMsg carries a controller message to the panel with the given id.
type surfaceMsg struct {
	id  uint64
	msg protocol.Message
}

type surfaceRevealMsg struct {
	id uint64
}

// toastMsg is an editor notification.
type toastMsg struct {
	text string
}

// surfaceHandle is the host side of one panel.
type surfaceHandle struct {
	id   uint64
	send sender
}

func (s surfaceHandle) Post(msg protocol.Message) {
	s.send.Send(surfaceMsg{id: s.id, msg: msg})
}

func (s surfaceHandle) Reveal() {
	s.send.Send(surfaceRevealMsg{id: s.id})
}

func surfaceFactory(s sender) host.Factory {
	var next atomic.Uint64
	return func(dispose func()) host.Surface {
		id := next.Add(1)
		s.Send(surfaceOpenedMsg{id: id, dispose: dispose})
		return surfaceHandle{id: id, send: s}
	}
}

// programRelay forwards to the program once it exists; earlier sends are
// dropped.
type programRelay struct {
	p atomic.Pointer[tea.Program]
}

func (r *programRelay) attach(p *tea.Program) { r.p.Store(p) }

func (r *programRelay) Send(msg tea.Msg) {
	if p := r.p.Load(); p != nil {
		p.Send(msg)
	}
}

// msgQueue collects messages for synchronous drivers (smoke runs, tests).
type msgQueue struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (q *msgQueue) Send(msg tea.Msg) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
}

func (q *msgQueue) drain() []tea.Msg {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.msgs
	q.msgs = nil
	return out
}

// hostLink connects the panel to the controller. Calls never block the
// event loop.
type hostLink interface {
	Trigger()
	Deliver(msg protocol.Message)
}

// asyncLink is used with a running program: replies arrive via Send.
type asyncLink struct {
	ctx context.Context
	ctl *host.Controller
}

func (l asyncLink) Trigger() { go l.ctl.TriggerAnalysis() }

func (l asyncLink) Deliver(msg protocol.Message) { l.ctl.Receive(l.ctx, msg) }

// syncLink runs the controller inline; it must be paired with a msgQueue.
type syncLink struct {
	ctx context.Context
	ctl *host.Controller
}

func (l syncLink) Trigger() { l.ctl.TriggerAnalysis() }

func (l syncLink) Deliver(msg protocol.Message) { l.ctl.Handle(l.ctx, msg) }
