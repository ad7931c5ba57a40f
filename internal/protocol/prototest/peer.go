// Package prototest provides a recording protocol.Peer for tests.
package prototest

import (
	"sync"
	"time"

	"arcade_arena/internal/protocol"
)

// Peer records every message sent to it.
type Peer struct {
	Name string

	mu     sync.Mutex
	msgs   []protocol.Outbound
	closed bool
	notify chan struct{}
}

func NewPeer(name string) *Peer {
	return &Peer{Name: name, notify: make(chan struct{}, 1)}
}

func (p *Peer) Send(msg protocol.Outbound) {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Peer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *Peer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Messages returns a copy of everything received so far.
func (p *Peer) Messages() []protocol.Outbound {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]protocol.Outbound(nil), p.msgs...)
}

func (p *Peer) Events() []string {
	msgs := p.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Event
	}
	return out
}

// Last returns the most recent message, or a zero Outbound.
func (p *Peer) Last() protocol.Outbound {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		return protocol.Outbound{}
	}
	return p.msgs[len(p.msgs)-1]
}

// Find returns the latest message with the given event.
func (p *Peer) Find(event string) (protocol.Outbound, bool) {
	msgs := p.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Event == event {
			return msgs[i], true
		}
	}
	return protocol.Outbound{}, false
}

// Count returns how many messages with the given event were received.
func (p *Peer) Count(event string) int {
	n := 0
	for _, m := range p.Messages() {
		if m.Event == event {
			n++
		}
	}
	return n
}

// WaitFor blocks until a message with the given event arrives or the timeout
// expires.
func (p *Peer) WaitFor(event string, timeout time.Duration) (protocol.Outbound, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if msg, ok := p.Find(event); ok {
			return msg, true
		}
		select {
		case <-p.notify:
		case <-deadline.C:
			return p.Find(event)
		}
	}
}

// Reset forgets every recorded message.
func (p *Peer) Reset() {
	p.mu.Lock()
	p.msgs = nil
	p.mu.Unlock()
}
