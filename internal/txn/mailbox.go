package txn

import (
	"fmt"
	"sync"

	"github.com/datatree/datatree/internal/wire"
)

// mailbox buffers envelopes by message type for a single role instance and
// rendezvous-delivers them to whichever goroutine is blocked in take for
// that type. At most one goroutine may wait on a given type at a time;
// a second concurrent Listen on the same type is a protocol violation.
type mailbox struct {
	mu      sync.Mutex
	pending map[string][]wire.Envelope
	waiting map[string]chan wire.Envelope
}

func newMailbox() *mailbox {
	return &mailbox{
		pending: make(map[string][]wire.Envelope),
		waiting: make(map[string]chan wire.Envelope),
	}
}

// push delivers env to a blocked listener for msgType if one exists,
// otherwise buffers it for the next take.
func (m *mailbox) push(msgType string, env wire.Envelope) {
	m.mu.Lock()
	if ch, ok := m.waiting[msgType]; ok {
		delete(m.waiting, msgType)
		m.mu.Unlock()
		ch <- env
		return
	}
	m.pending[msgType] = append(m.pending[msgType], env)
	m.mu.Unlock()
}

// take returns the oldest buffered envelope of msgType, or blocks until
// one arrives. Returns ErrDuplicateListener if another goroutine is
// already waiting on the same type.
func (m *mailbox) take(msgType string) (wire.Envelope, error) {
	m.mu.Lock()
	if q := m.pending[msgType]; len(q) > 0 {
		env := q[0]
		if len(q) == 1 {
			delete(m.pending, msgType)
		} else {
			m.pending[msgType] = q[1:]
		}
		m.mu.Unlock()
		return env, nil
	}
	if _, exists := m.waiting[msgType]; exists {
		m.mu.Unlock()
		return wire.Envelope{}, fmt.Errorf("%w: %s", ErrDuplicateListener, msgType)
	}
	ch := make(chan wire.Envelope, 1)
	m.waiting[msgType] = ch
	m.mu.Unlock()

	env := <-ch
	return env, nil
}
