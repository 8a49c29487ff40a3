package mqtt311

import (
	"context"
	"errors"
	"sync"
)

// Correlation errors.
var (
	ErrPacketIDExhausted = errors.New("no available packet IDs")
	ErrPacketIDInUse     = errors.New("packet ID already has a pending request")
)

// connectPacketID is reserved for the CONNECT/CONNACK exchange, which
// carries no identifier on the wire. Regular requests use 1..65535.
const connectPacketID uint16 = 0

// Token represents an asynchronous operation that can be waited on.
// It completes exactly once, with either success or an error.
type Token interface {
	// Wait blocks until the operation completes or the context is
	// cancelled. It returns nil on success, or the error the operation
	// was resolved with.
	Wait(ctx context.Context) error

	// Done returns a channel that closes when the operation completes.
	Done() <-chan struct{}

	// Error returns the error if the operation has completed. Only
	// meaningful after Done is closed.
	Error() error
}

// token is the internal one-shot implementation of Token.
type token struct {
	done chan struct{}
	err  error
	once sync.Once
}

func newToken() token {
	return token{done: make(chan struct{})}
}

// Wait blocks until the operation completes or the context is cancelled.
func (t *token) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that closes when the operation completes.
func (t *token) Done() <-chan struct{} {
	return t.done
}

// Error returns the error if the operation has completed.
func (t *token) Error() error {
	return t.err
}

// complete fulfils the token. Subsequent calls are ignored.
func (t *token) complete(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// completer is the resolution side of a token, held by the pending table.
type completer interface {
	complete(err error)
}

// ConnectToken is the pending result of a CONNECT request.
// SessionPresent is valid once Done is closed.
type ConnectToken struct {
	token
	SessionPresent bool
}

// PublishToken is the pending result of a QoS 1 or 2 publish.
type PublishToken struct {
	token
}

// SubscribeToken is the pending result of a SUBSCRIBE request.
// ReturnCodes holds the granted QoS per filter (0x80 = rejected) once
// Done is closed.
type SubscribeToken struct {
	token
	ReturnCodes []byte
}

// UnsubscribeToken is the pending result of an UNSUBSCRIBE request.
type UnsubscribeToken struct {
	token
}

// pendingTable correlates packet identifiers with the tokens awaiting
// their acknowledgment. At most one request may be outstanding per id.
type pendingTable struct {
	mu    sync.Mutex
	slots map[uint16]completer
	next  uint16
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		slots: make(map[uint16]completer),
		next:  1,
	}
}

// reserve registers a pending token for the given id. It fails with
// ErrPacketIDInUse if the id already has an unresolved token.
func (p *pendingTable) reserve(id uint16, tok completer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.slots[id]; ok {
		return ErrPacketIDInUse
	}
	p.slots[id] = tok
	return nil
}

// allocate picks the next free id in the cycle 1..65535, skipping 0 and
// any id that still has a pending token, and registers tok under it. The
// reservation happens under the same lock as the id choice so concurrent
// callers can never be handed the same id.
func (p *pendingTable) allocate(tok completer) (uint16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.slots) >= maxUint16 {
		return 0, ErrPacketIDExhausted
	}

	start := p.next
	for {
		id := p.next
		p.next++
		if p.next == 0 {
			p.next = 1
		}

		if _, ok := p.slots[id]; !ok {
			p.slots[id] = tok
			return id, nil
		}

		if p.next == start {
			return 0, ErrPacketIDExhausted
		}
	}
}

// take removes and returns the pending token for id. The second return
// is false when no request is outstanding for that id, which signals an
// unexpected or duplicate reply and must not be fatal to the caller.
func (p *pendingTable) take(id uint16) (completer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, ok := p.slots[id]
	if ok {
		delete(p.slots, id)
	}
	return tok, ok
}

// outstanding reports whether id currently has a pending token.
func (p *pendingTable) outstanding(id uint16) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.slots[id]
	return ok
}

// len returns the number of pending tokens.
func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.slots)
}

// failAll resolves every outstanding token with err and empties the
// table. Called at teardown so no caller blocks forever on a reply that
// can no longer arrive.
func (p *pendingTable) failAll(err error) {
	p.mu.Lock()
	slots := p.slots
	p.slots = make(map[uint16]completer)
	p.mu.Unlock()

	for _, tok := range slots {
		tok.complete(err)
	}
}
