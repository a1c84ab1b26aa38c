package multi

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haxii/fastmux/bytebufferpool"
	"github.com/haxii/fastmux/log"
	"github.com/haxii/fastmux/usage"
)

// DefaultPollInterval longest a driver should sleep while transfers run
// without posting anything
const DefaultPollInterval = time.Second

var (
	// ErrCallAgain more work is already queued, Perform should be called
	// again right away
	ErrCallAgain = errors.New("call perform again")

	// ErrBadHandle nil or destroyed handle
	ErrBadHandle = errors.New("invalid session handle")

	// ErrAddedAlready the handle is registered with a multi
	ErrAddedAlready = errors.New("session handle is added already")

	// ErrNotAdded the handle is not registered with this multi
	ErrNotAdded = errors.New("session handle is not added")

	// ErrTooManyTransfers MaxTransfers reached
	ErrTooManyTransfers = errors.New("too many transfers")

	// ErrClosed the multi is closed
	ErrClosed = errors.New("multi is closed")

	errAborted = errors.New("transfer is removed")
)

// Message a finished transfer
type Message struct {
	Handle *Handle
	Result Code
}

// Multi drives many transfers at once.
//
// net/http does the network work of every transfer in a goroutine of its
// own, while the body producers, body consumers and header functions of
// the handles only ever run inside Perform on the caller's goroutine.
// A Multi must be driven from a single goroutine.
type Multi struct {
	// MaxTransfers registered handle limit, unlimited if zero
	MaxTransfers int

	// PollInterval idle wait hint reported by Timeout
	//
	// DefaultPollInterval is used if not set.
	PollInterval time.Duration

	// Usage byte counters of all transfers, optional
	Usage *usage.Usage

	// Logger used for transfer info, the haxii logger is used if not set
	Logger log.Logger

	transfers map[*Handle]*transfer
	pending   []*transfer
	running   int
	done      []*Message
	closed    bool
	wg        sync.WaitGroup

	mu     sync.Mutex
	events []*event
	spare  []*event
	notify chan struct{}

	chunks bytebufferpool.FixedSizeByteBufferPool
}

// New makes an empty multi
func New() *Multi {
	return &Multi{
		transfers: make(map[*Handle]*transfer),
		notify:    make(chan struct{}, 1),
	}
}

func (m *Multi) logger() log.Logger {
	if m.Logger == nil {
		m.Logger = &log.DefaultLogger{}
	}
	return m.Logger
}

// Add registers h, its transfer starts on the next Perform
func (m *Multi) Add(h *Handle) error {
	if h == nil || h.cleaned {
		return ErrBadHandle
	}
	if h.multi != nil {
		return ErrAddedAlready
	}
	if m.closed {
		return ErrClosed
	}
	if m.MaxTransfers > 0 && len(m.transfers) >= m.MaxTransfers {
		return ErrTooManyTransfers
	}

	h.resetResults()
	h.multi = m
	x := newTransfer(m, h)
	m.transfers[h] = x
	m.pending = append(m.pending, x)
	return nil
}

// Remove deregisters h, a transfer still running is cancelled and
// never reported
func (m *Multi) Remove(h *Handle) error {
	if h == nil {
		return ErrBadHandle
	}
	x, ok := m.transfers[h]
	if !ok || h.multi != m {
		return ErrNotAdded
	}
	delete(m.transfers, h)
	h.multi = nil
	x.removed = true

	if !x.started {
		for i, p := range m.pending {
			if p == x {
				m.pending = append(m.pending[:i], m.pending[i+1:]...)
				break
			}
		}
		return nil
	}
	x.cancel()
	if !x.finished {
		m.running--
		m.logger().Debugf("transfer %s removed while running", h.id)
	}
	return nil
}

// Perform starts the pending transfers and services the events posted
// so far, running is the number of transfers not yet finished.
//
// ErrCallAgain is returned along with running when more events arrived
// meanwhile.
func (m *Multi) Perform() (running int, err error) {
	if m.closed {
		return 0, ErrClosed
	}

	for _, x := range m.pending {
		m.start(x)
	}
	m.pending = m.pending[:0]

	m.mu.Lock()
	events := m.events
	m.events = m.spare[:0]
	m.mu.Unlock()

	for i, ev := range events {
		m.serve(ev)
		events[i] = nil
	}

	m.mu.Lock()
	m.spare = events[:0]
	more := len(m.events) > 0
	m.mu.Unlock()

	if more {
		return m.running, ErrCallAgain
	}
	return m.running, nil
}

// InfoRead pops the oldest completion, left is the number still queued
func (m *Multi) InfoRead() (msg *Message, left int) {
	if len(m.done) == 0 {
		return nil, 0
	}
	msg = m.done[0]
	m.done[0] = nil
	m.done = m.done[1:]
	return msg, len(m.done)
}

// Timeout how long a driver may wait before calling Perform again:
// 0 if work is queued already, -1 if no transfer runs, otherwise the
// poll interval
func (m *Multi) Timeout() time.Duration {
	if len(m.pending) > 0 || len(m.done) > 0 {
		return 0
	}
	m.mu.Lock()
	queued := len(m.events)
	m.mu.Unlock()
	if queued > 0 {
		return 0
	}
	if m.running == 0 {
		return -1
	}
	if m.PollInterval > 0 {
		return m.PollInterval
	}
	return DefaultPollInterval
}

// Fdset readiness channel signalled whenever a transfer posts an event,
// along with the number of transfers that can signal it
func (m *Multi) Fdset() (<-chan struct{}, int) {
	return m.notify, m.running
}

// Close cancels every transfer and waits for their goroutines
func (m *Multi) Close() {
	if m.closed {
		return
	}
	m.closed = true
	for h, x := range m.transfers {
		x.removed = true
		if x.started {
			x.cancel()
		}
		h.multi = nil
	}
	m.transfers = nil
	m.pending = nil
	m.running = 0
	m.wg.Wait()
}

func (m *Multi) start(x *transfer) {
	ctx, cancel := context.WithCancel(context.Background())
	x.cancel = cancel
	x.started = true
	m.running++
	m.wg.Add(1)
	m.logger().Debugf("transfer %s started %s %s", x.h.id, x.method, x.url)
	go func() {
		defer m.wg.Done()
		x.run(ctx)
	}()
}

func (m *Multi) post(ev *event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// serve runs the handle callbacks an event asks for and answers it
func (m *Multi) serve(ev *event) {
	x := ev.xfer
	if x.removed {
		if ev.reply != nil {
			ev.reply <- reply{err: errAborted}
		}
		return
	}

	h := x.h
	switch ev.kind {
	case eventHeader:
		var err error
		if h.headerFn != nil {
			for _, line := range ev.lines {
				if err = h.headerFn(line); err != nil {
					x.abort = &Error{Code: WriteError, Err: err}
					break
				}
			}
		}
		if x.abort != nil {
			err = x.abort
		}
		ev.reply <- reply{err: err}

	case eventWrite:
		n := len(ev.buf)
		var err error
		if h.write != nil && x.abort == nil {
			n, err = h.write(ev.buf)
			if err == nil && n < len(ev.buf) {
				err = errShortConsume
			}
			if err != nil {
				x.abort = &Error{Code: WriteError, Err: err}
			}
		}
		if x.abort != nil {
			ev.reply <- reply{n: n, err: x.abort}
			return
		}
		if m.Usage != nil {
			m.Usage.AddIncomingSize(uint64(n))
		}
		ev.reply <- reply{n: n}

	case eventRead:
		if x.abort != nil {
			ev.reply <- reply{err: x.abort}
			return
		}
		n, err := h.read(ev.buf)
		if n < 0 || n > len(ev.buf) {
			n, err = 0, errBadProduce
		}
		if err != nil && err != io.EOF {
			x.abort = &Error{Code: ReadError, Err: err}
			ev.reply <- reply{err: x.abort}
			return
		}
		if m.Usage != nil {
			m.Usage.AddOutgoingSize(uint64(n))
		}
		ev.reply <- reply{n: n, err: err}

	case eventDone:
		m.finish(x, ev.err)
	}
}

func (m *Multi) finish(x *transfer, err error) {
	x.finished = true
	m.running--
	if x.abort != nil {
		err = x.abort
	}

	h := x.h
	h.err = err
	h.code = Classify(err)
	h.responseCode = x.responseCode
	h.connectCode = int(atomic.LoadInt64(&x.connectCode))
	h.contentType = x.contentType
	h.headers = x.headers

	if m.Usage != nil {
		m.Usage.AddRequest()
	}
	if err != nil {
		m.logger().Debugf("transfer %s finished with %d (%s): %s",
			h.id, h.code, h.code, err)
	} else {
		m.logger().Debugf("transfer %s finished with status %d", h.id, h.responseCode)
	}
	m.done = append(m.done, &Message{Handle: h, Result: h.code})
}
