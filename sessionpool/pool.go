package sessionpool

import (
	"github.com/haxii/fastmux/multi"
)

// DefaultMinSessions is the number of idle sessions Cleanup keeps alive
// if Pool.MinSessions isn't set.
const DefaultMinSessions = 1

// DefaultMaxSessions is the number of concurrent requests a client runs
// if its MaxSessions isn't set.
const DefaultMaxSessions = 8

// Slot one request in flight, or a parked session waiting for the next
type Slot struct {
	// InUse the slot belongs to a request not yet dispatched
	InUse bool
	// Finished the request of this slot was dispatched
	Finished bool
	// Result of the last dispatched request
	Result multi.Code
	// Handle session of this slot, nil once destroyed by Cleanup
	Handle *multi.Handle
	// Owner caller state of the running request
	Owner interface{}
}

// Pool slots of reusable sessions cloned from one template.
//
// Slots are created on demand and never freed, their sessions are
// destroyed by Cleanup once idle and above the floor. A Pool is used
// from the goroutine driving its multi only.
type Pool struct {
	// Template every session is cloned from, it must be initialized
	Template *multi.Template

	// Minimum sessions kept alive by Cleanup.
	//
	// DefaultMinSessions is used if not set.
	MinSessions int

	// LiveSessions sessions held by slots
	LiveSessions int

	// Active slots in use
	Active int

	slots []*Slot
}

// Acquire returns the first idle slot or appends a new one, the slot
// comes with a session, InUse and a cleared result
func (p *Pool) Acquire() (int, *Slot, error) {
	i := 0
	for ; i < len(p.slots); i++ {
		if !p.slots[i].InUse {
			break
		}
	}
	if i == len(p.slots) {
		p.slots = append(p.slots, &Slot{})
	}

	s := p.slots[i]
	if s.Handle == nil {
		h, err := p.Template.Clone()
		if err != nil {
			return -1, nil, err
		}
		s.Handle = h
		p.LiveSessions++
	}
	s.InUse = true
	s.Finished = false
	s.Result = multi.OK
	p.Active++
	return i, s, nil
}

// Release returns slot i to the idle set and marks it finished
func (p *Pool) Release(i int) {
	p.release(i, true)
}

// Abandon returns slot i, whose request never ran, to the idle set
func (p *Pool) Abandon(i int) {
	p.release(i, false)
}

func (p *Pool) release(i int, finished bool) {
	s := p.slots[i]
	if !s.InUse {
		return
	}
	s.InUse = false
	s.Finished = finished
	s.Owner = nil
	p.Active--
}

// Cleanup destroys idle sessions until LiveSessions reaches the floor
func (p *Pool) Cleanup() {
	minSessions := p.MinSessions
	if minSessions <= 0 {
		minSessions = DefaultMinSessions
	}
	for _, s := range p.slots {
		if p.LiveSessions <= minSessions {
			return
		}
		if s.InUse || s.Handle == nil {
			continue
		}
		s.Handle.Cleanup()
		s.Handle = nil
		p.LiveSessions--
	}
}

// Find returns the slot holding h
func (p *Pool) Find(h *multi.Handle) (int, bool) {
	if h == nil {
		return -1, false
	}
	for i, s := range p.slots {
		if s.Handle == h {
			return i, true
		}
	}
	return -1, false
}

// Slot returns slot i
func (p *Pool) Slot(i int) *Slot {
	return p.slots[i]
}

// Len number of slots
func (p *Pool) Len() int {
	return len(p.slots)
}

// Close destroys every session, the pool is empty afterwards
func (p *Pool) Close() {
	for i, s := range p.slots {
		if s.Handle != nil {
			s.Handle.Cleanup()
		}
		p.slots[i] = nil
	}
	p.slots = p.slots[:0]
	p.LiveSessions = 0
	p.Active = 0
}
