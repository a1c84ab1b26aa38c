package usage

import (
	"sync/atomic"
)

// Usage counts the bytes a multiplexer moves, request bodies are
// outgoing and response bodies incoming
//
// transfers update it from their own goroutines, read it with the getters
type Usage struct {
	incoming uint64
	outgoing uint64
	requests uint64
}

// AddIncomingSize adds incoming size
func (u *Usage) AddIncomingSize(n uint64) {
	atomic.AddUint64(&u.incoming, n)
}

// AddOutgoingSize adds outgoing size
func (u *Usage) AddOutgoingSize(n uint64) {
	atomic.AddUint64(&u.outgoing, n)
}

// AddRequest counts one finished transfer
func (u *Usage) AddRequest() {
	atomic.AddUint64(&u.requests, 1)
}

// GetIncomingSize returns received body bytes
func (u *Usage) GetIncomingSize() uint64 {
	return atomic.LoadUint64(&u.incoming)
}

// GetOutgoingSize returns sent body bytes
func (u *Usage) GetOutgoingSize() uint64 {
	return atomic.LoadUint64(&u.outgoing)
}

// GetRequests returns the number of finished transfers
func (u *Usage) GetRequests() uint64 {
	return atomic.LoadUint64(&u.requests)
}
