package bytebufferpool

import "sync"

// maxPooledSize buffers grown beyond this are left to the GC
const maxPooledSize = 1 << 20

// Pool represents byte buffer pool.
//
// Distinct pools may be used for distinct types of byte buffers.
type Pool struct {
	pool sync.Pool
}

var defaultPool Pool

// Get returns an empty byte buffer from the pool.
//
// Got byte buffer may be returned to the pool via Put call.
func Get() *ByteBuffer { return defaultPool.Get() }

// Put returns byte buffer to the pool.
//
// ByteBuffer.B mustn't be touched after returning it to the pool.
func Put(b *ByteBuffer) { defaultPool.Put(b) }

// Get returns new byte buffer with zero length.
func (p *Pool) Get() *ByteBuffer {
	v := p.pool.Get()
	if v != nil {
		return v.(*ByteBuffer)
	}
	return &ByteBuffer{}
}

// Put releases byte buffer obtained via Get to the pool.
func (p *Pool) Put(b *ByteBuffer) {
	if b == nil || cap(b.B) > maxPooledSize {
		return
	}
	b.Reset()
	p.pool.Put(b)
}
