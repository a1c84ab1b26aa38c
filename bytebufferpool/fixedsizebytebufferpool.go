package bytebufferpool

import (
	"sync"
)

// FixedSizeByteBufferPool pool of MaxSize byte buffers
type FixedSizeByteBufferPool struct {
	pool sync.Pool
}

// Get returns an empty fixed size byte buffer
func (p *FixedSizeByteBufferPool) Get() *FixedSizeByteBuffer {
	value := p.pool.Get()
	if value != nil {
		return value.(*FixedSizeByteBuffer)
	}
	return MakeFixedSizeByteBuffer(MaxSize)
}

// Put resets the buffer and puts it back
func (p *FixedSizeByteBufferPool) Put(byteBuffer *FixedSizeByteBuffer) {
	byteBuffer.Reset()
	p.pool.Put(byteBuffer)
}
