package bytebufferpool

import (
	"io"
)

// MaxSize default size of a fixed size byte buffer, which is also the
// largest chunk a transfer hands to a body producer or consumer at once
var MaxSize = 16 * 1024

// FixedSizeByteBuffer provides fixed size byte buffer
//
// Use FixedSizeByteBufferPool.Get for obtaining an empty byte buffer.
type FixedSizeByteBuffer struct {
	// B is the backing array, its length never changes
	B    []byte
	used int
}

// Bytes returns the written part of the buffer.
func (b *FixedSizeByteBuffer) Bytes() []byte {
	return b.B[:b.used]
}

// Len returns the usage of fixed size byte buffer
func (b *FixedSizeByteBuffer) Len() int {
	return b.used
}

// Cap returns the fixed size of the buffer
func (b *FixedSizeByteBuffer) Cap() int {
	return len(b.B)
}

// Write implements io.Writer, writes beyond the fixed size are cut
// with io.ErrShortBuffer
func (b *FixedSizeByteBuffer) Write(p []byte) (int, error) {
	n := len(b.B) - b.used
	if len(p) <= n {
		b.used += copy(b.B[b.used:], p)
		return len(p), nil
	}
	wn := copy(b.B[b.used:], p[:n])
	b.used = len(b.B)
	return wn, io.ErrShortBuffer
}

// MakeFixedSizeByteBuffer make a fixed size ByteBuffer
func MakeFixedSizeByteBuffer(size int) *FixedSizeByteBuffer {
	return &FixedSizeByteBuffer{
		B: make([]byte, size),
	}
}

// Reset reset byteBuffer
func (b *FixedSizeByteBuffer) Reset() {
	b.used = 0
}
