package bufiopool

import (
	"bufio"
	"io"
	"sync"
)

// Pool buffered reader and writer pool used to wrap the file
// streams of request bodies and response sinks
type Pool struct {
	readBufferSize  int
	writeBufferSize int

	readerPool sync.Pool
	writerPool sync.Pool
}

const (
	// MinReadBufferSize default read size for buffer io
	MinReadBufferSize = 4096
	// MinWriteBufferSize default write size for buffer io
	MinWriteBufferSize = 4096
)

// New make a new buff io pool
// min read / write buffer size is set if they are
// smaller than MinReadBufferSize / MinWriteBufferSize
func New(readBufferSize, writeBufferSize int) *Pool {
	if readBufferSize < MinReadBufferSize {
		readBufferSize = MinReadBufferSize
	}
	if writeBufferSize < MinWriteBufferSize {
		writeBufferSize = MinWriteBufferSize
	}
	return &Pool{
		readBufferSize:  readBufferSize,
		writeBufferSize: writeBufferSize,
	}
}

// AcquireReader acquire a buffered reader reading from r
func (p *Pool) AcquireReader(r io.Reader) *bufio.Reader {
	v := p.readerPool.Get()
	if v == nil {
		return bufio.NewReaderSize(r, max(p.readBufferSize, MinReadBufferSize))
	}
	br := v.(*bufio.Reader)
	br.Reset(r)
	return br
}

// ReleaseReader release a buffered reader, its source is dropped
func (p *Pool) ReleaseReader(br *bufio.Reader) {
	br.Reset(nil)
	p.readerPool.Put(br)
}

// AcquireWriter acquire a buffered writer writing to w
func (p *Pool) AcquireWriter(w io.Writer) *bufio.Writer {
	v := p.writerPool.Get()
	if v == nil {
		return bufio.NewWriterSize(w, max(p.writeBufferSize, MinWriteBufferSize))
	}
	bw := v.(*bufio.Writer)
	bw.Reset(w)
	return bw
}

// ReleaseWriter flushes the pending bytes of bw into its destination
// then puts it back, the flush error is returned
func (p *Pool) ReleaseWriter(bw *bufio.Writer) error {
	err := bw.Flush()
	bw.Reset(nil)
	p.writerPool.Put(bw)
	return err
}
