package pools

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Buffer pool sizes
const (
	SmallBufferSize  = 2 * 1024  // 2KB for simple responses
	MediumBufferSize = 8 * 1024  // 8KB for typical pages
	LargeBufferSize  = 32 * 1024 // 32KB for files
)

// BufferPool manages response buffers with three size tiers
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool

	// Statistics
	gets      atomic.Uint64
	puts      atomic.Uint64
	oversized atomic.Uint64
	tierGets  [3]atomic.Uint64
}

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	newTier := func(size int) func() any {
		return func() any {
			return bytes.NewBuffer(make([]byte, 0, size))
		}
	}

	bp := &BufferPool{}
	bp.small.New = newTier(SmallBufferSize)
	bp.medium.New = newTier(MediumBufferSize)
	bp.large.New = newTier(LargeBufferSize)
	return bp
}

// Get acquires an empty buffer sized for estimatedSize bytes
func (bp *BufferPool) Get(estimatedSize int) *bytes.Buffer {
	bp.gets.Add(1)

	var buf *bytes.Buffer
	switch {
	case estimatedSize <= SmallBufferSize:
		bp.tierGets[0].Add(1)
		buf = bp.small.Get().(*bytes.Buffer)
	case estimatedSize <= MediumBufferSize:
		bp.tierGets[1].Add(1)
		buf = bp.medium.Get().(*bytes.Buffer)
	default:
		bp.tierGets[2].Add(1)
		buf = bp.large.Get().(*bytes.Buffer)
	}
	buf.Reset()
	return buf
}

// Put returns a buffer to the pool
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	bp.puts.Add(1)

	// Return to appropriate pool based on capacity
	c := buf.Cap()
	buf.Reset()
	switch {
	case c <= SmallBufferSize:
		bp.small.Put(buf)
	case c <= MediumBufferSize:
		bp.medium.Put(buf)
	case c <= LargeBufferSize:
		bp.large.Put(buf)
	default:
		// Oversized buffers are not pooled (let GC collect them)
		bp.oversized.Add(1)
	}
}

// Stats returns buffer pool statistics
func (bp *BufferPool) Stats() BufferStats {
	return BufferStats{
		Gets:       bp.gets.Load(),
		Puts:       bp.puts.Load(),
		Oversized:  bp.oversized.Load(),
		SmallGets:  bp.tierGets[0].Load(),
		MediumGets: bp.tierGets[1].Load(),
		LargeGets:  bp.tierGets[2].Load(),
	}
}

// BufferStats contains buffer pool statistics
type BufferStats struct {
	Gets      uint64
	Puts      uint64
	Oversized uint64

	// Gets per size tier
	SmallGets  uint64
	MediumGets uint64
	LargeGets  uint64
}
