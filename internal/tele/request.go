package tele

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/errors"
)

// Request is pending delivery. Exactly one component owns it at any time:
// producer until Put, then queue, then dispatcher until Release.
// Never copy *Request, never read it after Release.
type Request struct {
	ID       uuid.UUID
	Endpoint string
	Payload  []byte

	slot int // index in BufferPool, -1 after release
}

func (r *Request) String() string {
	if r == nil {
		return "request(nil)"
	}
	return fmt.Sprintf("request(id=%s endpoint=%s len=%d)", r.ID, r.Endpoint, len(r.Payload))
}

var ErrAlloc = errors.New("request allocation failed")

type Allocator interface {
	// Alloc copies payload into owned buffer.
	Alloc(endpoint string, payload []byte) (*Request, error)
	// Release returns buffer. Second release of same request is code error.
	Release(*Request)
}

// BufferPool is fixed set of payload buffers.
// Sized queue capacity + 2 (producer holds one, dispatcher one in flight)
// it never runs out unless a request leaks.
type BufferPool struct {
	mu      sync.Mutex
	bufs    [][]byte
	free    []int
	maxSize int
}

var _ Allocator = (*BufferPool)(nil) // compile-time interface test

func NewBufferPool(count, maxSize int) *BufferPool {
	if count <= 0 || maxSize <= 0 {
		panic(fmt.Sprintf("code error NewBufferPool count=%d maxSize=%d", count, maxSize))
	}
	p := &BufferPool{
		bufs:    make([][]byte, count),
		free:    make([]int, count),
		maxSize: maxSize,
	}
	for i := range p.bufs {
		p.bufs[i] = make([]byte, 0, maxSize)
		p.free[i] = count - 1 - i
	}
	return p
}

func (p *BufferPool) Alloc(endpoint string, payload []byte) (*Request, error) {
	if len(payload) > p.maxSize {
		return nil, errors.Annotatef(ErrAlloc, "payload len=%d > max=%d", len(payload), p.maxSize)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil, errors.Annotatef(ErrAlloc, "no free buffer of %d", len(p.bufs))
	}
	slot := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	buf := append(p.bufs[slot][:0], payload...)
	return &Request{
		ID:       uuid.New(),
		Endpoint: endpoint,
		Payload:  buf,
		slot:     slot,
	}, nil
}

func (p *BufferPool) Release(r *Request) {
	if r == nil {
		panic("code error BufferPool.Release(nil)")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.slot < 0 || r.slot >= len(p.bufs) {
		panic(fmt.Sprintf("code error double release %s slot=%d", r.String(), r.slot))
	}
	p.free = append(p.free, r.slot)
	r.slot = -1
	r.Payload = nil
}

// Free is number of available buffers.
func (p *BufferPool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
