package tele

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// trackAlloc is ownership-tracking Allocator: counts releases per request.
type trackAlloc struct {
	t     testing.TB
	pool  *BufferPool
	mu    sync.Mutex
	order []uuid.UUID
	rel   map[uuid.UUID]int
}

func newTrackAlloc(t testing.TB, count int) *trackAlloc {
	return &trackAlloc{t: t, pool: NewBufferPool(count, 256), rel: make(map[uuid.UUID]int)}
}

func (self *trackAlloc) Alloc(endpoint string, payload []byte) (*Request, error) {
	r, err := self.pool.Alloc(endpoint, payload)
	if err == nil {
		self.mu.Lock()
		self.order = append(self.order, r.ID)
		self.mu.Unlock()
	}
	return r, err
}

func (self *trackAlloc) Release(r *Request) {
	self.mu.Lock()
	self.rel[r.ID]++
	n := self.rel[r.ID]
	self.mu.Unlock()
	if n > 1 {
		self.t.Errorf("request id=%s released %d times", r.ID, n)
		return
	}
	self.pool.Release(r)
}

// requireReleasedOnce checks every allocated request released exactly once.
func (self *trackAlloc) requireReleasedOnce(t testing.TB) {
	t.Helper()
	self.mu.Lock()
	defer self.mu.Unlock()
	for _, id := range self.order {
		require.Equal(t, 1, self.rel[id], "request id=%s", id)
	}
	require.Equal(t, len(self.order), len(self.rel))
}

func (self *trackAlloc) released() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return len(self.rel)
}

// sleepRecorder replaces real retry delay.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (self *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	self.mu.Lock()
	self.delays = append(self.delays, d)
	self.mu.Unlock()
	return ctx.Err()
}

func (self *sleepRecorder) Delays() []time.Duration {
	self.mu.Lock()
	defer self.mu.Unlock()
	return append([]time.Duration(nil), self.delays...)
}

func mustAlloc(t testing.TB, a Allocator, endpoint, payload string) *Request {
	t.Helper()
	r, err := a.Alloc(endpoint, []byte(payload))
	require.NoError(t, err)
	return r
}
