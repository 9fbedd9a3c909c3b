package collector

import (
	"sync"
	"time"

	tele_api "github.com/temoto/thermopost/tele"
)

type Entry struct {
	Received time.Time `json:"received"`
	Endpoint string    `json:"endpoint"`
	// one of
	Temperature *tele_api.Temperature `json:"temperature,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// Memory keeps last N entries per endpoint. Safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	keep  int
	rings map[string]*ring
	total map[string]uint64
}

type ring struct {
	buf  []Entry
	next int
	full bool
}

func NewMemory(keep int) *Memory {
	if keep <= 0 {
		panic("code error NewMemory keep<=0")
	}
	return &Memory{
		keep:  keep,
		rings: make(map[string]*ring),
		total: make(map[string]uint64),
	}
}

func (self *Memory) Add(e Entry) {
	self.mu.Lock()
	defer self.mu.Unlock()
	r, ok := self.rings[e.Endpoint]
	if !ok {
		r = &ring{buf: make([]Entry, self.keep)}
		self.rings[e.Endpoint] = r
	}
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	self.total[e.Endpoint]++
}

// Recent returns entries of endpoint, oldest first.
func (self *Memory) Recent(endpoint string) []Entry {
	self.mu.Lock()
	defer self.mu.Unlock()
	r, ok := self.rings[endpoint]
	if !ok {
		return nil
	}
	if !r.full {
		return append([]Entry(nil), r.buf[:r.next]...)
	}
	out := make([]Entry, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// Total counts all entries ever added per endpoint.
func (self *Memory) Total() map[string]uint64 {
	self.mu.Lock()
	defer self.mu.Unlock()
	m := make(map[string]uint64, len(self.total))
	for k, v := range self.total {
		m[k] = v
	}
	return m
}
