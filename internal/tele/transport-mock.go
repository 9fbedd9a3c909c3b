package tele

import (
	"context"
	"sync"

	tele_api "github.com/temoto/thermopost/tele"
)

// MockCall is one observed Transporter call.
type MockCall struct {
	Check    bool // SendCheck
	Endpoint string
	Payload  string
}

// MockTransport records calls and answers from Results in order,
// then Default. Payload is copied so recorded value outlives Release.
type MockTransport struct {
	mu      sync.Mutex
	calls   []MockCall
	Results []error
	Default error
	// Fun overrides Results/Default if set.
	Fun func(MockCall) error
	// Delivered receives payload of each successful call, if not nil.
	Delivered chan MockCall
}

var _ tele_api.Transporter = (*MockTransport)(nil) // compile-time interface test

func (self *MockTransport) Send(ctx context.Context, endpoint string, payload []byte) error {
	return self.call(ctx, MockCall{Endpoint: endpoint, Payload: string(payload)})
}

func (self *MockTransport) SendCheck(ctx context.Context, endpoint string, payload []byte) error {
	return self.call(ctx, MockCall{Check: true, Endpoint: endpoint, Payload: string(payload)})
}

func (self *MockTransport) call(ctx context.Context, c MockCall) error {
	self.mu.Lock()
	self.calls = append(self.calls, c)
	var err error
	switch {
	case self.Fun != nil:
		fun := self.Fun
		self.mu.Unlock()
		err = fun(c)
		self.mu.Lock()
	case len(self.Results) > 0:
		err = self.Results[0]
		self.Results = self.Results[1:]
	default:
		err = self.Default
	}
	ch := self.Delivered
	self.mu.Unlock()

	if err == nil && ch != nil {
		select {
		case ch <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (self *MockTransport) Calls() []MockCall {
	self.mu.Lock()
	defer self.mu.Unlock()
	return append([]MockCall(nil), self.calls...)
}

// CallsTo filters calls by endpoint.
func (self *MockTransport) CallsTo(endpoint string) []MockCall {
	all := self.Calls()
	out := make([]MockCall, 0, len(all))
	for _, c := range all {
		if c.Endpoint == endpoint {
			out = append(out, c)
		}
	}
	return out
}
