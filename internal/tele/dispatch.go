package tele

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/thermopost/helpers"
	"github.com/temoto/thermopost/log2"
	tele_api "github.com/temoto/thermopost/tele"
)

// Dispatcher contract:
// - single consumer, one request in flight, strict queue order
// - fixed delay between attempts, at most MaxRetry attempts per request
// - after last failed attempt request is dropped: not re-queued, not escalated
// - every request taken from queue is released exactly once
type Dispatcher struct {
	Log        *log2.Log
	Queue      *Queue[*Request]
	Transport  tele_api.Transporter
	Alloc      Allocator
	Stat       *tele_api.Stat
	MaxRetry   int
	RetryDelay time.Duration
	Timeout    time.Duration // per attempt, zero = transport default

	// Sleep between failed attempts, tests replace it.
	Sleep helpers.SleepFunc
	// OnOutcome is optional observer called before release.
	OnOutcome func(*Request, tele_api.Outcome, int)
}

func (self *Dispatcher) check() error {
	switch {
	case self.Queue == nil:
		return errors.Errorf("code error Dispatcher.Queue=nil")
	case self.Transport == nil:
		return errors.Errorf("code error Dispatcher.Transport=nil")
	case self.Alloc == nil:
		return errors.Errorf("code error Dispatcher.Alloc=nil")
	case self.MaxRetry <= 0:
		return errors.NotValidf("Dispatcher.MaxRetry=%d", self.MaxRetry)
	}
	if self.Sleep == nil {
		self.Sleep = helpers.Sleep
	}
	if self.Stat == nil {
		self.Stat = new(tele_api.Stat)
	}
	return nil
}

// Run drains queue until ctx is done. There is no other way to stop it.
func (self *Dispatcher) Run(ctx context.Context) error {
	if err := self.check(); err != nil {
		return err
	}
	for {
		r, err := self.Queue.Get(ctx)
		if err != nil {
			return err
		}
		self.handle(ctx, r)
	}
}

func (self *Dispatcher) handle(ctx context.Context, r *Request) {
	defer self.Alloc.Release(r)

	self.Log.Infof("sending POST to %s id=%s payload=%s", r.Endpoint, r.ID, r.Payload)
	outcome, attempts := self.Deliver(ctx, r)
	switch outcome {
	case tele_api.Success:
		self.Log.Infof("sent id=%s attempts=%d", r.ID, attempts)
	case tele_api.GaveUp:
		// deliberate loss: telemetry is not critical, next sample is on its way
		self.Log.Errorf("dropped id=%s after %d attempts", r.ID, attempts)
	default:
		self.Log.Errorf("stopped id=%s after %d attempts outcome=%s", r.ID, attempts, outcome)
	}
	if self.OnOutcome != nil {
		self.OnOutcome(r, outcome, attempts)
	}
}

// Deliver attempts fire-only send until success or MaxRetry attempts.
// Returns Success or GaveUp, RetriableFailure only if ctx is done mid-way.
// Caller keeps ownership of r.
func (self *Dispatcher) Deliver(ctx context.Context, r *Request) (tele_api.Outcome, int) {
	attempt := 0
	for attempt < self.MaxRetry {
		self.Stat.Inc(&self.Stat.Attempts)
		err := self.attempt(ctx, r)
		if err == nil {
			self.Stat.Inc(&self.Stat.Delivered)
			self.Stat.LastDelivered.SetNow()
			return tele_api.Success, attempt + 1
		}
		attempt++
		self.Log.Errorf("send id=%s attempt=%d/%d err=%v, retrying", r.ID, attempt, self.MaxRetry, err)
		if err := self.Sleep(ctx, self.RetryDelay); err != nil {
			return tele_api.RetriableFailure, attempt
		}
	}
	self.Stat.Inc(&self.Stat.GaveUp)
	return tele_api.GaveUp, attempt
}

func (self *Dispatcher) attempt(ctx context.Context, r *Request) error {
	if self.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, self.Timeout)
		defer cancel()
	}
	return self.Transport.Send(ctx, r.Endpoint, r.Payload)
}
