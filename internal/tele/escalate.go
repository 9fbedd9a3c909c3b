package tele

import (
	"context"
	"time"

	"github.com/temoto/thermopost/log2"
	tele_api "github.com/temoto/thermopost/tele"
)

// Reporter is the error escalation path: one synchronous fire-and-check
// call per report, no queue, no retry. Failure to report is only logged
// into Log, which must never lead back to Report.
type Reporter struct {
	Log       *log2.Log
	Transport tele_api.Transporter
	Stat      *tele_api.Stat
	Timeout   time.Duration
}

var _ tele_api.Escalator = (*Reporter)(nil) // compile-time interface test

func NewReporter(log *log2.Log, transport tele_api.Transporter, stat *tele_api.Stat, timeout time.Duration) *Reporter {
	if stat == nil {
		stat = new(tele_api.Stat)
	}
	return &Reporter{Log: log, Transport: transport, Stat: stat, Timeout: timeout}
}

func (self *Reporter) Report(ctx context.Context, message string) tele_api.Escalation {
	self.Log.Errorf("report: %s", message)
	payload, err := tele_api.ErrorReport{Error: message}.Marshal()
	if err != nil {
		self.Log.Errorf("report marshal message=%q err=%v", message, err)
		self.Stat.Inc(&self.Stat.EscalationDropped)
		return tele_api.SilentlyDropped
	}
	if self.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, self.Timeout)
		defer cancel()
	}
	if err := self.Transport.SendCheck(ctx, tele_api.EndpointError, payload); err != nil {
		self.Log.Errorf("report not delivered, dropping message=%q err=%v", message, err)
		self.Stat.Inc(&self.Stat.EscalationDropped)
		return tele_api.SilentlyDropped
	}
	self.Stat.Inc(&self.Stat.Escalated)
	return tele_api.Reported
}

// Ping checks collector readiness with empty body fire-and-check call.
func Ping(ctx context.Context, transport tele_api.Transporter, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return transport.SendCheck(ctx, tele_api.EndpointPing, nil)
}
