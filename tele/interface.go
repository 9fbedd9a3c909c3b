package tele

import "context"

// Transporter performs one request/response exchange per call.
// Each call is independent: no connection reuse, no retries inside.
type Transporter interface {
	// Send is fire-only: success iff exchange completed without transport error.
	Send(ctx context.Context, endpoint string, payload []byte) error
	// SendCheck is fire-and-check: also requires success status
	// and valid acknowledgement if response has body.
	SendCheck(ctx context.Context, endpoint string, payload []byte) error
}

// Escalator reports operational failures synchronously, bypassing the queue.
type Escalator interface {
	Report(ctx context.Context, message string) Escalation
}
