package tele

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/temoto/atomic_clock"
)

// Stat is updated concurrently by sampler, dispatcher and escalator.
type Stat struct {
	Enqueued          uint32
	AllocFailed       uint32
	Attempts          uint32
	Delivered         uint32
	GaveUp            uint32
	Escalated         uint32
	EscalationDropped uint32
	SensorFailed      uint32

	LastDelivered atomic_clock.Clock
}

func (self *Stat) Inc(field *uint32) { atomic.AddUint32(field, 1) }

type StatSnapshot struct {
	Enqueued          uint32
	AllocFailed       uint32
	Attempts          uint32
	Delivered         uint32
	GaveUp            uint32
	Escalated         uint32
	EscalationDropped uint32
	SensorFailed      uint32
	SinceDelivered    time.Duration // zero if nothing delivered yet
}

func (self *Stat) Snapshot() StatSnapshot {
	s := StatSnapshot{
		Enqueued:          atomic.LoadUint32(&self.Enqueued),
		AllocFailed:       atomic.LoadUint32(&self.AllocFailed),
		Attempts:          atomic.LoadUint32(&self.Attempts),
		Delivered:         atomic.LoadUint32(&self.Delivered),
		GaveUp:            atomic.LoadUint32(&self.GaveUp),
		Escalated:         atomic.LoadUint32(&self.Escalated),
		EscalationDropped: atomic.LoadUint32(&self.EscalationDropped),
		SensorFailed:      atomic.LoadUint32(&self.SensorFailed),
	}
	if !self.LastDelivered.IsZero() {
		s.SinceDelivered = atomic_clock.Since(&self.LastDelivered)
	}
	return s
}

func (s StatSnapshot) String() string {
	return fmt.Sprintf("enqueued=%d alloc_failed=%d attempts=%d delivered=%d gave_up=%d escalated=%d escalation_dropped=%d sensor_failed=%d since_delivered=%s",
		s.Enqueued, s.AllocFailed, s.Attempts, s.Delivered, s.GaveUp, s.Escalated, s.EscalationDropped, s.SensorFailed, s.SinceDelivered)
}
