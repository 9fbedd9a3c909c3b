package tele

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/juju/errors"
)

// Collector endpoints, relative to configured base URL or MQTT topic prefix.
const (
	EndpointTemperature = "/api/temperature"
	EndpointPing        = "/api/ping"
	EndpointError       = "/api/error"
)

// Temperature is the telemetry reading posted to EndpointTemperature.
type Temperature struct {
	Temperature float64 `json:"temperature"`
	Timestamp   int64   `json:"timestamp"`
}

func (t Temperature) Marshal() ([]byte, error) { return json.Marshal(t) }

// ErrorReport is posted to EndpointError, never queued.
type ErrorReport struct {
	Error string `json:"error"`
}

func (r ErrorReport) Marshal() ([]byte, error) { return json.Marshal(r) }

// Ack is the collector reply body of fire-and-check calls.
type Ack struct {
	Response string `json:"response"`
}

var ErrAckInvalid = errors.New("acknowledgement invalid")

// ParseAck accepts JSON object with string field "response".
// Anything else, including valid JSON of other shape, is ErrAckInvalid.
func ParseAck(b []byte) (Ack, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return Ack{}, errors.Annotatef(ErrAckInvalid, "parse body=%q err=%v", b, err)
	}
	r, ok := m["response"].(string)
	if !ok {
		return Ack{}, errors.Annotatef(ErrAckInvalid, "field response missing or not string body=%q", b)
	}
	return Ack{Response: r}, nil
}

// Outcome of delivery attempt. Not persisted.
type Outcome uint8

const (
	Success Outcome = iota
	RetriableFailure
	GaveUp
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RetriableFailure:
		return "retriable"
	case GaveUp:
		return "gave-up"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// Escalation is result of one-shot error report.
type Escalation uint8

const (
	Reported Escalation = iota
	SilentlyDropped
)

func (e Escalation) String() string {
	switch e {
	case Reported:
		return "reported"
	case SilentlyDropped:
		return "dropped"
	}
	return fmt.Sprintf("escalation(%d)", uint8(e))
}
