package tele

import (
	"github.com/juju/errors"
	"github.com/temoto/thermopost/log2"
	tele_api "github.com/temoto/thermopost/tele"
	tele_config "github.com/temoto/thermopost/tele/config"
)

// Transport contract:
// - one exchange per call, fresh connection each time, no pooling
// - bounded by per-attempt timeout from config and ctx deadline
// - no retries inside; retry policy belongs to Dispatcher
// - Send (fire-only) ignores response beyond transport errors
// - SendCheck (fire-and-check) requires acknowledgement
func NewTransport(log *log2.Log, teleConfig tele_config.Config) (tele_api.Transporter, error) {
	if !teleConfig.Enabled {
		log.Infof("tele disabled, using noop transport")
		return tele_api.Noop{}, nil
	}
	switch teleConfig.Transport {
	case tele_config.TransportHTTP, "":
		return NewTransportHTTP(log.Sub("http"), teleConfig.BaseURL, teleConfig.Timeout(), nil), nil
	case tele_config.TransportMQTT:
		return NewTransportMqtt(log.Sub("mqtt"), teleConfig), nil
	}
	return nil, errors.NotValidf("tele.transport=%q", teleConfig.Transport)
}
