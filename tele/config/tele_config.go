// Separate package is workaround to import cycles.
package tele_config

import (
	"net/url"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/thermopost/helpers"
)

const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"

	DefaultQueueCapacity = 10
	DefaultMaxRetry      = 5
	DefaultRetryDelay    = 1 * time.Second
	DefaultTimeout       = 5 * time.Second
)

type Config struct { //nolint:maligned
	Enabled        bool   `hcl:"enable"`
	BaseURL        string `hcl:"base_url"`
	Transport      string `hcl:"transport"`
	TimeoutSec     int    `hcl:"timeout_sec"`
	LogDebug       bool   `hcl:"log_debug"`
	QueueCapacity  int    `hcl:"queue_capacity"`
	MaxRetry       int    `hcl:"max_retry"`
	RetryDelayMsec int    `hcl:"retry_delay_ms"`

	MqttBroker      string `hcl:"mqtt_broker"`
	MqttClientId    string `hcl:"mqtt_client_id"`
	MqttTopicPrefix string `hcl:"mqtt_topic_prefix"`
	MqttLogDebug    bool   `hcl:"mqtt_log_debug"`
}

func (c *Config) Timeout() time.Duration {
	return helpers.IntSecondDefault(c.TimeoutSec, DefaultTimeout)
}

func (c *Config) RetryDelay() time.Duration {
	return helpers.IntMillisecondDefault(c.RetryDelayMsec, DefaultRetryDelay)
}

// Normalize fills defaults and validates. Values are fixed after startup.
func (c *Config) Normalize() error {
	if c.Transport == "" {
		c.Transport = TransportHTTP
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.MaxRetry == 0 {
		c.MaxRetry = DefaultMaxRetry
	}
	if c.QueueCapacity < 0 {
		return errors.NotValidf("tele.queue_capacity=%d", c.QueueCapacity)
	}
	if c.MaxRetry < 0 {
		return errors.NotValidf("tele.max_retry=%d", c.MaxRetry)
	}
	if !c.Enabled {
		return nil
	}

	switch c.Transport {
	case TransportHTTP:
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return errors.Annotatef(errors.NewNotValid(err, ""), "tele.base_url=%q", c.BaseURL)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.NotValidf("tele.base_url=%q (expected http://host[:port])", c.BaseURL)
		}
	case TransportMQTT:
		if c.MqttBroker == "" {
			return errors.NotValidf("tele.mqtt_broker=empty")
		}
		if c.MqttClientId == "" {
			c.MqttClientId = "thermopost"
		}
		if c.MqttTopicPrefix == "" {
			c.MqttTopicPrefix = c.MqttClientId
		}
	default:
		return errors.NotValidf("tele.transport=%q", c.Transport)
	}
	return nil
}
