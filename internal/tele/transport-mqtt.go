package tele

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/thermopost/log2"
	tele_api "github.com/temoto/thermopost/tele"
	tele_config "github.com/temoto/thermopost/tele/config"
)

// mqttConn is the part of mqtt.Client used here.
type mqttConn interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type mqttDialFunc func(*mqtt.ClientOptions) mqttConn

func mqttDialDefault(opt *mqtt.ClientOptions) mqttConn { return mqtt.NewClient(opt) }

const mqttQos = 1

var mqttLogOnce sync.Once

// transportMqtt publishes each payload on fresh connection.
// PUBACK is the acknowledgement, so SendCheck equals Send.
type transportMqtt struct {
	log         *log2.Log
	broker      string
	clientId    string
	topicPrefix string
	timeout     time.Duration
	dial        mqttDialFunc
}

func NewTransportMqtt(log *log2.Log, teleConfig tele_config.Config) tele_api.Transporter {
	mqttLogOnce.Do(func() {
		mqtt.ERROR = log
		mqtt.CRITICAL = log
		mqtt.WARN = log
		if teleConfig.MqttLogDebug {
			mqtt.DEBUG = log
		}
	})
	return &transportMqtt{
		log:         log,
		broker:      teleConfig.MqttBroker,
		clientId:    teleConfig.MqttClientId,
		topicPrefix: teleConfig.MqttTopicPrefix,
		timeout:     teleConfig.Timeout(),
		dial:        mqttDialDefault,
	}
}

func (self *transportMqtt) Send(ctx context.Context, endpoint string, payload []byte) error {
	return self.publish(ctx, endpoint, payload)
}

func (self *transportMqtt) SendCheck(ctx context.Context, endpoint string, payload []byte) error {
	return self.publish(ctx, endpoint, payload)
}

func (self *transportMqtt) Topic(endpoint string) string { return self.topicPrefix + endpoint }

func (self *transportMqtt) publish(ctx context.Context, endpoint string, payload []byte) error {
	timeout := self.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return errors.Timeoutf("mqtt publish %s before start", endpoint)
	}

	opt := mqtt.NewClientOptions().
		AddBroker(self.broker).
		SetClientID(self.clientId).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectTimeout(timeout).
		SetWriteTimeout(timeout)
	conn := self.dial(opt)

	if err := waitToken(ctx, conn.Connect(), timeout); err != nil {
		self.log.Errorf("connect broker=%s err=%v", self.broker, err)
		return errors.Annotatef(err, "mqtt connect broker=%s", self.broker)
	}
	defer conn.Disconnect(250)

	topic := self.Topic(endpoint)
	if err := waitToken(ctx, conn.Publish(topic, mqttQos, false, payload), timeout); err != nil {
		self.log.Errorf("publish topic=%s err=%v", topic, err)
		return errors.Annotatef(err, "mqtt publish topic=%s", topic)
	}
	self.log.Debugf("publish topic=%s acknowledged", topic)
	return nil
}

func waitToken(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-t.C:
		return errors.Timeoutf("mqtt token after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
