package clientmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"dmxparams/internal/device"
	"dmxparams/internal/logger"
)

const (
	setSuffix = "set"
	rawDevice = "dmx"
)

// ClientMQTT bridges device parameters to MQTT:
//
//	<prefix>/<device>/<param>/set  payload "strobe(0.4)" - encode a value
//	<prefix>/dmx/set               payload [{"channel":0,"value":255}] - raw writes
//	<prefix>/<device>/<param>      retained decoded value, published on change
type ClientMQTT struct {
	ctx       context.Context
	log       *logger.Log
	cfgClient MQTTConf
	client    mqtt.Client
	opts      *mqtt.ClientOptions
	values    Values

	mu      sync.Mutex
	watcher *device.Watcher
}

// MQTTClient is a convenience interface to use within this application.
type MQTTClient interface {
	Start(ctx context.Context) error
	Stop() error
	PublishChanges(elapsed time.Duration)
}

var _ MQTTClient = (*ClientMQTT)(nil)

// NewClient конструктор.
func NewClient(log *logger.Log, cfgClient MQTTConf, values Values) *ClientMQTT {
	if cfgClient.Schema == "" {
		cfgClient.Schema = "tcp"
	}
	cfgClient.Prefix = strings.Trim(cfgClient.Prefix, "/")
	return &ClientMQTT{
		log:       log.Module("mqtt"),
		cfgClient: cfgClient,
		values:    values,
		watcher:   device.NewWatcher(),
	}
}

func (c *ClientMQTT) Start(ctx context.Context) error {
	if c.log.GetLevel() == "debug" || c.log.GetLevel() == "trace" {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	c.ctx = ctx

	c.opts = mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", c.cfgClient.Schema, c.cfgClient.Host, c.cfgClient.Port)).
		SetUsername(c.cfgClient.User).
		SetPassword(c.cfgClient.Password).
		SetDefaultPublishHandler(c.messageHandler).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfgClient.ClientID).
		SetOrderMatters(false).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	c.client = mqtt.NewClient(c.opts)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-c.ctx.Done():
		return errors.New("context canceled")
	}

	c.log.Infof("Status: %v", c.client.IsConnected())
	return nil
}

func (c *ClientMQTT) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(500)
	}
	return nil
}

func (c *ClientMQTT) connectHandler(client mqtt.Client) {
	c.log.Info("client connected to server")

	// publish everything again after a (re)connect
	c.mu.Lock()
	c.watcher.Reset()
	c.mu.Unlock()

	c.sub(client, c.topic("+", "+", setSuffix))
	c.sub(client, c.topic(rawDevice, setSuffix))
}

func (c *ClientMQTT) connectLostHandler(_ mqtt.Client, err error) {
	c.log.Errorf("server connect lost: %v", err)
}

func (c *ClientMQTT) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	c.log.Debugf("received message: %s from topic: %s", msg.Payload(), msg.Topic())
	go func() {
		if err := c.handle(msg.Topic(), msg.Payload()); err != nil {
			c.log.Errorf("message on %s rejected: %v", msg.Topic(), err)
		}
	}()
}

// handle applies one incoming message.
func (c *ClientMQTT) handle(topic string, payload []byte) error {
	r, ok := c.route(topic)
	if !ok {
		return fmt.Errorf("unexpected topic %q", topic)
	}

	if r.raw {
		var data Payload
		if err := json.Unmarshal(payload, &data); err != nil {
			return fmt.Errorf("message could not be parsed (%s): %w", payload, err)
		}
		n := c.values.SetChannels(data)
		c.log.Debugf("raw write: %d of %d channels", n, len(data))
		return nil
	}

	return c.values.Set(r.device, r.param, payloadValue(payload))
}

// route splits <prefix>/<device>/<param>/set and <prefix>/dmx/set.
func (c *ClientMQTT) route(topic string) (route, bool) {
	rest := topic
	if c.cfgClient.Prefix != "" {
		if !strings.HasPrefix(topic, c.cfgClient.Prefix+"/") {
			return route{}, false
		}
		rest = strings.TrimPrefix(topic, c.cfgClient.Prefix+"/")
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 2 && parts[0] == rawDevice && parts[1] == setSuffix:
		return route{raw: true}, true
	case len(parts) == 3 && parts[2] == setSuffix && parts[0] != "" && parts[1] != "":
		return route{device: parts[0], param: parts[1]}, true
	}
	return route{}, false
}

// payloadValue accepts plain text or a JSON string.
func payloadValue(payload []byte) string {
	s := strings.TrimSpace(string(payload))
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}

func (c *ClientMQTT) topic(parts ...string) string {
	if c.cfgClient.Prefix == "" {
		return strings.Join(parts, "/")
	}
	return c.cfgClient.Prefix + "/" + strings.Join(parts, "/")
}

// changes returns the values that changed since the last call.
func (c *ClientMQTT) changes() []device.Value {
	values := c.values.Values()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watcher.Diff(values)
}

// PublishChanges publishes decoded values that changed since the last call.
// It is meant to run from the frame loop.
func (c *ClientMQTT) PublishChanges(time.Duration) {
	if c.client == nil || !c.client.IsConnected() {
		return
	}
	for _, v := range c.changes() {
		c.publish(c.topic(v.Device, v.Param), v.Value)
	}
}

func (c *ClientMQTT) publish(topic, value string) {
	token := c.client.Publish(topic, c.cfgClient.Qos, true, value)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.Errorf("error publish topic %s. %v", topic, token.Error())
			}
		}
	}()
}

func (c *ClientMQTT) sub(client mqtt.Client, topic string) {
	token := client.Subscribe(topic, c.cfgClient.Qos, nil)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.Errorf("topic %s subscription error. %v", topic, token.Error())
				return
			}
		}
		c.log.Debugf("topic %s subscribed", topic)
	}()
}
