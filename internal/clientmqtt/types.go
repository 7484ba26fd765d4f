package clientmqtt

import (
	"dmxparams/internal/device"
	"dmxparams/internal/dmx"
)

type MQTTConf struct {
	ClientID string // ClientID - уникальное имя клиента для брокеров.
	Schema   string // Schema - тип подключения.
	Host     string // Host - адрес MQTT сервера.
	Port     string // Port - порт MQTT сервера.
	User     string // User - логин для подключения к MQTT серверу.
	Password string // Password - пароль для подключения к MQTT серверу.
	Qos      byte   // Qos - качество обслуживания.
	Prefix   string // Prefix - корень дерева топиков.
}

// Values is the device state the bridge reads and writes.
type Values interface {
	Set(device, param, value string) error
	SetChannels(values []dmx.ChannelValue) int
	Values() []device.Value
}

// Payload is the body of <prefix>/dmx/set: raw channel writes.
type Payload []dmx.ChannelValue

// route is where an incoming message goes.
type route struct {
	raw    bool
	device string
	param  string
}
