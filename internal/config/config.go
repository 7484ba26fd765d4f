package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Param types understood by [[device.param]].
const (
	ParamMultiRange = "multirange"
	ParamScalar     = "scalar"
)

// Config структура конфигурации.
type Config struct {
	Logger  LogConf      `toml:"logger"` // Logger - конфигурация регистратора.
	Output  OutputConf   `toml:"output"` // Output - частота кадров.
	ArtNet  ArtNetConf   `toml:"artnet"` // ArtNet - конфигурация драйвера Art-Net.
	MQTT    MQTTConf     `toml:"mqtt"`   // MQTT - конфигурация MQTT клиента.
	HTTP    HTTPConf     `toml:"http"`   // HTTP - конфигурация HTTP API.
	Script  ScriptConf   `toml:"script"` // Script - сценарий Lua, выполняемый каждый кадр.
	Devices []DeviceConf `toml:"device"` // Devices - приборы и их параметры.
}

// LogConf структура конфигурации.
type LogConf struct {
	Level string `toml:"log-level"` // Level - уровень логирования.
}

// OutputConf configures the frame scheduler.
type OutputConf struct {
	Framerate float64 `toml:"framerate"` // Framerate - кадров в секунду, 0 - не запускать.
}

// ArtNetConf configures the Art-Net driver.
type ArtNetConf struct {
	Enabled  bool   `toml:"enabled"`
	Network  string `toml:"network"`  // Network - CIDR сети Art-Net.
	Universe uint16 `toml:"universe"` // Universe: старший байт - SubUni, младший байт - Net.
	MaxFPS   int    `toml:"max-fps"`
}

// MQTTConf структура конфигурации.
type MQTTConf struct {
	Enabled  bool   `toml:"enabled"`
	ClientID string `toml:"clientID"` // ClientID - имя клиента.
	Host     string `toml:"server"`   // Host - адрес MQTT сервера.
	Port     string `toml:"port"`     // Port - порт MQTT сервера.
	User     string `toml:"user"`     // User - логин для подключения к MQTT серверу.
	Password string `toml:"password"` // Password - пароль для подключения к MQTT серверу.
	Qos      byte   `toml:"qos"`      // Qos - качество обслуживания.
	Prefix   string `toml:"prefix"`   // Prefix - корень дерева топиков.
}

// HTTPConf configures the HTTP API.
type HTTPConf struct {
	Enabled     bool     `toml:"enabled"`
	Listen      string   `toml:"listen"`
	CORSOrigins []string `toml:"cors-origins"`
}

// ScriptConf points at a Lua file defining frame(ms).
type ScriptConf struct {
	Path string `toml:"path"`
}

// DeviceConf describes one device patched into the universe.
type DeviceConf struct {
	Name    string      `toml:"name"`
	Address int         `toml:"address"` // Address - стартовый адрес, с 1.
	Params  []ParamConf `toml:"param"`
}

// ParamConf describes one parameter of a device. Channels are relative to the
// device address, starting at 0.
type ParamConf struct {
	Name     string      `toml:"name"`
	Type     string      `toml:"type"`
	Channel  int         `toml:"channel"`  // multirange
	Ranges   []RangeConf `toml:"range"`    // multirange, order matters
	Channels []int       `toml:"channels"` // scalar: coarse[, fine]
	Min      float64     `toml:"min"`      // scalar
	Max      float64     `toml:"max"`      // scalar
}

// RangeConf is one named range of a multirange param.
type RangeConf struct {
	Key    string    `toml:"key"`
	DMX    []int     `toml:"dmx"`
	Values []float64 `toml:"values"`
}

// Default returns a configuration with default values.
func Default() Config {
	return Config{
		Logger: LogConf{Level: "info"},
		Output: OutputConf{Framerate: 30},
		ArtNet: ArtNetConf{
			Network: "192.168.6.0/24",
			MaxFPS:  40,
		},
		MQTT: MQTTConf{
			ClientID: "dmxparams",
			Host:     "localhost",
			Port:     "1883",
			Prefix:   "dmx",
		},
		HTTP: HTTPConf{
			Listen:      ":8080",
			CORSOrigins: []string{"*"},
		},
	}
}

// NewConfig конструктор.
func NewConfig(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &cfg, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

// LoadDotEnv loads .env style files into the environment. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks values the decoder cannot.
func (c *Config) Validate() error {
	if fr := c.Output.Framerate; math.IsNaN(fr) || math.IsInf(fr, 0) {
		return fmt.Errorf("output: framerate must be finite, got %v", fr)
	}
	if c.Output.Framerate < 0 {
		return fmt.Errorf("output: negative framerate %v", c.Output.Framerate)
	}

	names := make(map[string]struct{}, len(c.Devices))
	for _, d := range c.Devices {
		if d.Name == "" {
			return errors.New("device: empty name")
		}
		if _, ok := names[d.Name]; ok {
			return fmt.Errorf("device %q: defined twice", d.Name)
		}
		names[d.Name] = struct{}{}

		for _, p := range d.Params {
			switch p.Type {
			case ParamMultiRange, ParamScalar:
			default:
				return fmt.Errorf("device %q param %q: unknown type %q", d.Name, p.Name, p.Type)
			}
		}
	}
	return nil
}

// applyEnv overrides file values with DMXP_* environment variables.
func (c *Config) applyEnv() {
	c.Logger.Level = getEnv("DMXP_LOG_LEVEL", c.Logger.Level)
	c.Output.Framerate = getEnvFloat("DMXP_FRAMERATE", c.Output.Framerate)
	c.ArtNet.Enabled = getEnvBool("DMXP_ARTNET_ENABLED", c.ArtNet.Enabled)
	c.MQTT.Host = getEnv("DMXP_MQTT_HOST", c.MQTT.Host)
	c.MQTT.Port = getEnv("DMXP_MQTT_PORT", c.MQTT.Port)
	c.MQTT.User = getEnv("DMXP_MQTT_USER", c.MQTT.User)
	c.MQTT.Password = getEnv("DMXP_MQTT_PASSWORD", c.MQTT.Password)
	c.HTTP.Listen = getEnv("DMXP_HTTP_LISTEN", c.HTTP.Listen)
	c.Script.Path = getEnv("DMXP_SCRIPT", c.Script.Path)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}
