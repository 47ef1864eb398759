package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Baseline struct {
	Mean   float64 `yaml:"mean"`
	Stddev float64 `yaml:"stddev"`
}

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	MQTT struct {
		Broker   string `yaml:"broker"`
		Port     int    `yaml:"port"`
		Topic    string `yaml:"topic"`
		ClientID string `yaml:"clientID"`
	} `yaml:"mqtt"`
	Window struct {
		Readings int `yaml:"readings"`
		Alerts   int `yaml:"alerts"`
	} `yaml:"window"`
	Subscriber struct {
		Buffer int `yaml:"buffer"`
	} `yaml:"subscriber"`
	Storage struct {
		Path string `yaml:"path"` // empty disables the bbolt alert archive
	} `yaml:"storage"`
	Model struct {
		Contamination float64             `yaml:"contamination"`
		Seed          int64               `yaml:"seed"`
		TrainSamples  int                 `yaml:"trainSamples"`
		Baseline      map[string]Baseline `yaml:"baseline"`
	} `yaml:"model"`
	Tracing struct {
		Enabled      bool    `yaml:"enabled"`
		ServiceName  string  `yaml:"serviceName"`
		OTLPEndpoint string  `yaml:"otlpEndpoint"`
		SampleRatio  float64 `yaml:"sampleRatio"`
	} `yaml:"tracing"`
}

// Load reads the yaml config at path (missing file is fine, defaults apply)
// and layers the MQTT_* environment overrides on top.
func Load(path string) (*Config, error) {
	var c Config
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	if c.Server.Addr == "" { c.Server.Addr = ":5000" }
	if c.MQTT.Broker == "" { c.MQTT.Broker = "localhost" }
	if c.MQTT.Port == 0 { c.MQTT.Port = 1883 }
	if c.MQTT.Topic == "" { c.MQTT.Topic = "sensor/data" }
	if c.MQTT.ClientID == "" { c.MQTT.ClientID = "iot-sensor-monitor" }
	if c.Window.Readings == 0 { c.Window.Readings = 1000 }
	if c.Window.Alerts == 0 { c.Window.Alerts = 10000 }
	if c.Subscriber.Buffer == 0 { c.Subscriber.Buffer = 256 }
	if c.Model.Contamination == 0 { c.Model.Contamination = 0.05 }
	if c.Model.Seed == 0 { c.Model.Seed = 42 }
	if c.Model.TrainSamples == 0 { c.Model.TrainSamples = 512 }
	if c.Model.Baseline == nil {
		c.Model.Baseline = map[string]Baseline{
			"temperature": {Mean: 22, Stddev: 5},
			"humidity":    {Mean: 50, Stddev: 10},
			"pressure":    {Mean: 1013, Stddev: 5},
		}
	}

	// MQTT connection parameters are environment-configured for the adapter.
	if v := os.Getenv("MQTT_BROKER"); v != "" { c.MQTT.Broker = v }
	if v := os.Getenv("MQTT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil { c.MQTT.Port = p }
	}
	if v := os.Getenv("MQTT_TOPIC"); v != "" { c.MQTT.Topic = v }

	return &c, nil
}
