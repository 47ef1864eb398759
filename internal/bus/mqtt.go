// Package bus consumes sensor readings from the MQTT broker.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/logger"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/metrics"
)

type Config struct {
	Broker   string
	Port     int
	Topic    string
	ClientID string
}

// Consumer owns the subscription connection for the process lifetime and
// feeds decoded messages into the pipeline. Reconnect with backoff is
// explicit: the session manager redials until the context is cancelled.
type Consumer struct {
	log    *logger.Logger
	cfg    Config
	submit func(raw map[string]any) error
}

func NewConsumer(log *logger.Logger, cfg Config, submit func(raw map[string]any) error) *Consumer {
	return &Consumer{log: log, cfg: cfg, submit: submit}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	u, err := url.Parse(fmt.Sprintf("mqtt://%s:%d", c.cfg.Broker, c.cfg.Port))
	if err != nil {
		return fmt.Errorf("broker url: %w", err)
	}

	cm, err := autopaho.NewConnection(ctx, autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		ConnectRetryDelay:             2 * time.Second,
		OnConnectionUp: func(mgr *autopaho.ConnectionManager, _ *paho.Connack) {
			metrics.BusReconnects.Inc()
			c.log.Info().Str("broker", u.Host).Str("topic", c.cfg.Topic).Msg("mqtt connected")
			if _, err := mgr.Subscribe(ctx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{{Topic: c.cfg.Topic, QoS: 1}},
			}); err != nil {
				c.log.Error().Err(err).Msg("mqtt subscribe failed")
			}
		},
		OnConnectError: func(err error) {
			c.log.Warn().Err(err).Msg("mqtt connect error, retrying")
		},
		ClientConfig: paho.ClientConfig{
			ClientID:          c.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){c.onMessage},
			OnClientError: func(err error) {
				c.log.Warn().Err(err).Msg("mqtt client error")
			},
		},
	})
	if err != nil {
		return fmt.Errorf("mqtt connection: %w", err)
	}

	<-ctx.Done()
	<-cm.Done()
	return nil
}

func (c *Consumer) onMessage(pr paho.PublishReceived) (bool, error) {
	metrics.BusMessages.Inc()
	var raw map[string]any
	if err := json.Unmarshal(pr.Packet.Payload, &raw); err != nil {
		metrics.BusDropped.Inc()
		c.log.Warn().Err(err).Str("topic", pr.Packet.Topic).Msg("dropping undecodable message")
		return true, nil
	}
	if err := c.submit(raw); err != nil {
		metrics.BusDropped.Inc()
		c.log.Warn().Err(err).Str("topic", pr.Packet.Topic).Msg("dropping malformed message")
	}
	return true, nil
}
