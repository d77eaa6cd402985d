// Package mqttclient publishes transcription outcomes to an MQTT broker so
// other services can follow the request stream without polling.
package mqttclient

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/snarg/audioscribe/internal/metrics"
	"github.com/snarg/audioscribe/internal/pipeline"
)

const publishTimeout = 5 * time.Second

// publisher is the part of mqtt.Client used after connecting.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type Client struct {
	conn      mqtt.Client
	pub       publisher
	prefix    string
	connected atomic.Bool
	log       zerolog.Logger
}

type Options struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Log         zerolog.Logger
}

func Connect(opts Options) (*Client, error) {
	c := &Client{
		prefix: strings.Trim(opts.TopicPrefix, "/"),
		log:    opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	c.pub = c.conn
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) onConnect(_ mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Str("topic_prefix", c.prefix).Msg("mqtt connected")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// outcomeEvent is the JSON payload of one outcome message.
type outcomeEvent struct {
	RequestID  string `json:"request_id"`
	Status     string `json:"status"`
	Kind       string `json:"kind,omitempty"`
	Error      string `json:"error,omitempty"`
	TextLen    int    `json:"text_len"`
	Units      int    `json:"units"`
	DurationMs int64  `json:"duration_ms"`
	Timestamp  int64  `json:"timestamp"`
}

// Topic returns the topic for an outcome status.
func (c *Client) Topic(status string) string {
	if c.prefix == "" {
		return "transcriptions/" + status
	}
	return c.prefix + "/transcriptions/" + status
}

// PublishOutcome sends o at QoS 0 without blocking the caller. Delivery
// failures are logged and counted.
func (c *Client) PublishOutcome(o pipeline.Outcome) {
	payload, err := json.Marshal(outcomeEvent{
		RequestID:  o.RequestID,
		Status:     o.Status,
		Kind:       o.Kind,
		Error:      o.Error,
		TextLen:    o.TextLen,
		Units:      o.Units,
		DurationMs: o.Duration.Milliseconds(),
		Timestamp:  time.Now().Unix(),
	})
	if err != nil {
		c.log.Error().Err(err).Msg("marshal outcome event")
		return
	}

	topic := c.Topic(o.Status)
	token := c.pub.Publish(topic, 0, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			c.log.Warn().Str("topic", topic).Msg("mqtt publish timed out")
			metrics.EventsPublishedTotal.WithLabelValues("timeout").Inc()
			return
		}
		if err := token.Error(); err != nil {
			c.log.Warn().Err(err).Str("topic", topic).Msg("mqtt publish failed")
			metrics.EventsPublishedTotal.WithLabelValues("error").Inc()
			return
		}
		metrics.EventsPublishedTotal.WithLabelValues("ok").Inc()
	}()
}

func (c *Client) Close() {
	c.log.Info().Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}
