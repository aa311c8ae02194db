package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/segmentio/kafka-go"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"
)

// Gateway delivers a notification to the external push transport
type Gateway interface {
	Send(ctx context.Context, n Notification) error
	Close() error
}

// Config defines fields parsed from environment variables
type Config struct {
	Transport    string        `env:"PUSH_TRANSPORT" envDefault:"http"`
	GatewayURL   string        `env:"PUSH_GATEWAY_URL"`
	Timeout      time.Duration `env:"PUSH_TIMEOUT" envDefault:"3s"`
	KafkaBrokers string        `env:"KAFKA_BROKERS"`
	Topic        string        `env:"PUSH_TOPIC" envDefault:"push.notifications"`
}

// NewGateway builds gateway selected by cfg.Transport
func NewGateway(cfg Config) (Gateway, error) {
	switch cfg.Transport {
	case "http":
		if cfg.GatewayURL == "" {
			return nil, errors.New("PUSH_GATEWAY_URL is required for http transport")
		}
		return NewHTTPGateway(cfg.GatewayURL, &http.Client{Timeout: cfg.Timeout}), nil
	case "kafka":
		if cfg.KafkaBrokers == "" {
			return nil, errors.New("KAFKA_BROKERS is required for kafka transport")
		}
		return NewKafkaGateway(strings.Split(cfg.KafkaBrokers, ","), cfg.Topic), nil
	case "none", "":
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown push transport %q", cfg.Transport)
	}
}

// HTTPGateway posts notifications as JSON to the notification gateway endpoint
type HTTPGateway struct {
	url    string
	client *http.Client
}

func NewHTTPGateway(url string, client *http.Client) *HTTPGateway {
	return &HTTPGateway{url: url, client: client}
}

func (g *HTTPGateway) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push gateway responded %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	return nil
}

func (g *HTTPGateway) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

// KafkaGateway publishes notifications to a topic consumed by the push sender, keyed by token
type KafkaGateway struct {
	w *kafka.Writer
}

func NewKafkaGateway(brokers []string, topic string) *KafkaGateway {
	return &KafkaGateway{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (g *KafkaGateway) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return g.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.Token),
		Value: payload,
		Time:  time.Now(),
	})
}

func (g *KafkaGateway) Close() error {
	return g.w.Close()
}

// Discard drops every notification
type Discard struct{}

func (Discard) Send(context.Context, Notification) error { return nil }

func (Discard) Close() error { return nil }
