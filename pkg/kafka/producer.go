package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/replenish-backend/pkg/config"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/outbox"
)

const defaultWriteTimeout = 10 * time.Second

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Producer publishes outbox messages to Kafka, keyed by aggregate.
type Producer struct {
	writer       messageWriter
	brokers      []string
	writeTimeout time.Duration
	dial         dialFunc
}

// NewProducer builds a synchronous writer; the topic is set per message.
func NewProducer(ctx context.Context, cfg config.KafkaConfig, logg *logger.Logger) (*Producer, error) {
	brokers := cleanBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: timeout,
	}

	p := &Producer{
		writer:       writer,
		brokers:      brokers,
		writeTimeout: timeout,
		dial:         brokerDialer(timeout),
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "brokers", strings.Join(brokers, ",")), "kafka producer initialized")
	}
	return p, nil
}

// brokerDialer adapts kafka.Dialer, which returns *kafka.Conn, to dialFunc.
func brokerDialer(timeout time.Duration) dialFunc {
	d := &kafka.Dialer{Timeout: timeout}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Publish writes msg to topic and waits for all in-sync replicas.
func (p *Producer) Publish(ctx context.Context, topic string, msg outbox.Message) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka producer not initialized")
	}
	if strings.TrimSpace(topic) == "" {
		return errors.New("kafka topic is required")
	}
	return p.writer.WriteMessages(ctx, toKafkaMessage(topic, msg))
}

// Ping dials the first reachable broker.
func (p *Producer) Ping(ctx context.Context) error {
	if p == nil || p.dial == nil {
		return errors.New("kafka producer not initialized")
	}
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := p.dial(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func toKafkaMessage(topic string, msg outbox.Message) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Attributes))
	for k, v := range msg.Attributes {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	out := kafka.Message{
		Topic:   topic,
		Value:   msg.Data,
		Headers: headers,
	}
	if msg.Key != "" {
		out.Key = []byte(msg.Key)
	}
	return out
}

func cleanBrokers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, b := range in {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var _ outbox.Transport = (*Producer)(nil)
