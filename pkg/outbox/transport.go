package outbox

import "context"

// Message is a broker-neutral outbox publication.
type Message struct {
	// Key orders messages of one aggregate (Kafka partition key, Pub/Sub ordering key).
	Key        string
	Data       []byte
	Attributes map[string]string
}

// Transport delivers outbox messages to a broker.
type Transport interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Ping(ctx context.Context) error
	Close() error
}
