package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer is the shared producer for outbox dispatch. The topic is set per
// message by the dispatcher, so one writer serves every event stream.
type Writer struct {
	*kafka.Writer
}

func NewWriter(brokers []string) *Writer {
	return &Writer{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}
