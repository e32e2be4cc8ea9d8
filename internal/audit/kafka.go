package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrQueueFull is returned when a record is dropped because the publisher
// is behind.
var ErrQueueFull = errors.New("audit queue full")

const (
	kafkaQueueSize     = 256
	kafkaMaxBatch      = 50
	kafkaFlushInterval = 500 * time.Millisecond
	kafkaWriteTimeout  = 5 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes records to a Kafka topic, keyed by agent name. Write
// only enqueues; a background goroutine batches and produces, so a slow or
// unreachable broker never stalls the caller.
type KafkaSink struct {
	w       messageWriter
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan kafka.Message
	done   chan struct{}
}

// NewKafkaSink returns a sink producing to topic on the comma-separated
// brokers.
func NewKafkaSink(brokers, topic string) *KafkaSink {
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaSink(w, kafkaQueueSize, kafkaWriteTimeout)
}

func newKafkaSink(w messageWriter, queueSize int, timeout time.Duration) *KafkaSink {
	s := &KafkaSink{
		w:       w,
		timeout: timeout,
		queue:   make(chan kafka.Message, queueSize),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *KafkaSink) Write(_ context.Context, rec Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:     []byte(rec.Agent),
		Value:   value,
		Headers: []kafka.Header{{Key: "type", Value: []byte(rec.Type)}},
		Time:    time.Now(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("audit kafka sink closed")
	}
	select {
	case s.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *KafkaSink) run() {
	defer close(s.done)

	buf := make([]kafka.Message, 0, kafkaMaxBatch)
	timer := time.NewTimer(kafkaFlushInterval)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-s.queue:
			if !ok {
				s.flush(buf)
				return
			}
			buf = append(buf, msg)
			if len(buf) >= kafkaMaxBatch {
				s.flush(buf)
				buf = buf[:0]
				timer.Reset(kafkaFlushInterval)
			}
		case <-timer.C:
			s.flush(buf)
			buf = buf[:0]
			timer.Reset(kafkaFlushInterval)
		}
	}
}

func (s *KafkaSink) flush(batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.w.WriteMessages(ctx, batch...); err != nil {
		slog.Warn("Audit publish failed", "records", len(batch), "error", err)
	}
}

// Close flushes queued records and closes the writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.w.Close()
}
