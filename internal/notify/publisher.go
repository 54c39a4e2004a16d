// Package notify publishes registration lifecycle events so the inbox and
// broadcast side of the platform can react to them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	RegistrationCreated   = "registration.created"
	CancellationRequested = "cancellation.requested"
	CancellationDecided   = "cancellation.decided"
	WaitlistDecided       = "waitlist.decided"
	WaitlistWithdrawn     = "waitlist.withdrawn"
	AttendanceCheckedIn   = "attendance.checked_in"
	EventFinalized        = "event.finalized"
)

// Message is the JSON envelope written to the topic.
type Message struct {
	Type       string    `json:"type"`
	EventID    string    `json:"event_id"`
	MemberID   string    `json:"member_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is the interface used by the service to emit lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Writer is the subset of kafka.Writer we need. This makes the producer testable.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes messages keyed by event id, so all messages of one
// event land on the same partition in order.
type KafkaPublisher struct {
	writer Writer
}

// NewKafkaPublisher creates a publisher writing to the given broker and topic.
func NewKafkaPublisher(broker, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{writer: w}
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish marshals msg to JSON and writes it.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.EventID), Value: b}); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards every message. Used when no broker is configured.
type Nop struct{}

// Publish drops msg.
func (Nop) Publish(context.Context, Message) error { return nil }

// Close is a no-op.
func (Nop) Close() error { return nil }
