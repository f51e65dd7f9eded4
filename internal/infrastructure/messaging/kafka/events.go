package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DiscourseLens/pkg/errors"
	"github.com/turtacn/DiscourseLens/pkg/types/common"
)

const (
	TopicAnalysisRequested = "dlens.analysis.requests"
	TopicAnalysisCompleted = "dlens.analysis.completed"

	EventAnalysisRequested = "analysis.requested"
	EventAnalysisCompleted = "analysis.completed"
	SchemaVersion          = "v1"
)

// EventEnvelope standardizes event messages.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TraceID       string            `json:"trace_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// AnalysisCompletedPayload is emitted once per finished analysis.
type AnalysisCompletedPayload struct {
	RunID      string   `json:"run_id"`
	DocumentID string   `json:"document_id"`
	Topics     []string `json:"topics"`
	Paragraphs int      `json:"paragraphs"`
	DurationMS int64    `json:"duration_ms"`
	Cached     bool     `json:"cached,omitempty"`
}

// AnalysisRequestedPayload asks a worker to analyze a stored document.
type AnalysisRequestedPayload struct {
	RequestID string `json:"request_id"`
	Object    string `json:"object"`
	Local     []int  `json:"local,omitempty"`
	MinTopics int    `json:"min_topics,omitempty"`
}

func NewEventEnvelope(eventType string, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       data,
	}, nil
}

func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "empty payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal payload")
	}
	return nil
}

// ToMessage encodes the envelope, keyed by key so that events for one
// document land on one partition.
func (e *EventEnvelope) ToMessage(topic string, key string) (*common.ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	headers := map[string]string{
		"event_type":     e.EventType,
		"source_service": e.Source,
		"schema_version": e.SchemaVersion,
	}
	if e.TraceID != "" {
		headers["trace_id"] = e.TraceID
	}
	return &common.ProducerMessage{
		Topic:     topic,
		Key:       []byte(key),
		Value:     val,
		Headers:   headers,
		Timestamp: e.Timestamp,
	}, nil
}

func DecodeEnvelope(value []byte) (*EventEnvelope, error) {
	if len(value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// MessageToEnvelope decodes a consumed message and checks its event type.
func MessageToEnvelope(msg *common.Message, eventType string) (*EventEnvelope, error) {
	if msg == nil {
		return nil, errors.New(errors.ErrCodeValidation, "nil message")
	}
	env, err := DecodeEnvelope(msg.Value)
	if err != nil {
		return nil, err
	}
	if eventType != "" && env.EventType != eventType {
		return nil, errors.Newf(errors.ErrCodeValidation, "unexpected event type %q", env.EventType)
	}
	return env, nil
}

// MessagePublisher is the part of Producer the event publisher needs.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *common.ProducerMessage) error
	Close() error
}

// EventPublisher turns analysis results into envelopes on one topic.
type EventPublisher struct {
	producer MessagePublisher
	topic    string
	source   string
	logger   logging.Logger
}

func NewEventPublisher(producer MessagePublisher, topic, source string, logger logging.Logger) *EventPublisher {
	if topic == "" {
		topic = TopicAnalysisCompleted
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &EventPublisher{producer: producer, topic: topic, source: source, logger: logger}
}

func (p *EventPublisher) PublishAnalysisCompleted(ctx context.Context, payload AnalysisCompletedPayload) error {
	env, err := NewEventEnvelope(EventAnalysisCompleted, p.source, payload)
	if err != nil {
		return err
	}
	env.TraceID = payload.RunID
	msg, err := env.ToMessage(p.topic, payload.DocumentID)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("analysis event published",
		logging.String("run_id", payload.RunID),
		logging.String("event_id", env.EventID))
	return nil
}

// PublishAnalysisRequested submits a request keyed by the object so that
// repeated requests for one document stay ordered.  A missing request ID
// is generated and returned.
func (p *EventPublisher) PublishAnalysisRequested(ctx context.Context, payload AnalysisRequestedPayload) (string, error) {
	if payload.Object == "" {
		return "", errors.InvalidParam("object is required")
	}
	if payload.RequestID == "" {
		payload.RequestID = uuid.NewString()
	}
	env, err := NewEventEnvelope(EventAnalysisRequested, p.source, payload)
	if err != nil {
		return "", err
	}
	env.TraceID = payload.RequestID
	msg, err := env.ToMessage(p.topic, payload.Object)
	if err != nil {
		return "", err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return "", err
	}
	p.logger.Info("analysis request submitted",
		logging.String("request_id", payload.RequestID),
		logging.String("object", payload.Object))
	return payload.RequestID, nil
}

func (p *EventPublisher) Close() error {
	return p.producer.Close()
}
