package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/nerrad567/rbac-core/internal/audit"
	"github.com/nerrad567/rbac-core/internal/auth"
)

// Fanout records each event on every sink.
type Fanout []auth.EventSink

// Record implements auth.EventSink.
func (f Fanout) Record(ctx context.Context, e auth.Event) {
	for _, s := range f {
		s.Record(ctx, e)
	}
}

// AuditSink writes events to the audit trail.
type AuditSink struct {
	repo   audit.Repository
	logger *slog.Logger
}

// NewAuditSink creates a sink backed by repo.
func NewAuditSink(repo audit.Repository, logger *slog.Logger) *AuditSink {
	return &AuditSink{repo: repo, logger: logger}
}

// Record implements auth.EventSink.
func (s *AuditSink) Record(ctx context.Context, e auth.Event) {
	entry := toAuditEntry(e)
	// The request may already be cancelled (client gone after a failed
	// signin); the audit row must still be written.
	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("failed to write audit entry", "action", entry.Action, "error", err)
	}
}

func toAuditEntry(e auth.Event) *audit.Entry {
	details := make(map[string]any, len(e.Details)+3)
	for k, v := range e.Details {
		details[k] = v
	}
	if e.Identifier != "" {
		details["identifier"] = e.Identifier
	}
	if e.ClientIP != "" {
		details["client_ip"] = e.ClientIP
	}
	if e.Reason != "" {
		details["reason"] = e.Reason
	}

	return &audit.Entry{
		Action:     string(e.Type),
		EntityType: "user",
		EntityID:   e.UserID,
		UserID:     e.UserID,
		Source:     "api",
		Details:    details,
		CreatedAt:  e.At,
	}
}

// Publisher is the part of the MQTT client MQTTSink needs.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// TopicFunc maps an event type to its topic.
type TopicFunc func(eventType string) string

// MQTTSink publishes events as JSON.
type MQTTSink struct {
	pub    Publisher
	topic  TopicFunc
	logger *slog.Logger
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub Publisher, topic TopicFunc, logger *slog.Logger) *MQTTSink {
	return &MQTTSink{pub: pub, topic: topic, logger: logger}
}

// mqttEvent is the published payload. Identifier and client IP are left
// out; subscribers that need them read the audit log.
type mqttEvent struct {
	Type      string         `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// Record implements auth.EventSink.
func (s *MQTTSink) Record(_ context.Context, e auth.Event) {
	payload := mqttEvent{
		Type:      string(e.Type),
		UserID:    e.UserID,
		Reason:    e.Reason,
		Details:   e.Details,
		Timestamp: e.At.UTC().Format(time.RFC3339),
	}
	if err := s.pub.PublishJSON(s.topic(string(e.Type)), payload); err != nil {
		s.logger.Debug("auth event not published", "type", e.Type, "error", err)
	}
}

// PointWriter is the part of the InfluxDB client MetricsSink needs.
type PointWriter interface {
	WriteAuthEvent(eventType, reason string, at time.Time)
}

// MetricsSink counts events in InfluxDB.
type MetricsSink struct {
	w PointWriter
}

// NewMetricsSink creates a sink writing through w.
func NewMetricsSink(w PointWriter) *MetricsSink {
	return &MetricsSink{w: w}
}

// Record implements auth.EventSink.
func (s *MetricsSink) Record(_ context.Context, e auth.Event) {
	s.w.WriteAuthEvent(string(e.Type), e.Reason, e.At)
}
