package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Event is one credential lifecycle record. It is also the public
// passport.AuditEvent.
type Event struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	UserID     string            `json:"user_id,omitempty"`
	PlayerUUID string            `json:"player_uuid,omitempty"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type Sink interface {
	Emit(ctx context.Context, event Event)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a reader of Events. Emit blocks while the
// channel is full unless ctx ends first.
type ChannelSink struct {
	out chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{out: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.out <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.out
}

// JSONWriterSink writes newline-delimited JSON. Encoding and write errors
// are ignored.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	_ = s.enc.Encode(event)
	s.mu.Unlock()
}

// SlogSink logs each event at Info, or Warn for failures.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return SlogSink{logger: logger.With("component", "audit")}
}

func (s SlogSink) Emit(ctx context.Context, event Event) {
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("event_id", event.ID),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.PlayerUUID != "" {
		attrs = append(attrs, slog.String("player_uuid", event.PlayerUUID))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip", event.IP))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	s.logger.LogAttrs(ctx, level, "audit event", attrs...)
}

// MultiSink forwards each event to every non-nil sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
