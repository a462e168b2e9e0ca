package discovery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// EventSink receives disablement notifications.
type EventSink interface {
	Publish(ctx context.Context, event models.DataSourceDisabledEvent) error
}

// LogSink writes each event as a structured warning.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, event models.DataSourceDisabledEvent) error {
	s.logger.Warn("data source disabled",
		zap.String("database", event.DatabaseName),
		zap.String("group", event.GroupName),
		zap.String("data_source", event.DataSourceName),
		zap.Int64("delay_ms", event.Status.DelayMilliseconds),
	)
	return nil
}

// ChannelSink delivers events to an in-process consumer. Publish blocks
// until the event is received or ctx is done.
type ChannelSink struct {
	events chan models.DataSourceDisabledEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan models.DataSourceDisabledEvent, buffer)}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan models.DataSourceDisabledEvent {
	return s.events
}

func (s *ChannelSink) Publish(ctx context.Context, event models.DataSourceDisabledEvent) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RedisSink publishes events as JSON on a Redis pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Publish(ctx context.Context, event models.DataSourceDisabledEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", s.channel, err)
	}
	return nil
}

// MultiSink fans an event out to every sink and returns the first error.
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, event models.DataSourceDisabledEvent) error {
	var first error
	for _, sink := range m {
		if err := sink.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ EventSink = (*LogSink)(nil)
	_ EventSink = (*ChannelSink)(nil)
	_ EventSink = (*RedisSink)(nil)
	_ EventSink = MultiSink(nil)
)
