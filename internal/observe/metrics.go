// Package observe holds the OpenTelemetry instruments the bot records and
// the Prometheus bridge that exposes them on /metrics.
//
// All record methods are safe on a nil *Metrics so components can run
// without instrumentation in tests.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ARF-DEV/caffeine_jukebox"

type Metrics struct {
	// Commands counts dispatched chat commands by command and status
	// (ok, error, rejected).
	Commands metric.Int64Counter

	// PlayerEvents counts queue manager events by event name.
	PlayerEvents metric.Int64Counter

	// ActiveQueues tracks guilds with a live playback queue.
	ActiveQueues metric.Int64UpDownCounter

	// CacheLookups counts cache reads by kind (frames, meta) and result
	// (hit, miss, error).
	CacheLookups metric.Int64Counter
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	commands, err := meter.Int64Counter("commands_total",
		metric.WithDescription("Chat commands handled."))
	if err != nil {
		return nil, err
	}
	events, err := meter.Int64Counter("player_events_total",
		metric.WithDescription("Playback queue events emitted."))
	if err != nil {
		return nil, err
	}
	queues, err := meter.Int64UpDownCounter("active_queues",
		metric.WithDescription("Guilds with a playback queue."))
	if err != nil {
		return nil, err
	}
	lookups, err := meter.Int64Counter("cache_lookups_total",
		metric.WithDescription("Cache reads."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Commands:     commands,
		PlayerEvents: events,
		ActiveQueues: queues,
		CacheLookups: lookups,
	}, nil
}

func (m *Metrics) RecordCommand(ctx context.Context, command, status string) {
	if m == nil {
		return
	}
	m.Commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordPlayerEvent(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.PlayerEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func (m *Metrics) QueueOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveQueues.Add(ctx, 1)
}

func (m *Metrics) QueueClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveQueues.Add(ctx, -1)
}

func (m *Metrics) RecordCacheLookup(ctx context.Context, kind, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}
