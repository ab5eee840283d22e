package natsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/magvar/internal/core/domain"
	"github.com/samirrijal/magvar/internal/pkg/metrics"
	"github.com/samirrijal/magvar/internal/wire"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber sharing a NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeRawFrames consumes protowire frames from the raw subject.
// Frames that fail to decode or process are Nak'd and redelivered up to
// MaxDeliver times.
func (s *Subscriber) SubscribeRawFrames(ctx context.Context, handler func(ctx context.Context, f *domain.ObservationFrame) error) error {
	tracer := otel.Tracer("magvar/nats")

	sub, err := s.js.Subscribe("obs.raw.>", func(msg *nats.Msg) {
		f, err := wire.DecodeFrame(msg.Data)
		if err != nil {
			slog.Warn("undecodable frame", "subject", msg.Subject, "error", err)
			metrics.FramesConsumed.WithLabelValues("decode_error").Inc()
			_ = msg.Nak()
			return
		}

		hctx, span := tracer.Start(ctx, "frame.process", trace.WithAttributes(
			attribute.String("deployment", f.DeploymentID),
			attribute.Int("samples", len(f.Times)),
		))
		err = handler(hctx, f)
		if err != nil {
			span.RecordError(err)
		}
		span.End()

		if err != nil {
			metrics.FramesConsumed.WithLabelValues("error").Inc()
			_ = msg.Nak()
			return
		}
		metrics.FramesConsumed.WithLabelValues("ok").Inc()
		_ = msg.Ack()
	},
		nats.Durable("frame-corrector"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
