package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/magvar/internal/core/domain"
	"github.com/samirrijal/magvar/internal/pkg/metrics"
	"github.com/samirrijal/magvar/internal/wire"
)

// Subject layout: raw protowire frames arrive on obs.raw.<deployment>,
// corrected samples leave as JSON on obs.corrected.<deployment>, reprocess
// summaries on obs.events.reprocess.<deployment>.
const (
	subjectRawPrefix       = "obs.raw."
	subjectCorrectedPrefix = "obs.corrected."
	subjectReprocessPrefix = "obs.events.reprocess."
	subjectBroadcast       = "obs.updates.broadcast"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
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

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "OBSERVATIONS_RAW",
			Subjects:  []string{"obs.raw.>"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "OBSERVATIONS_CORRECTED",
			Subjects:  []string{"obs.corrected.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "OBSERVATION_EVENTS",
			Subjects:  []string{"obs.events.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishRawFrame puts a protowire-encoded frame on the raw subject. Used
// by the ingestor to replay recovered instrument files into the pipeline.
func (p *Publisher) PublishRawFrame(ctx context.Context, f *domain.ObservationFrame) error {
	_, err := p.js.Publish(subjectRawPrefix+f.DeploymentID, wire.EncodeFrame(f))
	return err
}

func (p *Publisher) PublishCorrected(ctx context.Context, vs []domain.CorrectedVector) error {
	if len(vs) == 0 {
		return nil
	}
	data, err := json.Marshal(vs)
	if err != nil {
		return err
	}
	if _, err := p.js.Publish(subjectCorrectedPrefix+vs[0].DeploymentID, data); err != nil {
		return err
	}
	metrics.CorrectionsPublished.Add(float64(len(vs)))
	return nil
}

func (p *Publisher) PublishReprocessSummary(ctx context.Context, s *domain.ReprocessSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subjectReprocessPrefix+s.DeploymentID, data)
	return err
}

func (p *Publisher) PublishBroadcast(ctx context.Context, data []byte) error {
	return p.conn.Publish(subjectBroadcast, data)
}

// Connected reports whether the underlying connection is up, for readiness
// probes.
func (p *Publisher) Connected() bool {
	return p.conn.Status() == nats.CONNECTED
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
