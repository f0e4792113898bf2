package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"vpuppets-console/system"
)

// TelemetryFeed subscribes to the live log stream and ingests every message
type TelemetryFeed struct {
	url     string
	subject string
	ingest  *IngestService
	logger  *zap.Logger

	nc  *nats.Conn
	sub *nats.Subscription

	mu       sync.Mutex
	received int64
	rejected int64
}

func NewTelemetryFeed(url, subject string, ingest *IngestService) *TelemetryFeed {
	return &TelemetryFeed{
		url:     url,
		subject: subject,
		ingest:  ingest,
		logger:  system.L().Named("telemetry"),
	}
}

// Start connects and subscribes. It returns once the subscription is live.
func (f *TelemetryFeed) Start() error {
	opts := []nats.Option{
		nats.Name("vpuppets-console"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				f.logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			f.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(f.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", f.url, err)
	}

	sub, err := nc.Subscribe(f.subject, func(msg *nats.Msg) {
		f.handle(msg.Data)
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", f.subject, err)
	}

	f.nc = nc
	f.sub = sub
	f.logger.Info("Telemetry feed started", zap.String("url", f.url), zap.String("subject", f.subject))
	return nil
}

func (f *TelemetryFeed) handle(data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := f.ingest.IngestJSON(ctx, data, "nats")

	f.mu.Lock()
	f.received++
	if err != nil {
		f.rejected++
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Debug("Dropped telemetry message", zap.Error(err), zap.Int("bytes", len(data)))
	}
}

// Stats returns received and rejected message counts
func (f *TelemetryFeed) Stats() (received, rejected int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.received, f.rejected
}

// Stop drains the subscription and closes the connection
func (f *TelemetryFeed) Stop() {
	if f.sub != nil {
		if err := f.sub.Unsubscribe(); err != nil {
			f.logger.Warn("Failed to unsubscribe", zap.Error(err))
		}
	}
	if f.nc != nil {
		if err := f.nc.Drain(); err != nil {
			f.nc.Close()
		}
	}
	received, rejected := f.Stats()
	f.logger.Info("Telemetry feed stopped", zap.Int64("received", received), zap.Int64("rejected", rejected))
}
