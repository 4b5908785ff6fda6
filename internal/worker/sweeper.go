// Package worker hosts the background sweeper that settles bookings
// the request path deliberately leaves unresolved: payment deadlines
// that lapsed and ledger entries past retention.
package worker

import (
	"context"
	"log/slog"
	"time"

	"barberbook/internal/pkg/config"
	"barberbook/internal/usecase/commands"
)

type Sweeper struct {
	expiry    commands.ExpiryCommands
	interval  time.Duration
	batchSize int

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(expiry commands.ExpiryCommands, cfg config.Config) *Sweeper {
	return &Sweeper{
		expiry:    expiry,
		interval:  cfg.Sweeper.Interval,
		batchSize: cfg.Sweeper.BatchSize,
	}
}

func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop waits for an in-flight sweep to finish before returning.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.expiry.ExpireOverdue(ctx, s.batchSize)
	if err != nil {
		slog.Error("expiry sweep failed", "error", err)
	} else if expired > 0 {
		slog.Info("expired overdue bookings", "count", expired)
	}

	purged, err := s.expiry.PurgeIdempotency(ctx)
	if err != nil {
		slog.Error("idempotency purge failed", "error", err)
	} else if purged > 0 {
		slog.Info("purged idempotency records", "count", purged)
	}
}
