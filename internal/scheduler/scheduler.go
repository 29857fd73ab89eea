package scheduler

import (
	"context"
	"time"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/config"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/service"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// failedReceiptStatuses is the sweep order of the scheduled receipt
// recovery pass.
var failedReceiptStatuses = []domain.ReceiptStatus{
	domain.ReceiptStatusInserted,
	domain.ReceiptStatusFailed,
	domain.ReceiptStatusNotQueueSent,
}

// Scheduler runs the periodic recovery sweeps. Each loop is gated by
// its feature flag: a disabled loop never starts, so it performs zero
// store calls.
type Scheduler struct {
	recovery service.RecoveryService
	cfg      config.Recovery
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewScheduler(recovery service.RecoveryService, cfg config.Recovery, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		recovery: recovery,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("scheduler/recovery"),
	}
}

// Start launches the enabled loops and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.FailedEnabled && !s.cfg.CartEnabled && !s.cfg.NotNotifiedEnabled {
		mylogger.Info(ctx, s.logger, "All recovery loops disabled, scheduler idle")
		<-ctx.Done()
		return
	}

	if s.cfg.FailedEnabled {
		go s.runLoop(ctx, "recover-failed-receipts", s.cfg.FailedInterval, s.sweepFailedReceipts)
	}
	if s.cfg.CartEnabled {
		go s.runLoop(ctx, "recover-failed-carts", s.cfg.CartInterval, s.sweepFailedCarts)
	}
	if s.cfg.NotNotifiedEnabled {
		go s.runLoop(ctx, "recover-not-notified", s.cfg.NotNotifiedInterval, s.sweepNotNotified)
	}

	<-ctx.Done()
}

func (s *Scheduler) runLoop(ctx context.Context, name string, interval time.Duration, sweep func(context.Context) error) {
	mylogger.Info(
		ctx,
		s.logger,
		"Starting recovery loop",
		zap.String("loop", name),
		zap.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, s.logger, "Recovery loop stopping", zap.String("loop", name))
			return
		case <-ticker.C:
			sweepCtx, span := s.tracer.Start(ctx, "Scheduler.sweep")
			span.SetAttributes(attribute.String("loop", name))

			if err := sweep(sweepCtx); err != nil {
				span.RecordError(err)
				mylogger.Error(
					sweepCtx,
					s.logger,
					"Recovery sweep failed",
					zap.String("loop", name),
					zap.Error(err),
				)
			}
			span.End()
		}
	}
}

func (s *Scheduler) sweepFailedReceipts(ctx context.Context) error {
	for _, status := range failedReceiptStatuses {
		result, err := s.recovery.MassiveRecover(ctx, status)
		if err != nil {
			return err
		}

		mylogger.Info(
			ctx,
			s.logger,
			"Failed receipt sweep pass finished",
			zap.String("status", string(status)),
			zap.Int("recovered", len(result.Receipts)),
			zap.Int("errors", result.ErrorCount),
		)
	}
	return nil
}

func (s *Scheduler) sweepFailedCarts(ctx context.Context) error {
	for _, status := range []domain.CartStatus{domain.CartStatusInserted, domain.CartStatusFailed} {
		result, err := s.recovery.MassiveRecoverCarts(ctx, status)
		if err != nil {
			return err
		}

		mylogger.Info(
			ctx,
			s.logger,
			"Failed cart sweep pass finished",
			zap.String("status", string(status)),
			zap.Int("recovered", len(result.Carts)),
			zap.Int("errors", result.ErrorCount),
		)
	}
	return nil
}

func (s *Scheduler) sweepNotNotified(ctx context.Context) error {
	result, err := s.recovery.MassiveRestoreNotNotified(ctx, domain.ReceiptStatusIOErrorToNotify)
	if err != nil {
		return err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Not-notified sweep finished",
		zap.Int("restored", len(result.Receipts)),
		zap.Int("errors", result.ErrorCount),
	)
	return nil
}
