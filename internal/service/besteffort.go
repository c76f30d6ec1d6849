package service

import (
	"context"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/d60-Lab/fanline/pkg/logger"
)

// BestEffort runs secondary side effects (cache updates, presence publishes,
// notification fan-out) whose failure must never propagate into the caller's
// result. Failures are logged, reported to sentry and pushed onto an observable
// error channel instead.
type BestEffort struct {
	errs chan error
}

func NewBestEffort() *BestEffort {
	return &BestEffort{errs: make(chan error, 1024)}
}

func (b *BestEffort) Do(ctx context.Context, task string, fn func(context.Context) error) {
	err := fn(ctx)
	if err == nil {
		return
	}
	logger.Warn("best-effort task failed", zap.String("task", task), zap.Error(err))
	sentry.CaptureException(err)
	select {
	case b.errs <- err:
	default:
	}
}

// Errors exposes swallowed failures for metrics/tests.
func (b *BestEffort) Errors() <-chan error { return b.errs }
