package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"github.com/capitalize-ai/file-analysis/pkg/logger"
)

// DefaultRetentionCron sweeps hourly.
const DefaultRetentionCron = "0 * * * *"

// StartRetention schedules sweeps of artifacts older than maxAge according to
// cronExpr. A non-positive maxAge disables retention. The returned cancel
// func stops the scheduler.
func StartRetention(ctx context.Context, store *Store, cronExpr string, maxAge time.Duration, log *logger.Logger) (context.CancelFunc, error) {
	if maxAge <= 0 {
		log.Info("artifact retention disabled")
		return func() {}, nil
	}

	if cronExpr == "" {
		cronExpr = DefaultRetentionCron
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid retention cron expression: %s", cronExpr)
	}

	ctx, cancel := context.WithCancel(ctx)
	go runScheduler(ctx, store, cronExpr, maxAge, log)

	log.Info("artifact retention enabled",
		zap.String("cron", cronExpr),
		zap.Duration("max_age", maxAge),
		zap.String("dir", store.Dir()),
	)
	return cancel, nil
}

func runScheduler(ctx context.Context, store *Store, cronExpr string, maxAge time.Duration, log *logger.Logger) {
	for {
		next, err := gronx.NextTickAfter(cronExpr, time.Now().UTC(), false)
		if err != nil {
			log.Error("retention next tick failed", zap.String("cron", cronExpr), zap.Error(err))
			next = time.Now().Add(30 * time.Second)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("artifact retention stopping")
			return
		case <-timer.C:
		}

		removed, err := store.Sweep(time.Now(), maxAge)
		if err != nil {
			log.Error("artifact sweep failed", zap.Error(err))
		}
		if removed > 0 {
			log.Info("artifacts removed", zap.Int("count", removed))
		}
	}
}
