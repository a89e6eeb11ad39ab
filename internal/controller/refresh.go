package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "calgrid/internal/log"
)

// loadTimeout bounds a single scheduled reload.
const loadTimeout = 2 * time.Minute

// StartRefresh reloads the documents on the given cron schedule until ctx is
// done. Scheduled reloads never overlap; a run that is still busy when the
// next one is due causes that one to be skipped.
func (c *Controller) StartRefresh(ctx context.Context, schedule string) (stop func(), err error) {
	sched := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := sched.AddFunc(schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, loadTimeout)
		defer cancel()
		if err := c.Reload(runCtx); err != nil && !errors.Is(err, ErrStaleLoad) {
			appLog.Error("scheduled reload failed", err, "schedule", schedule)
		}
	}); err != nil {
		return nil, fmt.Errorf("controller: invalid refresh schedule %q: %w", schedule, err)
	}

	sched.Start()
	appLog.Info("refresh scheduler started", "schedule", schedule)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		<-sched.Stop().Done()
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}, nil
}
