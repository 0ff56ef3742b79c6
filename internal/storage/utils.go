package storage

import (
	"context"
	"sync"
	"time"

	"github.com/chrissnell/divesync/internal/log"
)

// HealthChecker is implemented by stores that can report on their backend
type HealthChecker interface {
	CheckHealth(ctx context.Context) *HealthStatus
}

// StartHealthMonitor checks a store's health immediately and then every
// interval until ctx is cancelled, recording results in hm
func StartHealthMonitor(ctx context.Context, hm *HealthManager, name string, checker HealthChecker, interval time.Duration) {
	go func() {
		updateHealth := func() {
			health := checker.CheckHealth(ctx)
			hm.UpdateHealth(name, health)
			log.Debugf("updated %s health status: %s", name, health.Status)
		}

		updateHealth()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				updateHealth()
			case <-ctx.Done():
				log.Infof("stopping %s health monitor", name)
				return
			}
		}
	}()
}

// StartStorageEngine starts a goroutine that stores runs received on the
// returned channel until ctx is cancelled. Failures are logged and passed
// to onError when it is non-nil.
func StartStorageEngine(ctx context.Context, wg *sync.WaitGroup, store ResultStore, onError func(*Run, error)) chan<- *Run {
	log.Infof("starting %s storage engine...", store.Name())
	runChan := make(chan *Run, 10)

	wg.Add(1)
	go processRuns(ctx, wg, runChan, store, onError)
	return runChan
}

func processRuns(ctx context.Context, wg *sync.WaitGroup, runChan <-chan *Run, store ResultStore, onError func(*Run, error)) {
	defer wg.Done()

	for {
		select {
		case r := <-runChan:
			loc, err := store.StoreRun(ctx, r)
			if err != nil {
				log.Errorf("%s run processor error: %v", store.Name(), err)
				if onError != nil {
					onError(r, err)
				}
				continue
			}
			log.Debugf("stored run %s at %s", r.ID, loc)
		case <-ctx.Done():
			log.Infof("cancellation request received. Cancelling %s run processor", store.Name())
			return
		}
	}
}
