package replay

import (
	"sync"
	"time"
)

// Task is a running repeating job. Stop is idempotent and never blocks, so
// it is safe to call from inside the job itself.
type Task interface {
	Stop()
}

// Scheduler starts repeating jobs on a fixed interval
type Scheduler interface {
	Every(interval time.Duration, fn func()) Task
}

// TickerScheduler runs jobs on time.Ticker goroutines
type TickerScheduler struct{}

type tickerTask struct {
	stop chan struct{}
	once sync.Once
}

func (t *tickerTask) Stop() {
	t.once.Do(func() { close(t.stop) })
}

func (TickerScheduler) Every(interval time.Duration, fn func()) Task {
	task := &tickerTask{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				// a tick that raced with Stop must not run
				select {
				case <-task.stop:
					return
				default:
				}
				fn()
			case <-task.stop:
				return
			}
		}
	}()
	return task
}
