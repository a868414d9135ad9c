package chat

import (
	"sync"
	"time"
)

// DefaultStatuses cycle while a reply is pending. They carry no information
// about the actual progress of the request.
var DefaultStatuses = []string{
	"Classifying your question…",
	"Routing to the right specialist…",
	"Reviewing Kansas and Missouri authority…",
	"Drafting the response…",
	"Checking citations…",
}

// statusTicker rotates status strings until stopped. After Stop returns the
// emit func is never called again.
type statusTicker struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startStatusTicker(interval time.Duration, statuses []string, emit func(string)) *statusTicker {
	t := &statusTicker{stop: make(chan struct{}), done: make(chan struct{})}
	if len(statuses) == 0 || interval <= 0 {
		close(t.done)
		return t
	}

	emit(statuses[0])
	go func() {
		defer close(t.done)
		tk := time.NewTicker(interval)
		defer tk.Stop()

		i := 0
		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				select {
				case <-t.stop:
					return
				default:
				}
				i = (i + 1) % len(statuses)
				emit(statuses[i])
			}
		}
	}()
	return t
}

// Stop is idempotent and waits for the rotation goroutine to exit.
func (t *statusTicker) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stop) })
	<-t.done
}
