package push

import (
	"sync"
	"time"
)

// heartbeat ticks at a fixed interval until stopped. It only signals; the
// client decides on its own goroutine whether a ping is still due, so a
// tick racing with a state change is dropped there.
//
// No pong tracking is done. A dead connection is detected by the
// transport, not by missing acknowledgements.
type heartbeat struct {
	stop chan struct{}
	once sync.Once
}

// startHeartbeat calls tick every interval until Stop.
func startHeartbeat(interval time.Duration, tick func()) *heartbeat {
	hb := &heartbeat{stop: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-hb.stop:
				return
			case <-ticker.C:
				tick()
			}
		}
	}()

	return hb
}

// Stop cancels the ticker. Safe to call more than once and on nil.
func (hb *heartbeat) Stop() {
	if hb == nil {
		return
	}
	hb.once.Do(func() {
		close(hb.stop)
	})
}
