package connection

import (
	"sync"
	"time"
)

// keepalive calls probe every interval until stopped. One is created per
// transition into StateReady.
type keepalive struct {
	done chan struct{}
	once sync.Once
}

func startKeepalive(interval time.Duration, probe func()) *keepalive {
	k := &keepalive{done: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-k.done:
				return
			case <-ticker.C:
				probe()
			}
		}
	}()

	return k
}

func (k *keepalive) stop() {
	k.once.Do(func() { close(k.done) })
}
