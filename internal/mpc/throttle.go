package mpc

import (
	"log"
	"sync"
	"time"
)

// warnThrottle rate-limits repeated warning logs per message key so a
// persistently failing cycle does not flood the log at the control rate.
type warnThrottle struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
}

func newWarnThrottle(interval time.Duration) *warnThrottle {
	return &warnThrottle{interval: interval, last: make(map[string]time.Time)}
}

func (w *warnThrottle) Warnf(key, format string, args ...any) {
	w.mu.Lock()
	now := time.Now()
	ok := now.Sub(w.last[key]) >= w.interval
	if ok {
		w.last[key] = now
	}
	w.mu.Unlock()
	if ok {
		log.Printf(format, args...)
	}
}
