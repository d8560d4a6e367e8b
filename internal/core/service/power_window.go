package service

import (
	"sync"
	"time"
)

type powerSample struct {
	power float64
	at    time.Time
}

// PowerWindow keeps a rolling average of power samples over a fixed time window.
type PowerWindow struct {
	window  time.Duration
	samples []powerSample
	lock    sync.Mutex
}

func NewPowerWindow(window time.Duration) *PowerWindow {
	return &PowerWindow{window: window}
}

func (w *PowerWindow) Window() time.Duration {
	return w.window
}

func (w *PowerWindow) Add(power float64, at time.Time) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.samples = append(w.samples, powerSample{power: power, at: at})
	w.prune(at)
}

// Average returns the mean of the samples within the window ending at now.
// ok is false when the window is empty.
func (w *PowerWindow) Average(now time.Time) (avg float64, ok bool) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.prune(now)
	if len(w.samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range w.samples {
		sum += s.power
	}
	return sum / float64(len(w.samples)), true
}

func (w *PowerWindow) Len() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return len(w.samples)
}

func (w *PowerWindow) Clear() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.samples = nil
}

func (w *PowerWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.samples) && !w.samples[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}
