package clocksync

import (
	"sync"
	"time"
)

// Source is a free-running millisecond counter. It wraps around at 2^32.
type Source interface {
	Millis() uint32
}

// SystemSource counts milliseconds since it was created.
type SystemSource struct {
	start time.Time
}

// NewSystemSource creates a SystemSource starting at zero.
func NewSystemSource() *SystemSource {
	return &SystemSource{start: time.Now()}
}

// Millis implements Source.
func (s *SystemSource) Millis() uint32 {
	return uint32(time.Since(s.start) / time.Millisecond)
}

// ManualSource is advanced explicitly, for tests and simulations.
type ManualSource struct {
	lock sync.Mutex
	now  uint32
}

// NewManualSource creates a ManualSource at start.
func NewManualSource(start uint32) *ManualSource {
	return &ManualSource{now: start}
}

// Millis implements Source.
func (s *ManualSource) Millis() uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.now
}

// Advance moves the counter forward, wrapping at 2^32.
func (s *ManualSource) Advance(ms uint32) uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.now += ms
	return s.now
}

// Set sets the counter.
func (s *ManualSource) Set(ms uint32) {
	s.lock.Lock()
	s.now = ms
	s.lock.Unlock()
}
