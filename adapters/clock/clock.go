// Package clock supplies the time source that extension methods such as
// chore completion stamp onto records.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/restmodel/ports"
)

// Real is the wall clock. Timestamps are normalized to UTC so stored dates
// compare equal regardless of the host zone.
type Real struct{}

// Now implements ports.Clock.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fake is pinned to an instant until Advance moves it. Safe for concurrent
// readers, since request handlers read it while tests step it.
type Fake struct {
	mu sync.RWMutex
	at time.Time
}

// NewFake pins a clock at t.
func NewFake(t time.Time) *Fake {
	return &Fake{at: t}
}

// Now reports the pinned instant.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.at
}

// Advance steps the pinned instant forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.at = f.at.Add(d)
	f.mu.Unlock()
}

var (
	_ ports.Clock = Real{}
	_ ports.Clock = (*Fake)(nil)
)
