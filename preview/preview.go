/*Package preview publishes the most recent scan point for live monitoring.

The control loop publishes into a single-slot mailbox: the latest update
wins and nothing queues, so a slow or absent consumer can never apply
backpressure to acquisition.  A rate limiter drops publishes beyond a
configured frequency since redrawing faster than a human can look at is
wasted work.

The HTTP surface serves the latest frames as JSON and as a rendered plot,
so any browser on the lab network can watch the sweep.
*/
package preview

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/opal-photonics/asesweep/spectra"
)

// Update is one scan point's worth of preview data.
type Update struct {
	// Index is the scan point index.
	Index int `json:"index"`

	// Angle is the filter wheel angle in degrees.
	Angle float64 `json:"angle"`

	// Signal, Background and Net are the three frames of the point.
	Signal     spectra.Frame `json:"signal"`
	Background spectra.Frame `json:"background"`
	Net        spectra.Frame `json:"net"`

	// When is the publish time.
	When time.Time `json:"when"`
}

// Mailbox is a single-slot, latest-value-wins store.  Publish never blocks
// beyond a mutex; it is safe for one producer and many readers.
type Mailbox struct {
	mu     sync.Mutex
	latest *Update
	limit  *rate.Limiter
}

// NewMailbox returns a mailbox that accepts at most maxHz publishes per
// second.  maxHz <= 0 disables the limit.
func NewMailbox(maxHz float64) *Mailbox {
	m := &Mailbox{}
	if maxHz > 0 {
		m.limit = rate.NewLimiter(rate.Limit(maxHz), 1)
	}
	return m
}

// Publish overwrites the mailbox with u.  Updates beyond the rate limit
// are dropped, not queued.
func (m *Mailbox) Publish(u Update) {
	if m.limit != nil && !m.limit.Allow() {
		return
	}
	if u.When.IsZero() {
		u.When = time.Now()
	}
	m.mu.Lock()
	m.latest = &u
	m.mu.Unlock()
}

// Latest returns the most recent update, if any has been published.
func (m *Mailbox) Latest() (Update, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return Update{}, false
	}
	return *m.latest, true
}
