/*Package bgcache caches background (trigger-off) frames by integration time
for the duration of one run.

The key space is the exposure preset list, so the cache is small and never
evicts.  A background is trusted for the whole run once captured; there is
no revalidation against detector drift.  That is a deliberate trade of
accuracy for sweep speed and is documented behavior, not an oversight.
*/
package bgcache

import (
	"math"

	"github.com/opal-photonics/asesweep/spectra"
)

// DefaultEpsilon absorbs the floating point drift an integration time picks
// up on a round trip through the instrument.
const DefaultEpsilon = 1e-6

type entry struct {
	key   float64
	frame spectra.Frame
}

// Cache maps integration time to the most recent background captured at
// that time.  Not safe for concurrent use; the sweep owns it exclusively.
type Cache struct {
	eps     float64
	entries []entry
}

// New returns an empty cache.  eps <= 0 selects DefaultEpsilon.
func New(eps float64) *Cache {
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	return &Cache{eps: eps}
}

func (c *Cache) index(t float64) int {
	for i, e := range c.entries {
		if math.Abs(e.key-t) <= c.eps {
			return i
		}
	}
	return -1
}

// Get returns the background for integration time t, if one has been stored.
func (c *Cache) Get(t float64) (spectra.Frame, bool) {
	i := c.index(t)
	if i < 0 {
		return spectra.Frame{}, false
	}
	return c.entries[i].frame, true
}

// Put stores f as the background for integration time t, replacing any
// previous entry at that time.
func (c *Cache) Put(t float64, f spectra.Frame) {
	if i := c.index(t); i >= 0 {
		c.entries[i].frame = f
		return
	}
	c.entries = append(c.entries, entry{key: t, frame: f})
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return len(c.entries)
}
