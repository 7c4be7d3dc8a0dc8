package face

import (
	"context"
	"sync"
	"time"
)

// DefaultTolerance is the largest distance still treated as the same person.
const DefaultTolerance = 0.6

// Known is one enrolled identity.
type Known struct {
	StudentID  uint
	Name       string
	Descriptor Descriptor
}

// Match is a gallery hit.
type Match struct {
	Known
	Distance float64
}

// Loader supplies the enrolled identities.
type Loader interface {
	LoadKnown(ctx context.Context) ([]Known, error)
}

// Gallery caches enrolled descriptors and matches query descriptors against them.
type Gallery struct {
	loader    Loader
	tolerance float64
	refresh   time.Duration
	now       func() time.Time

	mu       sync.RWMutex
	known    []Known
	loadedAt time.Time
	stale    bool
	// gen is bumped by Invalidate so a reload that overlaps it stays stale.
	gen uint64
}

// NewGallery creates a gallery that reloads from loader when invalidated or older than refresh.
func NewGallery(loader Loader, tolerance float64, refresh time.Duration) *Gallery {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if refresh <= 0 {
		refresh = time.Minute
	}
	return &Gallery{loader: loader, tolerance: tolerance, refresh: refresh, now: time.Now, stale: true}
}

// Invalidate forces a reload before the next match.
func (g *Gallery) Invalidate() {
	g.mu.Lock()
	g.stale = true
	g.gen++
	g.mu.Unlock()
}

// Size returns the number of cached identities.
func (g *Gallery) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.known)
}

func (g *Gallery) ensureLoaded(ctx context.Context) error {
	g.mu.RLock()
	fresh := !g.stale && g.now().Sub(g.loadedAt) < g.refresh
	gen := g.gen
	g.mu.RUnlock()
	if fresh {
		return nil
	}

	known, err := g.loader.LoadKnown(ctx)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.known = known
	g.loadedAt = g.now()
	g.stale = g.gen != gen
	g.mu.Unlock()
	return nil
}

// Match returns the closest identity within tolerance. ok is false when nothing is close enough.
func (g *Gallery) Match(ctx context.Context, d Descriptor) (Match, bool, error) {
	if err := g.ensureLoaded(ctx); err != nil {
		return Match{}, false, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best Match
	found := false
	for _, k := range g.known {
		dist := Distance(k.Descriptor, d)
		if dist > g.tolerance {
			continue
		}
		if !found || dist < best.Distance {
			best = Match{Known: k, Distance: dist}
			found = true
		}
	}
	return best, found, nil
}
