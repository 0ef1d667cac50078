// Package debounce implements the bridge's default-biased hysteresis
// filter: a raw Modbus bit only overrides its site's configured default
// after holding steady, opposite to default, for a configured duration.
// Agreement with default is never debounced, so a glitch that matches the
// safe state snaps back immediately.
package debounce

import (
	"sync"
	"time"

	"github.com/wwhai/worksite-bridge/internal/config"
)

// state is the per-site debounce window: the moment the raw bit first
// disagreed with the site's default. A site whose bit currently agrees has
// no entry.
type state struct {
	oppositeSince time.Time
}

// Debouncer holds per-site hysteresis state (component C3). The zero value
// is not usable; construct with New.
type Debouncer struct {
	fillDebounce time.Duration

	mu     sync.Mutex
	states map[string]*state
}

// New creates a Debouncer that requires a raw bit to disagree with a
// site's default for at least fillDebounce before accepting the change.
func New(fillDebounce time.Duration) *Debouncer {
	return &Debouncer{
		fillDebounce: fillDebounce,
		states:       make(map[string]*state),
	}
}

// Update feeds one raw reading for site and returns the effective state to
// publish, per the default-biased hysteresis rule.
func (d *Debouncer) Update(site config.Site, rawBit bool, now time.Time) config.State {
	defaultBit := site.Default.Bit()

	d.mu.Lock()
	defer d.mu.Unlock()

	if rawBit == defaultBit {
		delete(d.states, site.ID)
		return site.Default
	}

	st, ok := d.states[site.ID]
	if !ok {
		d.states[site.ID] = &state{oppositeSince: now}
		return site.Default
	}
	if now.Sub(st.oppositeSince) >= d.fillDebounce {
		return site.Default.Opposite()
	}
	return site.Default
}

// Reset discards site's debounce state, so the next Update starts fresh
// from default.
func (d *Debouncer) Reset(site config.Site) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.states, site.ID)
}
