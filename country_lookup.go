package statsig

import (
	"sync"

	countrylookup "github.com/statsig-io/ip3country-go"
)

// Wraps the ip3country table so loading can be deferred or skipped entirely.
// The packed table costs a few MB of heap, which some embedders care about.
type countryLookup struct {
	lookup  *countrylookup.CountryLookup
	wg      sync.WaitGroup
	options IPCountryOptions
	mu      sync.RWMutex
}

func newCountryLookup(options IPCountryOptions) *countryLookup {
	c := &countryLookup{options: options}
	c.delayedSetup()
	return c
}

func (c *countryLookup) delayedSetup() {
	if c.options.Disabled {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		table := countrylookup.New()
		c.mu.Lock()
		c.lookup = table
		c.mu.Unlock()
	}()
}

func (c *countryLookup) init() {
	if !c.options.LazyLoad {
		c.ensureLoaded()
	}
}

func (c *countryLookup) ensureLoaded() {
	if c.options.Disabled {
		return
	}
	c.wg.Wait()
}

func (c *countryLookup) isReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup != nil
}

// Resolves an IP string to an ISO 3166-1 alpha-2 country code. Returns false
// while disabled or still loading, which evaluates like a missing user field.
func (c *countryLookup) lookupIp(ip string) (string, bool) {
	if c.options.Disabled {
		return "", false
	}
	if c.options.EnsureLoaded {
		c.wg.Wait()
	}
	if c.isReady() {
		return c.lookup.LookupIp(ip)
	}
	return "", false
}
