package strategy

import (
	"errors"
	"fmt"

	"catchy/internal/cache"
)

// ErrUnknownStrategy is returned for names missing from the registry
var ErrUnknownStrategy = errors.New("unknown strategy")

// Factory builds a strategy for an ordered host list and a shared store
type Factory func(hosts []string, store cache.Store) Strategy

// Registration describes one available strategy
type Registration struct {
	Name        string
	Description string
	New         Factory
}

// registry is the static table of strategies, in the order they are consulted
var registry = []Registration{
	{
		Name:        RestName,
		Description: "cache by HTTP method, URL and request body",
		New:         func(hosts []string, store cache.Store) Strategy { return NewRestStrategy(hosts, store) },
	},
	{
		Name:        SoapName,
		Description: "cache SOAP requests by envelope Body content, ignoring the SOAP header",
		New:         func(hosts []string, store cache.Store) Strategy { return NewSoapStrategy(hosts, store) },
	},
}

// Registrations returns all registered strategies in registry order
func Registrations() []Registration {
	out := make([]Registration, len(registry))
	copy(out, registry)
	return out
}

// Names returns the registered strategy names in registry order
func Names() []string {
	names := make([]string, len(registry))
	for i, r := range registry {
		names[i] = r.Name
	}
	return names
}

// Lookup returns the registration for name
func Lookup(name string) (Registration, bool) {
	for _, r := range registry {
		if r.Name == name {
			return r, true
		}
	}
	return Registration{}, false
}

// New builds the named strategy
func New(name string, hosts []string, store cache.Store) (Strategy, error) {
	r, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return r.New(hosts, store), nil
}

// HandledHosts returns the union of hosts handled by strategies, in first-seen order
func HandledHosts(strategies []Strategy) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, s := range strategies {
		for _, h := range s.HandledHosts() {
			if !seen[h] {
				seen[h] = true
				hosts = append(hosts, h)
			}
		}
	}
	return hosts
}
