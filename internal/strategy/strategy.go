// Package strategy holds the cache strategies: policies that decide which
// traffic they handle and how a cache key is derived from a request.
//
// Strategies are built once at startup and shared by every in-flight exchange,
// so implementations must be safe for concurrent use.
package strategy

import (
	"context"
	"net"
	"net/http"
	"strings"

	"catchy/internal/cache"
	"catchy/internal/exchange"
	"catchy/internal/hasher"
)

// Strategy is a request/response caching policy
type Strategy interface {
	// Name identifies the strategy and namespaces its store keys
	Name() string

	// HandledHosts lists the hostnames this strategy intercepts.
	// TLS is decrypted for these hosts only.
	HandledHosts() []string

	// CanHandle reports whether the strategy knows how to cache the request.
	// When it returns false no other method is called for the request.
	CanHandle(r *http.Request) bool

	// TryServeFromCache sets the exchange response from the store when a
	// captured response exists. A miss returns false and changes nothing.
	TryServeFromCache(ctx context.Context, ex *exchange.Exchange) (bool, error)

	// StoreResponse captures the exchange response under the request's key
	StoreResponse(ctx context.Context, ex *exchange.Exchange) error
}

// keyFunc derives the canonical key bytes for an exchange
type keyFunc func(ex *exchange.Exchange) ([]byte, error)

// base implements everything but key derivation and content checks
type base struct {
	name  string
	hosts []string
	set   map[string]struct{}
	store cache.Store
	key   keyFunc
}

func newBase(name string, hosts []string, store cache.Store, key keyFunc) base {
	b := base{
		name:  name,
		hosts: make([]string, 0, len(hosts)),
		set:   make(map[string]struct{}, len(hosts)),
		store: store,
		key:   key,
	}
	for _, h := range hosts {
		h = normalizeHost(h)
		if h == "" {
			continue
		}
		if _, dup := b.set[h]; dup {
			continue
		}
		b.set[h] = struct{}{}
		b.hosts = append(b.hosts, h)
	}
	return b
}

func (b *base) Name() string {
	return b.name
}

func (b *base) HandledHosts() []string {
	out := make([]string, len(b.hosts))
	copy(out, b.hosts)
	return out
}

func (b *base) handlesHost(r *http.Request) bool {
	if r == nil {
		return false
	}
	_, ok := b.set[RequestHost(r)]
	return ok
}

func (b *base) storeKey(ex *exchange.Exchange) (string, error) {
	data, err := b.key(ex)
	if err != nil {
		return "", err
	}
	return b.name + ":" + hasher.Sum(data).String(), nil
}

func (b *base) TryServeFromCache(ctx context.Context, ex *exchange.Exchange) (bool, error) {
	key, err := b.storeKey(ex)
	if err != nil {
		return false, err
	}
	entry, ok := b.store.Get(key)
	if !ok {
		return false, nil
	}
	ex.Respond(entry.Response(ex.Request))
	return true, nil
}

func (b *base) StoreResponse(ctx context.Context, ex *exchange.Exchange) error {
	key, err := b.storeKey(ex)
	if err != nil {
		return err
	}
	body, err := ex.KeepResponseBody(ctx)
	if err != nil {
		return err
	}
	b.store.Set(key, cache.NewEntry(ex.Response, body))
	return nil
}

// RequestHost returns the lowercased hostname of r without the port
func RequestHost(r *http.Request) string {
	host := r.Host
	if r.URL != nil && r.URL.Host != "" {
		host = r.URL.Host
	}
	return normalizeHost(host)
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}
