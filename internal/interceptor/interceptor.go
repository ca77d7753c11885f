// Package interceptor ties a caching decision made when a request arrives to
// the action taken when its response arrives.
package interceptor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"catchy/internal/exchange"
	"catchy/internal/metrics"
	"catchy/internal/strategy"
)

// Notifier receives user-facing cache notifications
type Notifier interface {
	CachedResponse(url string)
	CapturingResponse(url string)
}

type nopNotifier struct{}

func (nopNotifier) CachedResponse(string)    {}
func (nopNotifier) CapturingResponse(string) {}

// Interceptor runs the request and response phases of each exchange
// against an ordered list of strategies
type Interceptor struct {
	strategies []strategy.Strategy
	notifier   Notifier
	logger     zerolog.Logger
}

// New creates an Interceptor. Strategies are consulted in the given order.
func New(strategies []strategy.Strategy, notifier Notifier, logger zerolog.Logger) *Interceptor {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	s := make([]strategy.Strategy, len(strategies))
	copy(s, strategies)
	return &Interceptor{
		strategies: s,
		notifier:   notifier,
		logger:     logger.With().Str("component", "interceptor").Logger(),
	}
}

// Select returns the first strategy that can handle r, or nil
func (i *Interceptor) Select(r *http.Request) strategy.Strategy {
	for _, s := range i.strategies {
		if s.CanHandle(r) {
			return s
		}
	}
	return nil
}

// OnRequest is called before the request is sent to the origin.
// On a cache hit the exchange response is set and the origin is skipped;
// on a miss the selected strategy is left pending on the exchange.
// An error leaves the exchange unhandled, the request still goes to the origin.
func (i *Interceptor) OnRequest(ctx context.Context, ex *exchange.Exchange) error {
	s := i.Select(ex.Request)
	if s == nil {
		return nil
	}

	url := ex.URL()
	hit, err := s.TryServeFromCache(ctx, ex)
	if err != nil {
		metrics.StrategyErrors.WithLabelValues(s.Name(), metrics.PhaseRequest).Inc()
		i.logger.Warn().
			Err(err).
			Str("strategy", s.Name()).
			Str("url", url).
			Msg("cache lookup failed")
		return fmt.Errorf("%s strategy lookup for %s: %w", s.Name(), url, err)
	}

	if hit {
		metrics.CacheHits.WithLabelValues(s.Name()).Inc()
		i.logger.Debug().
			Str("strategy", s.Name()).
			Str("url", url).
			Msg("cache hit")
		i.notifier.CachedResponse(url)
		return nil
	}

	metrics.CacheMisses.WithLabelValues(s.Name()).Inc()
	if err := ex.SetPending(s); err != nil {
		return err
	}
	i.logger.Debug().
		Str("strategy", s.Name()).
		Str("url", url).
		Msg("cache miss")
	return nil
}

// OnResponse is called when the origin response arrives.
// It captures the response only if OnRequest left a strategy pending.
func (i *Interceptor) OnResponse(ctx context.Context, ex *exchange.Exchange) error {
	s, ok := ex.TakePending()
	if !ok {
		return nil
	}

	url := ex.URL()
	i.notifier.CapturingResponse(url)

	if err := s.StoreResponse(ctx, ex); err != nil {
		metrics.StrategyErrors.WithLabelValues(s.Name(), metrics.PhaseResponse).Inc()
		i.logger.Warn().
			Err(err).
			Str("strategy", s.Name()).
			Str("url", url).
			Msg("failed to cache response")
		return fmt.Errorf("%s strategy store for %s: %w", s.Name(), url, err)
	}

	ex.MarkStored()
	metrics.CacheStores.WithLabelValues(s.Name()).Inc()
	i.logger.Debug().
		Str("strategy", s.Name()).
		Str("url", url).
		Msg("cached response")
	return nil
}
