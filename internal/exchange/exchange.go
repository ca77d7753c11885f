// Package exchange models one intercepted request together with its eventual
// response, plus the decision passed from the request phase to the response phase.
package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
)

var (
	// ErrPendingAlreadySet is returned when the pending slot is written twice
	ErrPendingAlreadySet = errors.New("exchange: pending store already set")

	// ErrNoResponse is returned when the response body is requested before a response exists
	ErrNoResponse = errors.New("exchange: no response")

	// ErrBodyTooLarge is returned when the request body exceeds the configured limit
	ErrBodyTooLarge = errors.New("exchange: request body too large")
)

// State is the caching state of a single exchange
type State int32

const (
	// Unhandled - no strategy took the exchange
	Unhandled State = iota
	// ServedFromCache - the response came from the store
	ServedFromCache
	// PendingStore - a strategy is waiting for the origin response
	PendingStore
	// Stored - the origin response was captured
	Stored
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Unhandled:
		return "unhandled"
	case ServedFromCache:
		return "served-from-cache"
	case PendingStore:
		return "pending-store"
	case Stored:
		return "stored"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Storer captures the response of an exchange once it arrives
type Storer interface {
	Name() string
	StoreResponse(ctx context.Context, ex *Exchange) error
}

type pending struct {
	storer Storer
}

// Exchange is one request and its eventual response
type Exchange struct {
	// Request is the request being proxied
	Request *http.Request
	// Response is nil until the origin answers or a strategy responds from cache
	Response *http.Response

	maxBodySize int64

	bodyOnce sync.Once
	body     []byte
	bodyErr  error

	respBody []byte
	respRead bool

	pending    atomic.Pointer[pending]
	pendingSet atomic.Bool
	state      atomic.Int32
}

type readCloser struct {
	io.Reader
	io.Closer
}

// Option configures an Exchange
type Option func(*Exchange)

// WithMaxBodySize limits how much of the request body is read, 0 means no limit
func WithMaxBodySize(n int64) Option {
	return func(ex *Exchange) {
		ex.maxBodySize = n
	}
}

// New creates an Exchange for req
func New(req *http.Request, opts ...Option) *Exchange {
	ex := &Exchange{Request: req}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

// URL returns the request URL as text
func (ex *Exchange) URL() string {
	if ex.Request == nil || ex.Request.URL == nil {
		return ""
	}
	return ex.Request.URL.String()
}

// RequestBody reads the request body once and returns it on every call.
// The request body is replaced with a re-readable copy so it can still be sent to the origin.
func (ex *Exchange) RequestBody() ([]byte, error) {
	ex.bodyOnce.Do(func() {
		if ex.Request == nil || ex.Request.Body == nil || ex.Request.Body == http.NoBody {
			return
		}

		orig := ex.Request.Body
		var r io.Reader = orig
		if ex.maxBodySize > 0 {
			r = io.LimitReader(r, ex.maxBodySize+1)
		}

		body, err := io.ReadAll(r)
		if err != nil || (ex.maxBodySize > 0 && int64(len(body)) > ex.maxBodySize) {
			// hand the origin what was read followed by the unread remainder
			ex.Request.Body = readCloser{io.MultiReader(bytes.NewReader(body), orig), orig}
			if err != nil {
				ex.bodyErr = fmt.Errorf("failed to read request body: %w", err)
			} else {
				ex.bodyErr = ErrBodyTooLarge
			}
			return
		}

		orig.Close()
		ex.Request.Body = io.NopCloser(bytes.NewReader(body))
		ex.body = body
	})
	return ex.body, ex.bodyErr
}

// Respond sets the response that will be sent to the client instead of contacting the origin
func (ex *Exchange) Respond(resp *http.Response) {
	ex.Response = resp
	ex.state.Store(int32(ServedFromCache))
}

// KeepResponseBody reads the whole response body so it stays available after the
// engine releases the live response. The response body is swapped for a
// re-readable copy, so the client still receives it.
// Cancelling ctx aborts a read in progress.
func (ex *Exchange) KeepResponseBody(ctx context.Context) ([]byte, error) {
	if ex.respRead {
		return ex.respBody, nil
	}
	if ex.Response == nil {
		return nil, ErrNoResponse
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := ex.Response
	if resp.Body == nil || resp.Body == http.NoBody {
		ex.respRead = true
		return nil, nil
	}

	// closing the body unblocks a read in progress when ctx is cancelled
	orig := resp.Body
	stop := context.AfterFunc(ctx, func() { orig.Close() })
	body, err := io.ReadAll(orig)
	stop()
	orig.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		// the client gets what arrived, the origin's length no longer holds
		resp.Header.Del("Content-Length")
		resp.ContentLength = -1
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	ex.respBody = body
	ex.respRead = true
	return body, nil
}

// SetPending records the strategy that should capture the response.
// It can be set only once per exchange.
func (ex *Exchange) SetPending(s Storer) error {
	if s == nil {
		return errors.New("exchange: nil storer")
	}
	if !ex.pendingSet.CompareAndSwap(false, true) {
		return ErrPendingAlreadySet
	}
	ex.pending.Store(&pending{storer: s})
	ex.state.Store(int32(PendingStore))
	return nil
}

// TakePending returns the pending strategy and clears the slot,
// so a second call returns false.
func (ex *Exchange) TakePending() (Storer, bool) {
	p := ex.pending.Swap(nil)
	if p == nil {
		return nil, false
	}
	return p.storer, true
}

// MarkStored moves the exchange to the Stored state
func (ex *Exchange) MarkStored() {
	ex.state.Store(int32(Stored))
}

// State returns the current caching state
func (ex *Exchange) State() State {
	return State(ex.state.Load())
}
