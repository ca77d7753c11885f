package cache

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Store defines the interface for captured response storage
// Implementations must be safe for concurrent use by independent exchanges
type Store interface {
	// Get retrieves a captured response by key
	// Returns the entry and true if found, nil and false otherwise
	Get(key string) (*Entry, bool)

	// Set stores an entry under the given key, replacing any previous one
	Set(key string, entry *Entry)

	// Len returns the number of live entries
	Len() int

	// Close releases any resources held by the store
	Close()
}

// Entry is an immutable snapshot of a response with a fully read body
type Entry struct {
	StatusCode int
	Status     string
	ProtoMajor int
	ProtoMinor int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}

// NewEntry snapshots resp using an already materialized body.
// The header is cloned so later changes to resp do not leak into the entry.
func NewEntry(resp *http.Response, body []byte) *Entry {
	e := &Entry{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		ProtoMajor: resp.ProtoMajor,
		ProtoMinor: resp.ProtoMinor,
		Header:     resp.Header.Clone(),
		Body:       append([]byte(nil), body...),
		StoredAt:   time.Now(),
	}
	if e.Header == nil {
		e.Header = make(http.Header)
	}
	if e.ProtoMajor == 0 {
		e.ProtoMajor, e.ProtoMinor = 1, 1
	}
	if e.Status == "" {
		e.Status = strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode)
	}
	return e
}

// Response builds a fresh response for req from the entry.
// Every call gets its own header copy and body reader.
func (e *Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	header.Set("Content-Length", strconv.Itoa(len(e.Body)))

	return &http.Response{
		StatusCode:    e.StatusCode,
		Status:        e.Status,
		Proto:         "HTTP/" + strconv.Itoa(e.ProtoMajor) + "." + strconv.Itoa(e.ProtoMinor),
		ProtoMajor:    e.ProtoMajor,
		ProtoMinor:    e.ProtoMinor,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}
