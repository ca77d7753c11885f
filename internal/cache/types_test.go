package cache

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry_DetachedFromLiveResponse(t *testing.T) {
	resp := newResponse(http.StatusOK, "Hello World!")
	body := []byte("Hello World!")

	e := NewEntry(resp, body)

	resp.Header.Set("Content-Type", "application/json")
	body[0] = 'J'

	assert.Equal(t, "text/plain", e.Header.Get("Content-Type"))
	assert.Equal(t, "Hello World!", string(e.Body))
	assert.Equal(t, "200 OK", e.Status)
	assert.Equal(t, 1, e.ProtoMajor)
}

func TestEntry_ResponseIsIndependentPerCall(t *testing.T) {
	e := NewEntry(newResponse(http.StatusCreated, "payload"), []byte("payload"))
	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)

	first := e.Response(req)
	second := e.Response(req)

	b1, err := io.ReadAll(first.Body)
	require.NoError(t, err)
	b2, err := io.ReadAll(second.Body)
	require.NoError(t, err)

	assert.Equal(t, "payload", string(b1))
	assert.Equal(t, "payload", string(b2))
	assert.Equal(t, http.StatusCreated, first.StatusCode)
	assert.Equal(t, int64(7), first.ContentLength)
	assert.Equal(t, "7", first.Header.Get("Content-Length"))
	assert.Same(t, req, first.Request)

	first.Header.Set("X-Test", "1")
	assert.Empty(t, second.Header.Get("X-Test"))
	assert.Empty(t, e.Header.Get("X-Test"))
}
