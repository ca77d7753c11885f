package exchange

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorer struct{ name string }

func (f *fakeStorer) Name() string { return f.name }

func (f *fakeStorer) StoreResponse(ctx context.Context, ex *Exchange) error { return nil }

func newPost(t *testing.T, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "http://example.com/api", strings.NewReader(body))
	require.NoError(t, err)
	return req
}

func TestRequestBody_ReadOnceAndRestored(t *testing.T) {
	req := newPost(t, `{"a":1}`)
	ex := New(req)

	b1, err := ex.RequestBody()
	require.NoError(t, err)
	b2, err := ex.RequestBody()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(b1))
	assert.Equal(t, b1, b2)

	// the origin must still receive the body
	forwarded, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(forwarded))
}

func TestRequestBody_NoBody(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)

	body, err := New(req).RequestBody()
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestRequestBody_TooLarge(t *testing.T) {
	req := newPost(t, "0123456789")
	ex := New(req, WithMaxBodySize(4))

	_, err := ex.RequestBody()
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	forwarded, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(forwarded))
}

func TestKeepResponseBody(t *testing.T) {
	ex := New(newPost(t, ""))
	ex.Response = &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("Hello World!")),
	}

	body, err := ex.KeepResponseBody(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello World!", string(body))

	again, err := ex.KeepResponseBody(context.Background())
	require.NoError(t, err)
	assert.Equal(t, body, again)

	// the client still gets the full body
	sent, err := io.ReadAll(ex.Response.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello World!", string(sent))
}

func TestKeepResponseBody_Errors(t *testing.T) {
	ex := New(newPost(t, ""))
	_, err := ex.KeepResponseBody(context.Background())
	assert.ErrorIs(t, err, ErrNoResponse)

	ex.Response = &http.Response{Body: io.NopCloser(strings.NewReader("x"))}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ex.KeepResponseBody(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingBody struct {
	data   string
	read   bool
	closed bool
}

func (b *failingBody) Read(p []byte) (int, error) {
	if b.read {
		return 0, io.ErrUnexpectedEOF
	}
	b.read = true
	return copy(p, b.data), nil
}

func (b *failingBody) Close() error {
	b.closed = true
	return nil
}

func TestKeepResponseBody_ReadErrorDropsContentLength(t *testing.T) {
	ex := New(newPost(t, ""))
	body := &failingBody{data: "Hello"}
	ex.Response = &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Length": []string{"12"}},
		ContentLength: 12,
		Body:          body,
	}

	_, err := ex.KeepResponseBody(context.Background())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, body.closed)

	assert.Empty(t, ex.Response.Header.Get("Content-Length"))
	assert.Equal(t, int64(-1), ex.Response.ContentLength)

	sent, err := io.ReadAll(ex.Response.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(sent))
}

// blockingBody delivers a first chunk then blocks until closed
type blockingBody struct {
	first     string
	sent      bool
	closed    chan struct{}
	closeOnce sync.Once
}

func (b *blockingBody) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, b.first), nil
	}
	<-b.closed
	return 0, errors.New("read on closed body")
}

func (b *blockingBody) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	return nil
}

func TestKeepResponseBody_CancelDuringRead(t *testing.T) {
	ex := New(newPost(t, ""))
	ex.Response = &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       &blockingBody{first: "partial", closed: make(chan struct{})},
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := ex.KeepResponseBody(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(-1), ex.Response.ContentLength)

	sent, err := io.ReadAll(ex.Response.Body)
	require.NoError(t, err)
	assert.Equal(t, "partial", string(sent))
}

func TestPendingSlot_WriteOnceTakeOnce(t *testing.T) {
	ex := New(newPost(t, ""))
	assert.Equal(t, Unhandled, ex.State())

	_, ok := ex.TakePending()
	assert.False(t, ok)

	s := &fakeStorer{name: "rest"}
	require.NoError(t, ex.SetPending(s))
	assert.Equal(t, PendingStore, ex.State())
	assert.ErrorIs(t, ex.SetPending(&fakeStorer{name: "soap"}), ErrPendingAlreadySet)

	got, ok := ex.TakePending()
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = ex.TakePending()
	assert.False(t, ok)

	// consumed slots stay closed
	assert.ErrorIs(t, ex.SetPending(s), ErrPendingAlreadySet)
}

func TestPendingSlot_ConcurrentTake(t *testing.T) {
	ex := New(newPost(t, ""))
	require.NoError(t, ex.SetPending(&fakeStorer{name: "rest"}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	taken := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := ex.TakePending(); ok {
				mu.Lock()
				taken++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, taken)
}

func TestRespond(t *testing.T) {
	ex := New(newPost(t, ""))
	resp := &http.Response{StatusCode: http.StatusOK}
	ex.Respond(resp)
	assert.Same(t, resp, ex.Response)
	assert.Equal(t, ServedFromCache, ex.State())
	assert.Equal(t, "served-from-cache", ex.State().String())
}
