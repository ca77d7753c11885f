package strategy

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catchy/internal/exchange"
)

func TestRestStrategy_CanHandle(t *testing.T) {
	s := NewRestStrategy([]string{"example.com"}, newStore())

	assert.True(t, s.CanHandle(newRequest(t, http.MethodGet, "http://example.com/cats/", "")))
	assert.True(t, s.CanHandle(newRequest(t, http.MethodGet, "https://example.com:443/cats/", "")))
	assert.False(t, s.CanHandle(newRequest(t, http.MethodGet, "http://ejemplo.com/cats/", "")))
	assert.False(t, s.CanHandle(newRequest(t, http.MethodGet, "http://api.example.com/", "")))
	assert.False(t, s.CanHandle(nil))
}

func TestRestStrategy_StoreThenServe(t *testing.T) {
	s := NewRestStrategy([]string{"example.com"}, newStore())
	ctx := context.Background()

	first := exchange.New(newRequest(t, http.MethodGet, "http://example.com", ""))
	hit, err := s.TryServeFromCache(ctx, first)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, first.Response)

	withResponse(first, "Hello World!")
	require.NoError(t, s.StoreResponse(ctx, first))

	// the live response still carries its body after capture
	assert.Equal(t, "Hello World!", readBody(t, first.Response))

	second := exchange.New(newRequest(t, http.MethodGet, "http://example.com", ""))
	hit, err = s.TryServeFromCache(ctx, second)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, http.StatusOK, second.Response.StatusCode)
	assert.Equal(t, "Hello World!", readBody(t, second.Response))
	assert.Equal(t, exchange.ServedFromCache, second.State())
}

func TestRestKey(t *testing.T) {
	key := func(method, url, body string) string {
		k, err := NewRestStrategy(nil, newStore()).storeKey(exchange.New(newRequest(t, method, url, body)))
		require.NoError(t, err)
		return k
	}

	tests := []struct {
		name  string
		a, b  [3]string
		equal bool
	}{
		{"identical get", [3]string{"GET", "http://example.com/a", ""}, [3]string{"GET", "http://example.com/a", ""}, true},
		{"different url", [3]string{"GET", "http://example.com/a", ""}, [3]string{"GET", "http://example.com/b", ""}, false},
		{"different method", [3]string{"GET", "http://example.com/a", ""}, [3]string{"DELETE", "http://example.com/a", ""}, false},
		{"identical post", [3]string{"POST", "http://example.com/a", `{"q":1}`}, [3]string{"POST", "http://example.com/a", `{"q":1}`}, true},
		{"different post body", [3]string{"POST", "http://example.com/a", `{"q":1}`}, [3]string{"POST", "http://example.com/a", `{"q":2}`}, false},
		{"different put body", [3]string{"PUT", "http://example.com/a", "x"}, [3]string{"PUT", "http://example.com/a", "y"}, false},
		{"different patch body", [3]string{"PATCH", "http://example.com/a", "x"}, [3]string{"PATCH", "http://example.com/a", "y"}, false},
		{"delete body ignored", [3]string{"DELETE", "http://example.com/a", "x"}, [3]string{"DELETE", "http://example.com/a", "y"}, true},
		{"different query", [3]string{"GET", "http://example.com/a?x=1", ""}, [3]string{"GET", "http://example.com/a?x=2", ""}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka := key(tt.a[0], tt.a[1], tt.a[2])
			kb := key(tt.b[0], tt.b[1], tt.b[2])
			if tt.equal {
				assert.Equal(t, ka, kb)
			} else {
				assert.NotEqual(t, ka, kb)
			}
		})
	}
}

func TestRestStrategy_PostBodyStillForwarded(t *testing.T) {
	s := NewRestStrategy([]string{"example.com"}, newStore())
	req := newRequest(t, http.MethodPost, "http://example.com/api", `{"q":1}`)
	ex := exchange.New(req)

	hit, err := s.TryServeFromCache(context.Background(), ex)
	require.NoError(t, err)
	assert.False(t, hit)

	forwarded := make([]byte, 16)
	n, _ := req.Body.Read(forwarded)
	assert.Equal(t, `{"q":1}`, string(forwarded[:n]))
}

func TestRestStrategy_BodyTooLarge(t *testing.T) {
	s := NewRestStrategy([]string{"example.com"}, newStore())
	ex := exchange.New(newRequest(t, http.MethodPost, "http://example.com/api", "0123456789"), exchange.WithMaxBodySize(4))

	_, err := s.TryServeFromCache(context.Background(), ex)
	assert.ErrorIs(t, err, exchange.ErrBodyTooLarge)
}
