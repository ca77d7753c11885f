package proxy

import (
	"crypto/tls"
	"net"
	"net/http"
	"strings"

	"github.com/elazarl/goproxy"
	"github.com/rs/zerolog"

	"catchy/internal/exchange"
	"catchy/internal/interceptor"
)

// Options holds engine settings
type Options struct {
	// MaxBodySize limits request bodies read for key derivation, 0 means no limit
	MaxBodySize int64
	// CA signs certificates for decrypted hosts. goproxy's built-in CA is used if nil.
	CA *tls.Certificate
	// OnError is called for per-exchange caching errors and engine errors
	OnError func(error)
}

// Handler is an intercepting HTTP proxy that runs every exchange through the interceptor
type Handler struct {
	interceptor *interceptor.Interceptor
	decrypt     map[string]bool
	maxBodySize int64
	onError     func(error)
	proxy       *goproxy.ProxyHttpServer
	logger      zerolog.Logger
}

// NewHandler creates a new Handler.
// TLS tunnels are decrypted only for decryptHosts, everything else is passed through.
func NewHandler(ic *interceptor.Interceptor, decryptHosts []string, opts Options, logger zerolog.Logger) *Handler {
	h := &Handler{
		interceptor: ic,
		decrypt:     make(map[string]bool, len(decryptHosts)),
		maxBodySize: opts.MaxBodySize,
		onError:     opts.OnError,
		proxy:       goproxy.NewProxyHttpServer(),
		logger:      logger.With().Str("component", "proxy").Logger(),
	}
	for _, host := range decryptHosts {
		h.decrypt[hostOnly(host)] = true
	}

	mitm := goproxy.MitmConnect
	if opts.CA != nil {
		mitm = &goproxy.ConnectAction{
			Action:    goproxy.ConnectMitm,
			TLSConfig: goproxy.TLSConfigFromCA(opts.CA),
		}
	}

	h.proxy.Logger = engineLogger{h.logger}
	h.proxy.OnRequest().HandleConnectFunc(func(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
		if h.ShouldDecrypt(host) {
			return mitm, host
		}
		return goproxy.OkConnect, host
	})
	h.proxy.OnRequest().DoFunc(h.onRequest)
	h.proxy.OnResponse().DoFunc(h.onResponse)

	return h
}

// ServeHTTP handles proxied requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.proxy.ServeHTTP(w, r)
}

// ShouldDecrypt reports whether a CONNECT tunnel to hostport should be intercepted
func (h *Handler) ShouldDecrypt(hostport string) bool {
	return h.decrypt[hostOnly(hostport)]
}

// onRequest starts a new exchange and stores it in the engine's per-request slot
func (h *Handler) onRequest(req *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	ex := exchange.New(req, exchange.WithMaxBodySize(h.maxBodySize))
	ctx.UserData = ex

	if err := h.interceptor.OnRequest(req.Context(), ex); err != nil {
		h.reportError(err)
	}

	if ex.State() == exchange.ServedFromCache {
		return ex.Request, ex.Response
	}
	return ex.Request, nil
}

// onResponse hands the origin response to the exchange started in onRequest
func (h *Handler) onResponse(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
	if resp == nil {
		if ctx.Error != nil {
			h.reportError(ctx.Error)
		}
		return nil
	}

	ex, ok := ctx.UserData.(*exchange.Exchange)
	if !ok {
		return resp
	}
	if ex.State() == exchange.ServedFromCache {
		return resp
	}

	ex.Response = resp
	if err := h.interceptor.OnResponse(ex.Request.Context(), ex); err != nil {
		h.reportError(err)
	}
	return ex.Response
}

func (h *Handler) reportError(err error) {
	h.logger.Error().Err(err).Msg("exchange error")
	if h.onError != nil {
		h.onError(err)
	}
}

func hostOnly(hostport string) string {
	host := strings.TrimSpace(hostport)
	if hh, _, err := net.SplitHostPort(host); err == nil {
		host = hh
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}

// engineLogger routes goproxy's own logging into zerolog
type engineLogger struct {
	logger zerolog.Logger
}

func (l engineLogger) Printf(format string, v ...any) {
	l.logger.Debug().Msgf(format, v...)
}
