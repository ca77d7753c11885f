package console

import (
	"context"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// UI formats the proxy's user-facing messages
type UI struct {
	queue *Queue
}

// NewUI creates a UI writing to the given queue
func NewUI(queue *Queue) *UI {
	return &UI{queue: queue}
}

// NewStdoutUI creates a UI on standard output, colored only on a terminal
func NewStdoutUI() *UI {
	fd := os.Stdout.Fd()
	colored := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return NewUI(NewQueue(colorable.NewColorableStdout(), colored))
}

// Run starts the output worker and blocks until ctx is cancelled
func (u *UI) Run(ctx context.Context) error {
	return u.queue.Run(ctx)
}

// Welcome announces startup
func (u *UI) Welcome() {
	u.queue.WriteLine("Catchy - Caching Proxy - starting...\n")
}

// HandledHosts lists the monitored hosts
func (u *UI) HandledHosts(hosts []string) {
	var b strings.Builder
	b.WriteString("Currently monitoring requests to:")
	for _, h := range hosts {
		b.WriteString("\n • ")
		b.WriteString(h)
	}
	b.WriteString("\n")
	u.queue.WriteLine(b.String())
}

// Ready announces that the proxy is listening
func (u *UI) Ready(addr string) {
	u.queue.WriteLine("Ready! Proxy listening on " + addr + ", press Ctrl+C to exit\n")
}

// CachedResponse reports a response served from the cache
func (u *UI) CachedResponse(url string) {
	u.queue.WriteColorLine("← returning cached response for "+url, Green)
}

// CapturingResponse reports a response being captured into the cache
func (u *UI) CapturingResponse(url string) {
	u.queue.WriteColorLine("→ allowing request and caching response for "+url, Blue)
}

// Error reports an error with its full context
func (u *UI) Error(err error) {
	if err == nil {
		return
	}
	u.queue.WriteColorLine("× encountered error: "+err.Error(), Red)
}
