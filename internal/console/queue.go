// Package console writes user-facing notifications to the terminal.
//
// Many goroutines report cache activity at once. Colored output needs the
// color escape, the text and the reset to stay together, so producers only
// enqueue messages and a single consumer goroutine does all the writing.
package console

import (
	"context"
	"io"
	"sync"
)

// Color of a console line
type Color int

const (
	NoColor Color = iota
	Green
	Blue
	Red
)

var ansi = map[Color]string{
	Green: "\x1b[32m",
	Blue:  "\x1b[34m",
	Red:   "\x1b[31m",
}

const ansiReset = "\x1b[0m"

// Message is a single queued line
type Message struct {
	Text  string
	Color Color
}

// Queue is an unbounded multi-producer, single-consumer line queue
type Queue struct {
	out     io.Writer
	colored bool

	mu     sync.Mutex
	items  []Message
	signal chan struct{}
}

// NewQueue creates a queue writing to out. Colors are emitted only when colored is true.
func NewQueue(out io.Writer, colored bool) *Queue {
	return &Queue{
		out:     out,
		colored: colored,
		signal:  make(chan struct{}, 1),
	}
}

// WriteLine enqueues an uncolored line. It never blocks.
func (q *Queue) WriteLine(text string) {
	q.push(Message{Text: text})
}

// WriteColorLine enqueues a colored line. It never blocks.
func (q *Queue) WriteColorLine(text string, color Color) {
	q.push(Message{Text: text, Color: color})
}

func (q *Queue) push(m Message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Len returns the number of lines not yet written
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Run writes queued lines until ctx is cancelled, blocking while the queue is empty.
// Lines already queued at cancellation are flushed before Run returns.
// Only one Run may be active per queue.
func (q *Queue) Run(ctx context.Context) error {
	for {
		q.drain()

		select {
		case <-ctx.Done():
			q.drain()
			return nil
		case <-q.signal:
		}
	}
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		batch := q.items
		q.items = nil
		q.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, m := range batch {
			q.write(m)
		}
	}
}

func (q *Queue) write(m Message) {
	code, ok := ansi[m.Color]
	if !q.colored || !ok {
		io.WriteString(q.out, m.Text+"\n")
		return
	}
	io.WriteString(q.out, code+m.Text+ansiReset+"\n")
}
