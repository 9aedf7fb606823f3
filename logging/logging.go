/*
Package logging provides a slog.Handler that lets parts of the program
observe every log record as it is handled, for example to copy them into a
log file or to relay them elsewhere.
*/
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// Observer is called with every record handled.
type Observer func(ctx context.Context, r slog.Record)

type entry struct {
	id int
	o  Observer
}

type observers struct {
	mu      sync.RWMutex
	next    int
	entries []entry
}

func (o *observers) add(obs Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.next
	o.next++
	o.entries = append(o.entries, entry{id: id, o: obs})

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()

		o.entries = slices.DeleteFunc(o.entries, func(e entry) bool {
			return e.id == id
		})
	}
}

func (o *observers) snapshot() []entry {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return slices.Clone(o.entries)
}

// Handler passes records on to another handler and to any registered
// observers. Handlers derived with WithAttrs or WithGroup share observers
// with the handler they came from.
type Handler struct {
	next  slog.Handler
	obs   *observers
	attrs []slog.Attr
}

// NewHandler returns a Handler wrapping next.
func NewHandler(next slog.Handler) *Handler {
	return &Handler{
		next: next,
		obs:  new(observers),
	}
}

// Observe registers o and returns a function that unregisters it.
func (h *Handler) Observe(o Observer) func() {
	return h.obs.add(o)
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if entries := h.obs.snapshot(); len(entries) > 0 {
		rc := r.Clone()
		rc.AddAttrs(h.attrs...)
		for _, e := range entries {
			e.o(ctx, rc)
		}
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		next:  h.next.WithAttrs(attrs),
		obs:   h.obs,
		attrs: append(slices.Clip(h.attrs), attrs...),
	}
}

// WithGroup implements slog.Handler. Observers see grouped attributes
// without their group.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		next:  h.next.WithGroup(name),
		obs:   h.obs,
		attrs: h.attrs,
	}
}

// Writer formats records as lines of text.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	loc *time.Location
}

// NewWriter returns a Writer that writes to w with timestamps in loc.
func NewWriter(w io.Writer, loc *time.Location) *Writer {
	if loc == nil {
		loc = time.Local
	}
	return &Writer{
		w:   w,
		loc: loc,
	}
}

// Observe writes r as a single line. It has the signature of an Observer.
func (w *Writer) Observe(_ context.Context, r slog.Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fmt.Fprintf(w.w, "[%s] [%s] %s", r.Time.In(w.loc).Format(time.DateTime), r.Level, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(w.w, " %s", a)
		return true
	})
	fmt.Fprintln(w.w)
}

// CreateFile creates a new log file in dir named after the current time in
// loc, creating dir if needed.
func CreateFile(dir string, loc *time.Location, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return os.Create(filepath.Join(dir, now.In(loc).Format("2006-01-02 15.04.05")+".log"))
}
