package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/wolfeidau/webstarter/internal/telemetry"
)

// Reloader fans rebuild notifications out to connected browsers as
// server-sent events.
type Reloader struct {
	mu      sync.Mutex
	clients map[chan string]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func NewReloader() *Reloader {
	return &Reloader{
		clients: make(map[chan string]struct{}),
		done:    make(chan struct{}),
	}
}

// Close ends every open event stream. Register it with
// http.Server.RegisterOnShutdown, Shutdown does not cancel in-flight
// request contexts.
func (r *Reloader) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Notify tells every connected client to reload. Clients which have not
// consumed the previous event keep it; events are not queued.
func (r *Reloader) Notify(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ch := range r.clients {
		select {
		case ch <- reason:
		default:
		}
	}

	telemetry.GetMetrics().ReloadsNotified.Add(context.Background(), 1)
}

// Clients returns the number of connected clients.
func (r *Reloader) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Reloader) subscribe() chan string {
	ch := make(chan string, 1)

	r.mu.Lock()
	r.clients[ch] = struct{}{}
	r.mu.Unlock()

	telemetry.GetMetrics().ReloadClients.Add(context.Background(), 1)
	return ch
}

func (r *Reloader) unsubscribe(ch chan string) {
	r.mu.Lock()
	delete(r.clients, ch)
	r.mu.Unlock()

	telemetry.GetMetrics().ReloadClients.Add(context.Background(), -1)
}

// ServeHTTP streams "change" events until the client goes away or the
// reloader is closed.
func (r *Reloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := r.subscribe()
	defer r.unsubscribe(ch)

	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-req.Context().Done():
			return
		case <-r.done:
			return
		case reason := <-ch:
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", reason); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
