// Package httpserver constructs the process's HTTP listener.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for the given handler. Header reads and idle
// connections are bounded so stalled clients cannot pin a worker before
// routing even begins.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
