// Package httpserver builds the HTTP server with defaults suited to
// long-lived streaming responses.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server for the given handler. WriteTimeout stays unset:
// the streaming endpoint holds responses open indefinitely and enforces its
// own inactivity and token deadlines.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
