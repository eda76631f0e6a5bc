package proxy

import (
	"io"
	"net/http"

	"github.com/google/uuid"
)

var _ http.Handler = &Gateway{}

// ServeHTTP serves every method and path through the catch-all handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	rec, err := g.normalizer.FromHTTP(r)
	resp := g.respond(r.Context(), requestID, rec, err)

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.WriteString(w, resp.Body)
}
