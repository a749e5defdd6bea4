package wsconsumer

import (
	_ "embed"
	"net/http"
)

//go:embed page.html
var demoPage []byte

// PageHandler serves a minimal consumer page that connects back to the
// websocket endpoint and renders the delivered payloads.
func PageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(demoPage)
	})
}
