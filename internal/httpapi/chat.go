package httpapi

import "net/http"

// Chat mounts the C10 dispatcher as the POST /api/chat handler; the
// dispatcher itself implements http.Handler.
func Chat(dispatcher http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dispatcher.ServeHTTP(w, r)
	}
}
