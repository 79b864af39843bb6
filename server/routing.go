package server

import "net/http"

// Handler returns the registry's HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/publish", s.corsMiddleware(s.HandlePublish)) // One-shot publish (POST)
	mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket))    // Streaming publish sessions
	mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	return mux
}

// corsMiddleware adds CORS headers for configured origins.
// Uses the same origin validation as WebSocket connections (server.allowed_origins config)
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}
