package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	RateLimit int    `json:"rate_limit,omitempty"`
	Pending   *int   `json:"pending,omitempty"`
	Running   *int   `json:"running,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	resp := healthResponse{
		Status:    "healthy",
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		RateLimit: s.rateLimit,
	}
	if s.gateway != nil {
		stats := s.gateway.Stats()
		resp.Pending = &stats.Pending
		resp.Running = &stats.Running
	}
	respondOK(w, reqID, resp)
}
