package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "examvm API",
		Version:     "v1",
		Description: "Read-only status of exam VM provisioning",
		Endpoints: []endpointInfo{
			{"/api/v1/health", []string{"GET"}, "Uptime, gateway queue sizes and rate limit"},
			{"/api/v1/exams", []string{"GET"}, "Exams with created and remaining VM counts"},
			{"/api/v1/exams/{id}", []string{"GET"}, "Single exam"},
			{"/api/v1/schedule", []string{"GET"}, "Current creation schedule, earliest first"},
			{"/api/v1/vms", []string{"GET"}, "Recorded VMs; filter with ?state=REQUESTED|RUNNING|ENDED"},
		},
	})
}
