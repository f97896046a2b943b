package handlers

import (
	"net/http"
	"time"
)

const DefaultServiceName = "DeepSeek API Proxy"

// timestampLayout is ISO 8601 with milliseconds, always in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type healthResponse struct {
	Status    string   `json:"status"`
	Service   string   `json:"service"`
	Timestamp string   `json:"timestamp"`
	Endpoints []string `json:"endpoints"`
}

// HealthHandler answers liveness probes. It has no failure path.
type HealthHandler struct {
	service   string
	endpoints []string
	now       func() time.Time
}

func NewHealthHandler(service string, endpoints []string) *HealthHandler {
	if service == "" {
		service = DefaultServiceName
	}
	if endpoints == nil {
		endpoints = []string{}
	}
	return &HealthHandler{
		service:   service,
		endpoints: endpoints,
		now:       time.Now,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   h.service,
		Timestamp: h.now().UTC().Format(timestampLayout),
		Endpoints: h.endpoints,
	})
}
