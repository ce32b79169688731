package health

import (
	"net/http"
)

// LivenessHandler answers liveness probes for the Phoenix process itself.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler reports ready while the monitor's polling loop runs.
func ReadinessHandler(m *Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if !m.Running() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT RUNNING"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// HTTPStatus maps a service status to the code used when serving a single
// record: degraded still answers 200, down answers 503.
func HTTPStatus(s Status) int {
	if s == StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
