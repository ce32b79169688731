package actuator

import (
	"github.com/jonwraymond/phoenix/health"
)

// Registration attributes actuators read to locate a service's
// infrastructure.
const (
	AttrNamespace  = "namespace"
	AttrDeployment = "deployment"
	AttrWebhook    = "webhook"
)

// attr returns h.Attributes[key], or def when unset.
func attr(h health.ServiceHealth, key, def string) string {
	if v := h.Attributes[key]; v != "" {
		return v
	}
	return def
}
