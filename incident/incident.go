package incident

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/phoenix/health"
)

// Incident is the immutable record of one recovery attempt.
//
// Status, UptimeScore and ErrorRate describe the health snapshot the
// decision was made on.
type Incident struct {
	ID             string        `json:"id"`
	Service        string        `json:"service"`
	DetectedAt     time.Time     `json:"detectedAt"`
	Action         string        `json:"action"`
	Success        bool          `json:"success"`
	RecoveryTimeMs int64         `json:"recoveryTimeMs"`
	Details        string        `json:"details"`
	Status         health.Status `json:"status"`
	UptimeScore    float64       `json:"uptimeScore"`
	ErrorRate      float64       `json:"errorRate"`
}

// New returns an incident for an attempt on h, detected at the given time.
// The caller fills in the outcome before recording it.
func New(h health.ServiceHealth, action string, detectedAt time.Time) Incident {
	return Incident{
		ID:          uuid.NewString(),
		Service:     h.Name,
		DetectedAt:  detectedAt,
		Action:      action,
		Status:      h.Status,
		UptimeScore: h.UptimeScore,
		ErrorRate:   h.ErrorRate,
	}
}
