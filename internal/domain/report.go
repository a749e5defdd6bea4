package domain

import "time"

// StepOutcome records how one delivery step went.
type StepOutcome struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// DeliveryReport summarizes one delivery pass to a consumer.
type DeliveryReport struct {
	RegistrationID string         `json:"registration_id"`
	Steps          []StepOutcome  `json:"steps"`
	HookInvoked    bool           `json:"hook_invoked"`
	Retried        bool           `json:"retried"`
	ConnectionType ConnectionType `json:"connection_type"`
	DurationMillis int64          `json:"duration_ms"`
	DeliveredAt    time.Time      `json:"delivered_at"`
}

// Failed returns the number of steps that did not succeed.
func (r DeliveryReport) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.OK {
			n++
		}
	}
	return n
}
