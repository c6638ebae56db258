package model

type AuditEntry struct {
	Action     string `json:"action"`
	OccurredAt string `json:"occurred_at"`
	ActorID    string `json:"actor_id,omitempty"`
	Status     string `json:"status"`
	Details    any    `json:"details,omitempty"`
}
