package models

import "time"

// AuditRecord is one append-only entry in the governance log. Every approval
// decision and gateway-executed action writes exactly one record.
type AuditRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Actor         string    `json:"actor"`
	Agent         string    `json:"agent,omitempty"`
	Action        string    `json:"action"`
	InputRefs     []string  `json:"input_refs,omitempty"`
	OutputRefs    []string  `json:"output_refs,omitempty"`
	Status        string    `json:"status"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// NewAuditRecord creates a record with a generated audit_ id and UTC timestamp.
func NewAuditRecord(actor, action, status string) *AuditRecord {
	return &AuditRecord{
		ID:        "audit_" + shortID(),
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Action:    action,
		Status:    status,
	}
}
