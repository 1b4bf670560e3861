package main

import (
	"sync"
)

// AuditTrail records operation outcomes for the tamper-evident audit log.
// It is an explicit object handed to the engine, not process-wide state,
// and is persisted inside every snapshot.
//
// Metadata values should stay plain JSON scalars (strings, numbers) so the
// snapshot checksum is stable across a save/load round trip.
type AuditTrail struct {
	mu     sync.RWMutex
	events []AuditEvent
}

// NewAuditTrail creates an empty trail
func NewAuditTrail() *AuditTrail {
	return &AuditTrail{events: []AuditEvent{}}
}

// Record appends one event and echoes it through the structured logger
func (at *AuditTrail) Record(nodeID, action, outcome string, metadata map[string]interface{}) {
	event := AuditEvent{
		Action:    action,
		Metadata:  metadata,
		NodeID:    nodeID,
		Outcome:   outcome,
		Timestamp: epochSeconds(),
	}

	at.mu.Lock()
	at.events = append(at.events, event)
	at.mu.Unlock()

	if logger != nil {
		logger.Info("Audit event",
			"nodeId", nodeID,
			"action", action,
			"outcome", outcome)
	}
}

// Events returns a copy of the recorded events
func (at *AuditTrail) Events() []AuditEvent {
	at.mu.RLock()
	defer at.mu.RUnlock()

	out := make([]AuditEvent, len(at.events))
	copy(out, at.events)
	return out
}

// Restore replaces the trail with previously persisted events
func (at *AuditTrail) Restore(events []AuditEvent) {
	at.mu.Lock()
	defer at.mu.Unlock()

	at.events = make([]AuditEvent, len(events))
	copy(at.events, events)
}

// Len returns the number of recorded events
func (at *AuditTrail) Len() int {
	at.mu.RLock()
	defer at.mu.RUnlock()
	return len(at.events)
}
