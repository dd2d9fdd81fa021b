package model

import "time"

// EventType names a lifecycle event emitted to observer sinks.
type EventType string

const (
	EventRenewalState      EventType = "renewal.state"
	EventRenewalConfirmed  EventType = "renewal.confirmed"
	EventRenewalPartial    EventType = "renewal.partial"
	EventRenewalFailed     EventType = "renewal.failed"
	EventStorageExtended   EventType = "storage.extended"
	EventStorageSufficient EventType = "storage.sufficient"
	EventStorageDeleted    EventType = "storage.deleted"
	EventStorageUploaded   EventType = "storage.uploaded"
	EventContentConfirmed  EventType = "content.confirmed"
	EventContentPartial    EventType = "content.partial"
	EventContentFailed     EventType = "content.failed"
	EventAdSpaceConfirmed  EventType = "adspace.confirmed"
	EventAdSpacePartial    EventType = "adspace.partial"
	EventAdSpaceFailed     EventType = "adspace.failed"
	EventConfirmAttempt    EventType = "confirm.attempt"
)

// Event is one observable step of a coordinator run.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id,omitempty"`
	LeaseID   string         `json:"lease_id,omitempty"`
	ObjectID  ObjectID       `json:"object_id,omitempty"`
	Digest    TxDigest       `json:"digest,omitempty"`
	State     string         `json:"state,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}
