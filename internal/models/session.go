package models

// SessionState is the submission controller's lifecycle state.
type SessionState string

const (
	StateUninitialized  SessionState = "uninitialized"
	StateAuthenticating SessionState = "authenticating"
	StateReady          SessionState = "ready"
	StateSubmitting     SessionState = "submitting"
	StateError          SessionState = "error"
)

// Session is a read-only snapshot of one editing session.
type Session struct {
	State         SessionState   `json:"state"`
	Loading       bool           `json:"loading"`
	LastError     string         `json:"lastError,omitempty"`
	ApplicationID string         `json:"applicationId,omitempty"`
	Saved         bool           `json:"saved"`
	References    *ReferenceData `json:"references,omitempty"`
}
