package models

import "time"

// ConsentKind selects one of the two independent consent gates.
type ConsentKind string

const (
	ConsentGeneral ConsentKind = "general"
	ConsentData    ConsentKind = "data"
)

// ConsentRecord is one append-only archive entry.
type ConsentRecord struct {
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
	Accepted  bool      `json:"accepted"`
}
