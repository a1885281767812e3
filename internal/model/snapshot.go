package model

import "time"

// Snapshot identifies one dated capture of competitor and client data.
type Snapshot struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"`
}
