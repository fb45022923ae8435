package model

import "time"

type OutstandingEntry struct {
	Path      string    `json:"path"`
	StartedAt time.Time `json:"started_at"`
}

type StatusSnapshot struct {
	Src         string             `json:"src"`
	Dst         string             `json:"dst"`
	StartedAt   time.Time          `json:"started_at"`
	Verify      string             `json:"verify"`
	Watches     int                `json:"watches"`
	Active      int                `json:"active"`
	Outstanding []OutstandingEntry `json:"outstanding"`
	Matched     int                `json:"matched"`
	Mismatched  int                `json:"mismatched"`
	Failed      int                `json:"failed"`
	Vanished    int                `json:"vanished"`
}
