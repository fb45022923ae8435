package model

import "time"

type TransferState string

const (
	StateCopying    TransferState = "COPYING"
	StateSettling   TransferState = "SETTLING"
	StateVerifying  TransferState = "VERIFYING"
	StateMatched    TransferState = "MATCHED"
	StateMismatched TransferState = "MISMATCHED"
	StateFailed     TransferState = "FAILED"
	StateVanished   TransferState = "VANISHED"
)

// IsTerminal reports whether no further transition will happen automatically.
func (s TransferState) IsTerminal() bool {
	switch s {
	case StateMatched, StateMismatched, StateFailed, StateVanished:
		return true
	default:
		return false
	}
}

// TransferJob is the life of one source file on its way to the destination tree.
type TransferJob struct {
	ID        string        `json:"id"`
	Src       string        `json:"src"`
	Dst       string        `json:"dst"`
	Rel       string        `json:"rel"`
	State     TransferState `json:"state"`
	Copies    int           `json:"copies"`
	StartedAt time.Time     `json:"started_at"`
}

// TransferResult is what a finished job reports to the history.
type TransferResult struct {
	Job      TransferJob
	Match    *bool
	Err      error
	Duration time.Duration
}
