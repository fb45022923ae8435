// Package retry describes how often and how long a failed step is re-entered.
package retry

import "time"

// Policy is a fixed-delay retry schedule. MaxAttempts of zero means unlimited.
// EscalateEvery of zero disables escalation warnings.
type Policy struct {
	Delay         time.Duration
	MaxAttempts   int
	EscalateEvery int
}

// Forever retries without limit after delay, escalating every n attempts.
func Forever(delay time.Duration, escalateEvery int) Policy {
	return Policy{Delay: delay, EscalateEvery: escalateEvery}
}

// Next reports the wait before the given attempt (1-based count of failures so far)
// is retried, and whether a retry is allowed at all.
func (p Policy) Next(attempt int) (time.Duration, bool) {
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		return 0, false
	}
	return p.Delay, true
}

// ShouldEscalate reports whether this failure count deserves a louder log line.
func (p Policy) ShouldEscalate(attempt int) bool {
	return p.EscalateEvery > 0 && attempt > 0 && attempt%p.EscalateEvery == 0
}

// Attempt tracks one retrying operation.
type Attempt struct {
	Policy  Policy
	Count   int
	Started time.Time
}

func (p Policy) Begin() *Attempt {
	return &Attempt{Policy: p, Started: time.Now()}
}

// Fail records a failure and returns the delay before re-entry.
// ok is false once the policy is exhausted.
func (a *Attempt) Fail() (delay time.Duration, ok bool) {
	a.Count++
	return a.Policy.Next(a.Count)
}

func (a *Attempt) Escalate() bool {
	return a.Policy.ShouldEscalate(a.Count)
}

func (a *Attempt) Elapsed() time.Duration {
	return time.Since(a.Started)
}
