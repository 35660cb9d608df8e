package service

import "time"

// LockoutPolicy decides, from the persisted counters and the current time,
// whether a login attempt may proceed. Kept as a value so the fixed 30-minute
// window can be tuned without touching the orchestrator.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: 5, Duration: 30 * time.Minute}
}

// Locked reports whether the account is inside an active lockout window.
func (p LockoutPolicy) Locked(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// LockAfter reports whether the given consecutive-failure count triggers a
// new lockout.
func (p LockoutPolicy) LockAfter(failures int) bool {
	return failures >= p.Threshold
}
