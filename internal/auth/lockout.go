package auth

import "time"

// LockoutPolicy controls when repeated sign-in failures lock an account.
//
// States:
//
//	Unlocked --(MaxFailedAttempts-th consecutive failure)--> Locked(until now+Window)
//	Locked   --(clock passes until)---------------------------> Unlocked
//	Unlocked --(successful sign-in)----------------------------> Unlocked, counter reset
//
// The counter is reset when the lock is applied, so an account coming out
// of lockout starts with a full set of attempts.
type LockoutPolicy struct {
	MaxFailedAttempts int
	Window            time.Duration
}

// DefaultLockoutPolicy: 5 failures lock the account for 5 minutes.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxFailedAttempts: 5,
		Window:            5 * time.Minute,
	}
}

// IsLockedOut reports whether u is in the Locked state at now.
func IsLockedOut(u *User, now time.Time) bool {
	return u.LockoutEnabled && u.LockoutEnd != nil && now.Before(*u.LockoutEnd)
}

// Remaining returns how many more failures are allowed after failedCount.
func (p LockoutPolicy) Remaining(failedCount int) int {
	if n := p.MaxFailedAttempts - failedCount; n > 0 {
		return n
	}
	return 0
}

// LockedUntil returns the end of a lock applied at now, rounded up to the
// whole second the store keeps so the lock never lasts less than Window.
func (p LockoutPolicy) LockedUntil(now time.Time) time.Time {
	end := now.Add(p.Window).UTC()
	if whole := end.Truncate(time.Second); !whole.Equal(end) {
		return whole.Add(time.Second)
	}
	return end
}
