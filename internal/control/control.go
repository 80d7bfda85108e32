package control

import (
	"fmt"
	"time"
)

// Policy defines the limits of one agent run.
type Policy struct {
	MaxTurns    int
	MaxWallTime time.Duration
	// MaxRepeats is how many identical consecutive tool rounds are tolerated
	// before the agent is asked to answer without tools.
	MaxRepeats int
}

// DefaultPolicy returns the default agent policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxTurns:    4,
		MaxWallTime: 90 * time.Second,
		MaxRepeats:  2,
	}
}

// LimitType identifies which limit is reached.
type LimitType string

const (
	LimitTurns    LimitType = "max_turns"
	LimitWallTime LimitType = "max_wall_time_seconds"
)

// LimitError indicates a run limit was reached.
type LimitError struct {
	Type      LimitType
	Value     int64
	Threshold int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit reached type=%s value=%d threshold=%d", e.Type, e.Value, e.Threshold)
}

// CheckTurnLimit validates turn usage against policy.
func CheckTurnLimit(p Policy, usedTurns int) error {
	if p.MaxTurns <= 0 {
		return &LimitError{Type: LimitTurns, Value: int64(usedTurns), Threshold: int64(p.MaxTurns)}
	}
	if usedTurns >= p.MaxTurns {
		return &LimitError{Type: LimitTurns, Value: int64(usedTurns), Threshold: int64(p.MaxTurns)}
	}
	return nil
}

// CheckWallTime validates elapsed time against policy.
func CheckWallTime(p Policy, startedAt time.Time, now time.Time) error {
	limit := p.MaxWallTime
	if limit <= 0 {
		return &LimitError{Type: LimitWallTime, Value: 0, Threshold: int64(limit.Seconds())}
	}
	elapsed := now.Sub(startedAt)
	if elapsed > limit {
		return &LimitError{
			Type:      LimitWallTime,
			Value:     int64(elapsed.Seconds()),
			Threshold: int64(limit.Seconds()),
		}
	}
	return nil
}

// NoProgress returns whether the same fingerprint repeats k times.
func NoProgress(lastFingerprints []string, k int) bool {
	if k <= 1 || len(lastFingerprints) < k {
		return false
	}
	ref := lastFingerprints[len(lastFingerprints)-1]
	for i := len(lastFingerprints) - k; i < len(lastFingerprints)-1; i++ {
		if lastFingerprints[i] != ref {
			return false
		}
	}
	return true
}
