package overlay

import "time"

// TapCounter implements the N-taps-within-timeout close gesture.
// It is not safe for concurrent use; the presenter goroutine owns it.
type TapCounter struct {
	threshold int
	timeout   time.Duration
	count     int
	deadline  time.Time
}

// NewTapCounter creates a counter. A threshold of 0 disables the gesture.
func NewTapCounter(threshold int, timeout time.Duration) *TapCounter {
	if threshold < 0 {
		threshold = 0
	}
	return &TapCounter{threshold: threshold, timeout: timeout}
}

// Enabled reports whether taps are counted at all.
func (t *TapCounter) Enabled() bool {
	return t.threshold > 0
}

// Threshold returns the number of taps needed to close.
func (t *TapCounter) Threshold() int {
	return t.threshold
}

// Tap records a tap at now and reports whether the threshold was reached.
// Reaching the threshold resets the counter. Otherwise the countdown
// restarts from now.
func (t *TapCounter) Tap(now time.Time) bool {
	if t.threshold <= 0 {
		return false
	}
	if t.count > 0 && now.After(t.deadline) {
		t.count = 0
	}

	t.count++
	if t.count >= t.threshold {
		t.Reset()
		return true
	}
	t.deadline = now.Add(t.timeout)
	return false
}

// Expire resets the counter if its countdown has run out at now.
func (t *TapCounter) Expire(now time.Time) bool {
	if t.count == 0 || !now.After(t.deadline) {
		return false
	}
	t.Reset()
	return true
}

// Reset zeroes the counter and cancels the countdown.
func (t *TapCounter) Reset() {
	t.count = 0
	t.deadline = time.Time{}
}

// Count returns the taps counted in the current countdown.
func (t *TapCounter) Count() int {
	return t.count
}
