package extraction

import "time"

const (
	backoffBase = 2 * time.Second
	backoffCap  = 5 * time.Minute
)

// NextDelay returns the wait before the given attempt number runs again.
// Attempt 1 waits the base, each later attempt doubles it, capped.
func NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := backoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= backoffCap {
			return backoffCap
		}
	}
	return delay
}
