package recorder

import (
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

var errNotYet = errors.New("condition not met")

// retryFor calls do every delay until it reports true or duration has passed.
// do receives the time left. It returns false when the condition was never met.
func retryFor(do func(time.Duration) bool, delay, duration time.Duration) bool {
	start := time.Now()
	err := retry.Do(func() error {
		timeLeft := duration - time.Since(start)
		if !do(timeLeft) {
			return errNotYet
		}
		return nil
	},
		retry.Attempts(0),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return err != nil && time.Since(start) <= duration
		}),
	)
	return err == nil
}
