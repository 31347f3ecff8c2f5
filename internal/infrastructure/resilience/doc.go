/*
Package resilience provides a circuit breaker for upstream calls.

The assistant backend is an external service; when it keeps failing the
breaker fails requests fast instead of holding a user's chat open until the
stream timeout. Client cancellations are not held against the upstream.

	breaker := resilience.New("chat-upstream", resilience.Settings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	})
	err := breaker.Do(func() error { return call(ctx) }, func(err error) bool {
		return errors.Is(err, context.Canceled)
	})
*/
package resilience
