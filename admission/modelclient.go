package admission

import (
	"context"
	"log/slog"
	"time"

	"github.com/lexgrove/evidentia/ai"
	"github.com/lexgrove/evidentia/retry"
)

// ThrottleNotifier receives the signal that the upstream model is rate
// limiting. Satisfied by *Controller.
type ThrottleNotifier interface {
	SignalThrottle()
}

// RetryingModelClient wraps an ai.Generator with throttle-aware retries.
// Throttling errors are retried with linear capped backoff; any other error
// fails immediately. Once the retry count for one call crosses the signal
// threshold, the notifier is told regardless of whether the call eventually
// succeeds.
type RetryingModelClient struct {
	generator       ai.Generator
	notifier        ThrottleNotifier
	maxAttempts     int
	signalThreshold int
	step            time.Duration
	cap             time.Duration
	logger          *slog.Logger
}

// ClientOption configures a RetryingModelClient.
type ClientOption func(*RetryingModelClient) error

// WithMaxAttempts sets how many times one call may run before the throttle
// error is surfaced. Default is 5.
func WithMaxAttempts(n int) ClientOption {
	return func(c *RetryingModelClient) error {
		if n <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		c.maxAttempts = n
		return nil
	}
}

// WithSignalThreshold sets the attempt count at which the notifier is told
// about sustained throttling. Default is 3.
func WithSignalThreshold(n int) ClientOption {
	return func(c *RetryingModelClient) error {
		if n < 1 {
			n = 1
		}
		c.signalThreshold = n
		return nil
	}
}

// WithBackoff sets the linear backoff parameters between throttled attempts.
// Defaults are 1s step capped at 5s.
func WithBackoff(step, max time.Duration) ClientOption {
	return func(c *RetryingModelClient) error {
		c.step = step
		c.cap = max
		return nil
	}
}

// WithClientLogger sets a custom logger.
// Default is slog.Default().
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *RetryingModelClient) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewRetryingModelClient creates a client around the generator. notifier may
// be nil when no admission feedback is wanted (e.g., one-shot CLI use).
func NewRetryingModelClient(generator ai.Generator, notifier ThrottleNotifier, opts ...ClientOption) (*RetryingModelClient, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	c := &RetryingModelClient{
		generator:       generator,
		notifier:        notifier,
		maxAttempts:     5,
		signalThreshold: 3,
		step:            retry.DefaultStep,
		cap:             retry.DefaultCap,
		logger:          slog.Default().With("component", "model-client"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

var _ ModelCaller = (*RetryingModelClient)(nil)

// SetNotifier attaches the admission feedback target after construction,
// breaking the construction cycle between client and controller. Must be
// called before the client starts serving requests.
func (c *RetryingModelClient) SetNotifier(n ThrottleNotifier) {
	c.notifier = n
}

// Generate executes one outbound generation call with throttle-aware retry.
func (c *RetryingModelClient) Generate(ctx context.Context, prompt string) (string, error) {
	signaled := false

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		answer, err := c.generator.Generate(ctx, prompt)
		if err == nil {
			if attempt > 1 {
				c.logger.Debug("generation succeeded after throttled retries", "attempt", attempt)
			}
			return answer, nil
		}

		if !ai.IsThrottle(err) {
			return "", err
		}
		lastErr = err

		if attempt >= c.signalThreshold && !signaled && c.notifier != nil {
			c.logger.Warn("sustained throttling, signaling admission controller", "attempt", attempt)
			c.notifier.SignalThrottle()
			signaled = true
		}

		if attempt == c.maxAttempts {
			break
		}

		c.logger.Debug("throttled by upstream model, backing off",
			"attempt", attempt, "maxAttempts", c.maxAttempts)
		if sleepErr := retry.Sleep(ctx, retry.Delay(attempt, c.step, c.cap)); sleepErr != nil {
			return "", sleepErr
		}
	}

	return "", &ai.TransientError{Attempt: c.maxAttempts, Cause: lastErr}
}
