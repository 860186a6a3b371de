package form

import "time"

// Default controller timings.
const (
	DefaultValidateDebounce   = 300 * time.Millisecond
	DefaultEmailCheckDebounce = 500 * time.Millisecond
	DefaultAutoResetDelay     = 5 * time.Second
)

// Option customises controller behaviour at construction time.
type Option func(*Controller)

// WithValidateDebounce sets the quiet period before a field update
// triggers a full-form validation pass. Ignored when immediate validation
// is enabled.
func WithValidateDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.validateDebounce = d
		}
	}
}

// WithEmailCheckDebounce sets the quiet period before an email change
// triggers the asynchronous existence check.
func WithEmailCheckDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.emailDebounce = d
		}
	}
}

// WithAutoResetDelay sets how long the controller stays in the Success
// state before resetting to Idle. Zero disables the auto-reset.
func WithAutoResetDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.autoResetDelay = d
	}
}

// WithImmediateValidation makes every field update validate that field
// synchronously instead of scheduling a debounced full-form pass.
func WithImmediateValidation() Option {
	return func(c *Controller) {
		c.immediate = true
	}
}

// WithSource tags submissions with the UI placement that produced them.
func WithSource(source string) Option {
	return func(c *Controller) {
		if source != "" {
			c.source = source
		}
	}
}

// WithOnChange registers a callback invoked with a fresh snapshot after
// every observable state change. The callback runs outside the controller
// lock and must not be assumed to run on any particular goroutine.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}
