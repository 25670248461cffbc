package dedupe

// Option applies a configuration option to the tracker.
type Option func(*inFlight)

// WithMaxSize caps how many keys may be held at once.
// If maxSize <= 0 the tracker is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inFlight) {
		d.maxSize = maxSize
	}
}
