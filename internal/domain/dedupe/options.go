package dedupe

// defaultCapacity bounds memory for long-running ingest without losing
// idempotency over a realistic redelivery horizon.
const defaultCapacity = 50000

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithCapacity sets how many IDs are remembered before the oldest are
// evicted. A non-positive capacity disables eviction.
func WithCapacity(capacity int) Option {
	return func(d *inMemoryDeduper) {
		d.limit = capacity
	}
}
