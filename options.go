package formula

import "log/slog"

// EvalOptions configures an Evaluator.
type EvalOptions struct {
	// Logger for structured logging. defaults to slog.Default().
	Logger *slog.Logger
	// Stability decides which cells are final. nil means no cell is.
	Stability StabilityClassifier
	// Functions is the function registry. defaults to the built-in library.
	Functions *Registry
	// Clock for NOW and TODAY.
	Clock Clock
	// Random for RAND.
	Random RandomGenerator
	// MaxDepth limits how many formula cells may be evaluated inside one
	// another before the innermost one fails with #REF!.
	MaxDepth int
}

// Option configures evaluator behavior.
type Option func(*EvalOptions)

// DefaultMaxDepth is the nesting limit used when none is configured
const DefaultMaxDepth = 4096

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *EvalOptions) {
		opts.Logger = logger
	}
}

// WithStabilityClassifier sets the classifier deciding which cells are final.
func WithStabilityClassifier(classifier StabilityClassifier) Option {
	return func(opts *EvalOptions) {
		opts.Stability = classifier
	}
}

// WithFunctions replaces the function registry.
func WithFunctions(registry *Registry) Option {
	return func(opts *EvalOptions) {
		opts.Functions = registry
	}
}

// WithClock sets the clock used by NOW and TODAY.
func WithClock(clock Clock) Option {
	return func(opts *EvalOptions) {
		opts.Clock = clock
	}
}

// WithRandom sets the generator used by RAND.
func WithRandom(rng RandomGenerator) Option {
	return func(opts *EvalOptions) {
		opts.Random = rng
	}
}

// WithMaxDepth sets the maximum formula nesting depth.
func WithMaxDepth(depth int) Option {
	return func(opts *EvalOptions) {
		opts.MaxDepth = depth
	}
}
