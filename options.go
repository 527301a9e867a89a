package notifybox

import "time"

const (
	defaultDrainLimit    = 50
	defaultLease         = 5 * time.Minute
	defaultPollInterval  = time.Second
	defaultWorkers       = 1
	defaultCountInterval = 0
)

// Config defines how records are created and drained.
type Config struct {
	MaxAttempts       int
	MaxDrainLimit     int
	Lease             time.Duration
	Backoff           Backoff
	Clock             Clock
	Generator         IDGenerator
	Registry          *Registry
	Logger            Logger
	Metrics           Metrics
	FailureClassifier FailureClassifier
	ErrorHandler      FailureHandler
	DeadLetterHandler FailureHandler
	OrderHook         OrderHook
	FulfillmentTypes  []Type
	SendTimeout       time.Duration
	backoffSet        bool
	fulfillmentSet    bool
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxDrainLimit <= 0 {
		c.MaxDrainLimit = defaultDrainLimit
	}
	if c.Lease <= 0 {
		c.Lease = defaultLease
	}
	if !c.backoffSet {
		c.Backoff = DefaultBackoff()
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Generator == nil {
		c.Generator = UUIDv7Generator{}
	}
	if c.Registry == nil {
		c.Registry = NewRegistry()
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
	if c.FailureClassifier == nil {
		c.FailureClassifier = defaultFailureClassifier
	}
	if !c.fulfillmentSet {
		c.FulfillmentTypes = DefaultFulfillmentTypes()
	}

	return c
}

// Option configures an Enqueuer or a Dispatcher.
type Option func(*Config)

func buildConfig(opts []Option) Config {
	var cfg Config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg.withDefaults()
}

// WithMaxAttempts sets the retry budget assigned to new records.
func WithMaxAttempts(attempts int) Option {
	return func(c *Config) {
		c.MaxAttempts = attempts
	}
}

// WithMaxDrainLimit caps the number of records a single Drain call may claim.
func WithMaxDrainLimit(limit int) Option {
	return func(c *Config) {
		c.MaxDrainLimit = limit
	}
}

// WithLease sets how long a claimed record stays invisible to other drains.
// It should exceed the worst-case time to deliver a full batch: records whose lease
// runs out before their turn are skipped and left for the next drain.
func WithLease(lease time.Duration) Option {
	return func(c *Config) {
		c.Lease = lease
	}
}

// WithBackoff sets the retry delay policy.
func WithBackoff(backoff Backoff) Option {
	return func(c *Config) {
		c.Backoff = backoff
		c.backoffSet = true
	}
}

// WithClock sets the time source.
func WithClock(clock Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithGenerator sets the record ID generator.
func WithGenerator(gen IDGenerator) Option {
	return func(c *Config) {
		c.Generator = gen
	}
}

// WithRegistry sets the payload registry.
func WithRegistry(registry *Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics Metrics) Option {
	return func(c *Config) {
		c.Metrics = metrics
	}
}

// WithFailureClassifier sets the failure classifier for retry/dead-letter decisions.
func WithFailureClassifier(classifier FailureClassifier) Option {
	return func(c *Config) {
		c.FailureClassifier = classifier
	}
}

// WithErrorHandler registers a callback for every failed delivery attempt.
func WithErrorHandler(handler FailureHandler) Option {
	return func(c *Config) {
		c.ErrorHandler = handler
	}
}

// WithDeadLetterHandler registers a callback for records moved to the dead state.
func WithDeadLetterHandler(handler FailureHandler) Option {
	return func(c *Config) {
		c.DeadLetterHandler = handler
	}
}

// WithOrderHook sets the hook invoked after fulfillment notifications are sent.
func WithOrderHook(hook OrderHook) Option {
	return func(c *Config) {
		c.OrderHook = hook
	}
}

// WithFulfillmentTypes replaces the notification types that trigger the order hook.
func WithFulfillmentTypes(types ...Type) Option {
	return func(c *Config) {
		c.FulfillmentTypes = types
		c.fulfillmentSet = true
	}
}

// WithSendTimeout sets a per-delivery timeout.
func WithSendTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.SendTimeout = timeout
	}
}

// SchedulerConfig defines how a Scheduler triggers drains.
type SchedulerConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	Workers       int
	CountInterval time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultDrainLimit
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.CountInterval <= 0 {
		c.CountInterval = defaultCountInterval
	}

	return c
}

// SchedulerOption configures Scheduler behavior.
type SchedulerOption func(*SchedulerConfig)

// WithBatchSize sets the limit passed to each Drain call.
func WithBatchSize(size int) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.BatchSize = size
	}
}

// WithPollInterval sets the delay after a drain that did not fill its batch.
func WithPollInterval(interval time.Duration) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.PollInterval = interval
	}
}

// WithWorkers sets the number of concurrent drain loops.
func WithWorkers(count int) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.Workers = count
	}
}

// WithCountInterval sets the minimum interval between pending/dead count samples.
// Use a positive value to enable sampling or zero to keep it disabled.
// The default is disabled.
func WithCountInterval(interval time.Duration) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.CountInterval = interval
	}
}
