package troupe

import (
	"runtime"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/troupe/mailbox"
	"github.com/dogmatiq/troupe/store"
	"github.com/dogmatiq/troupe/store/memorystore"
	"github.com/dogmatiq/troupe/subscription"
)

var (
	// DefaultStoreProvider is the default activity store provider.
	//
	// It is overridden by the WithStoreProvider() option.
	DefaultStoreProvider store.Provider = &memorystore.Provider{}

	// DefaultMessageTimeout is the default duration the runtime allows for a
	// single workflow invocation.
	//
	// It is overridden by the WithMessageTimeout() option.
	DefaultMessageTimeout = 5 * time.Second

	// DefaultTerminationGracePeriod is the default duration the runtime
	// waits for an in-flight workflow invocation when an instance is
	// terminated, before the invocation is abandoned.
	//
	// It is overridden by the WithTerminationGracePeriod() option.
	DefaultTerminationGracePeriod = 5 * time.Second

	// DefaultConcurrencyLimit is the default number of workflow invocations
	// that may proceed concurrently across the runtime.
	//
	// It is overridden by the WithConcurrencyLimit() option.
	DefaultConcurrencyLimit = uint(runtime.GOMAXPROCS(0) * 2)

	// DefaultLogger is the default target for log messages produced by the
	// runtime.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger
)

// Option configures the behavior of a runtime.
type Option func(*options)

// WithStoreProvider returns an option that sets the provider of the activity
// store used to persist records.
//
// If this option is omitted or p is nil, DefaultStoreProvider is used.
func WithStoreProvider(p store.Provider) Option {
	return func(opts *options) {
		opts.StoreProvider = p
	}
}

// WithMailboxCapacity returns an option that sets the maximum number of
// records that may be queued on each instance's mailbox.
//
// If this option is omitted or n is non-positive, mailbox.DefaultCapacity is
// used.
func WithMailboxCapacity(n int) Option {
	return func(opts *options) {
		opts.MailboxCapacity = n
	}
}

// WithOverflowPolicy returns an option that sets the behavior of Send() when
// the target instance's mailbox is at capacity.
//
// Under mailbox.Block, the default, Send() blocks until room becomes
// available or its context is canceled. Under mailbox.Reject, Send() fails
// immediately with a MailboxFullError.
func WithOverflowPolicy(p mailbox.OverflowPolicy) Option {
	return func(opts *options) {
		opts.OverflowPolicy = p
	}
}

// WithMessageTimeout returns an option that sets the duration the runtime
// allows for a single workflow invocation.
//
// It applies to records that do not carry their own time-to-live; the
// remaining time-to-live bounds the invocation otherwise.
//
// If this option is omitted or d is zero, DefaultMessageTimeout is used.
func WithMessageTimeout(d time.Duration) Option {
	if d < 0 {
		panic("duration must not be negative")
	}

	return func(opts *options) {
		opts.MessageTimeout = d
	}
}

// WithTerminationGracePeriod returns an option that sets the duration the
// runtime waits for an in-flight workflow invocation when an instance is
// terminated.
//
// An invocation that outlives the grace period is abandoned; its context is
// canceled and the instance reports its status as terminated without waiting
// for the invocation to return.
//
// If this option is omitted or d is zero, DefaultTerminationGracePeriod is
// used.
func WithTerminationGracePeriod(d time.Duration) Option {
	if d < 0 {
		panic("duration must not be negative")
	}

	return func(opts *options) {
		opts.TerminationGracePeriod = d
	}
}

// WithConcurrencyLimit returns an option that limits the number of workflow
// invocations that may proceed at the same time across all instances.
//
// If this option is omitted or n is zero, DefaultConcurrencyLimit is used.
func WithConcurrencyLimit(n uint) Option {
	return func(opts *options) {
		opts.ConcurrencyLimit = n
	}
}

// WithSubscriptionBufferSize returns an option that sets the maximum number
// of unconsumed records buffered by each subscription.
//
// If this option is omitted or n is non-positive,
// subscription.DefaultBufferSize is used.
func WithSubscriptionBufferSize(n int) Option {
	return func(opts *options) {
		opts.SubscriptionBufferSize = n
	}
}

// WithSubscriptionOverflowPolicy returns an option that sets the behavior of
// a subscription whose buffer is full.
//
// Under subscription.DropOldest, the default, the oldest buffered record is
// discarded to make room for the newest. Under subscription.Disconnect, the
// subscription is closed.
func WithSubscriptionOverflowPolicy(p subscription.OverflowPolicy) Option {
	return func(opts *options) {
		opts.SubscriptionPolicy = p
	}
}

// WithLogger returns an option that sets the target for log messages
// produced by the runtime.
//
// If this option is omitted or l is nil, DefaultLogger is used.
func WithLogger(l logging.Logger) Option {
	return func(opts *options) {
		opts.Logger = l
	}
}

// options is a fully-resolved set of runtime configuration options.
type options struct {
	StoreProvider          store.Provider
	MailboxCapacity        int
	OverflowPolicy         mailbox.OverflowPolicy
	MessageTimeout         time.Duration
	TerminationGracePeriod time.Duration
	ConcurrencyLimit       uint
	SubscriptionBufferSize int
	SubscriptionPolicy     subscription.OverflowPolicy
	Logger                 logging.Logger
}

// resolveOptions returns a fully-populated set of options built from the
// given set of option functions.
func resolveOptions(fns ...Option) *options {
	opts := &options{}

	for _, fn := range fns {
		fn(opts)
	}

	if opts.StoreProvider == nil {
		opts.StoreProvider = DefaultStoreProvider
	}

	if opts.MessageTimeout == 0 {
		opts.MessageTimeout = DefaultMessageTimeout
	}

	if opts.TerminationGracePeriod == 0 {
		opts.TerminationGracePeriod = DefaultTerminationGracePeriod
	}

	if opts.ConcurrencyLimit == 0 {
		opts.ConcurrencyLimit = DefaultConcurrencyLimit
	}

	if opts.Logger == nil {
		opts.Logger = DefaultLogger
	}

	return opts
}
