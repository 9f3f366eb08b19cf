package storetest

import (
	"context"
	"time"

	"github.com/dogmatiq/troupe/fixtures"
	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
	"github.com/onsi/ginkgo/v2"
)

// In is a container for values that are provided to the store-specific
// "before" function.
type In struct {
	// Packer generates the records used by the tests.
	Packer *record.Packer
}

// Out is a container for values that are provided by the store-specific
// "before" function.
type Out struct {
	// NewProvider returns a provider that opens stores of the type under
	// test, and a function that releases any resources allocated by it.
	NewProvider func() (store.Provider, func())

	// TestTimeout is the maximum duration allowed for each test.
	TestTimeout time.Duration

	// AssumeBlockingDuration specifies how long the tests should wait before
	// assuming a call to Cursor.Next() is successfully blocking, waiting for
	// a new record, as opposed to in the process of "checking" if any records
	// are already available.
	AssumeBlockingDuration time.Duration
}

const (
	// DefaultTestTimeout is the default test timeout.
	DefaultTestTimeout = 3 * time.Second

	// DefaultAssumeBlockingDuration is the default "assumed blocking duration".
	DefaultAssumeBlockingDuration = 150 * time.Millisecond
)

// Declare declares generic behavioral tests for a specific activity store
// implementation.
func Declare(
	before func(context.Context, In) Out,
	after func(),
) {
	var (
		ctx    context.Context
		cancel func()
		in     In
		out    Out
	)

	ginkgo.Context("standard store test suite", func() {
		ginkgo.BeforeEach(func() {
			setupCtx, cancelSetup := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelSetup()

			in = In{
				Packer: fixtures.NewPacker(),
			}

			out = before(setupCtx, in)

			if out.TestTimeout <= 0 {
				out.TestTimeout = DefaultTestTimeout
			}

			if out.AssumeBlockingDuration <= 0 {
				out.AssumeBlockingDuration = DefaultAssumeBlockingDuration
			}

			ctx, cancel = context.WithTimeout(context.Background(), out.TestTimeout)
		})

		ginkgo.AfterEach(func() {
			if after != nil {
				after()
			}

			cancel()
		})

		declareProviderTests(&ctx, &in, &out)
		declareStoreTests(&ctx, &in, &out)
		declareCursorTests(&ctx, &in, &out)
	})
}
