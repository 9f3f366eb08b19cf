package memorystore_test

import (
	"context"

	"github.com/dogmatiq/troupe/store"
	"github.com/dogmatiq/troupe/store/internal/storetest"
	. "github.com/dogmatiq/troupe/store/memorystore"
	. "github.com/onsi/ginkgo/v2"
)

var _ = Describe("type Store", func() {
	storetest.Declare(
		func(ctx context.Context, in storetest.In) storetest.Out {
			return storetest.Out{
				NewProvider: func() (store.Provider, func()) {
					return &Provider{}, nil
				},
			}
		},
		nil,
	)
})
