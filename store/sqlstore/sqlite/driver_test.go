//go:build cgo

package sqlite_test

import (
	"context"
	"os"
	"time"

	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/troupe/store"
	"github.com/dogmatiq/troupe/store/internal/storetest"
	"github.com/dogmatiq/troupe/store/sqlstore"
	. "github.com/dogmatiq/troupe/store/sqlstore/sqlite"
	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Driver", func() {
	storetest.Declare(
		func(ctx context.Context, in storetest.In) storetest.Out {
			return storetest.Out{
				NewProvider: func() (store.Provider, func()) {
					f, err := os.CreateTemp("", "troupe-sqlstore-*.db")
					Expect(err).ShouldNot(HaveOccurred())
					Expect(f.Close()).ShouldNot(HaveOccurred())

					return &sqlstore.DSNProvider{
							DriverName:  "sqlite3",
							DSN:         f.Name(),
							Driver:      Driver,
							PollBackoff: backoff.Constant(10 * time.Millisecond),
						}, func() {
							os.Remove(f.Name())
						}
				},
			}
		},
		nil,
	)
})
