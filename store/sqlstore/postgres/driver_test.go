package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/troupe/internal/x/sqlx"
	"github.com/dogmatiq/troupe/store"
	"github.com/dogmatiq/troupe/store/internal/storetest"
	"github.com/dogmatiq/troupe/store/sqlstore"
	. "github.com/dogmatiq/troupe/store/sqlstore/postgres"
	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Driver", func() {
	var db *sql.DB

	storetest.Declare(
		func(ctx context.Context, in storetest.In) storetest.Out {
			dsn := os.Getenv("TROUPE_TEST_POSTGRES_DSN")
			if dsn == "" {
				Skip("set TROUPE_TEST_POSTGRES_DSN to run this suite")
			}

			var err error
			db, err = sql.Open("postgres", dsn)
			Expect(err).ShouldNot(HaveOccurred())

			dropSchema(ctx, db)

			return storetest.Out{
				NewProvider: func() (store.Provider, func()) {
					return &sqlstore.Provider{
						DB:          db,
						Driver:      Driver,
						PollBackoff: backoff.Constant(10 * time.Millisecond),
					}, nil
				},
			}
		},
		func() {
			if db != nil {
				dropSchema(context.Background(), db)
				db.Close()
				db = nil
			}
		},
	)
})

// dropSchema removes the activity store's schema elements so that each test
// starts with an empty database.
func dropSchema(ctx context.Context, db *sql.DB) {
	sqlx.Exec(ctx, db, `DROP TABLE IF EXISTS activity`)
	sqlx.Exec(ctx, db, `DROP TABLE IF EXISTS activity_offset`)
}
