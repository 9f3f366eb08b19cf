package storetest

import (
	"context"

	"github.com/dogmatiq/troupe/store"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func declareProviderTests(
	ctx *context.Context,
	in *In,
	out *Out,
) {
	ginkgo.Describe("type Provider (interface)", func() {
		var (
			provider      store.Provider
			closeProvider func()
		)

		ginkgo.BeforeEach(func() {
			provider, closeProvider = out.NewProvider()
		})

		ginkgo.AfterEach(func() {
			if closeProvider != nil {
				closeProvider()
			}
		})

		ginkgo.Describe("func Open()", func() {
			ginkgo.It("returns the same store on repeat calls", func() {
				st1, err := provider.Open(*ctx)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer st1.Close()

				st2, err := provider.Open(*ctx)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				gomega.Expect(st1).To(gomega.BeIdenticalTo(st2))
			})
		})
	})
}
