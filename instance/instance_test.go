package instance_test

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/troupe/fixtures"
	. "github.com/dogmatiq/troupe/instance"
	"github.com/dogmatiq/troupe/mailbox"
	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
	"github.com/dogmatiq/troupe/subscription"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Instance", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		packer  *record.Packer
		mb      *mailbox.Mailbox
		fanout  *subscription.Fanout
		stub    *fixtures.StoreStub
		inst    *Instance
		runDone chan error
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 3*time.Second)

		packer = fixtures.NewPacker()
		mb = mailbox.New(10, mailbox.Block)
		fanout = &subscription.Fanout{}
		stub = &fixtures.StoreStub{}
		runDone = nil

		inst = &Instance{
			ID:           fixtures.DefaultRuntimeID,
			InitialState: 0,
			Mailbox:      mb,
			Subscribers:  fanout,
			Store:        stub,
			Packer: &record.Packer{
				Source: fixtures.DefaultRuntimeID,
			},
		}
	})

	AfterEach(func() {
		cancel()
	})

	// run starts the instance's processing loop in the background.
	run := func(runCtx context.Context) {
		runDone = make(chan error, 1)

		go func() {
			runDone <- inst.Run(runCtx)
		}()
	}

	// send enqueues a command record carrying no payload.
	send := func(rec *record.Record) {
		Expect(mb.Put(ctx, rec)).ShouldNot(HaveOccurred())
	}

	// increment is a workflow that treats the state as an integer counter.
	increment := func(
		_ context.Context,
		_ *record.Record,
		state any,
	) (any, []*record.Record, error) {
		return state.(int) + 1, nil, nil
	}

	Describe("func Run()", func() {
		It("invokes the workflow for each record, in order", func() {
			spy := &fixtures.WorkflowSpy{}
			inst.Workflow = spy.Wrap(nil)

			run(ctx)

			recs := []*record.Record{
				packer.PackCommand(inst.ID, []byte("first")),
				packer.PackCommand(inst.ID, []byte("second")),
				packer.PackCommand(inst.ID, []byte("third")),
			}

			for _, rec := range recs {
				send(rec)
			}

			Eventually(spy.Observed).Should(Equal(recs))
		})

		It("commits the state returned by the workflow", func() {
			inst.Workflow = increment

			run(ctx)

			for i := 0; i < 3; i++ {
				send(packer.PackCommand(inst.ID, nil))
			}

			Eventually(func() uint64 {
				return inst.Snapshot().Version
			}).Should(BeEquivalentTo(3))

			snap := inst.Snapshot()
			Expect(snap.State).To(Equal(3))
			Expect(snap.Status).To(Equal(Idle))
		})

		It("publishes output records to subscribers", func() {
			var out *record.Record

			inst.Workflow = func(
				_ context.Context,
				rec *record.Record,
				state any,
			) (any, []*record.Record, error) {
				out = packer.PackChildEvent(rec, inst.ID, []byte("produced"))
				return state, []*record.Record{out}, nil
			}

			sub := fanout.Subscribe()
			defer sub.Close()

			run(ctx)
			send(packer.PackCommand(inst.ID, nil))

			rec, err := sub.Next(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(rec).To(BeIdenticalTo(out))
		})

		It("appends persistent records to the activity store", func() {
			inst.Workflow = func(
				_ context.Context,
				rec *record.Record,
				state any,
			) (any, []*record.Record, error) {
				out := packer.PackChildEvent(rec, inst.ID, []byte("produced"))
				out.Meta.Persistent = true
				return state, []*record.Record{out}, nil
			}

			run(ctx)

			in := packer.PackCommand(inst.ID, []byte("consumed"))
			in.Meta.Persistent = true
			send(in)

			Eventually(func() ([]*record.Record, error) {
				return stub.Query(ctx, store.Query{})
			}).Should(HaveLen(2))
		})

		It("does not append transient records to the activity store", func() {
			inst.Workflow = increment

			run(ctx)
			send(packer.PackCommand(inst.ID, nil))

			Eventually(func() uint64 {
				return inst.Snapshot().Version
			}).Should(BeEquivalentTo(1))

			recs, err := stub.Query(ctx, store.Query{})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(recs).To(BeEmpty())
		})

		When("the workflow fails", func() {
			failure := errors.New("<failure>")

			BeforeEach(func() {
				inst.Workflow = func(
					_ context.Context,
					rec *record.Record,
					state any,
				) (any, []*record.Record, error) {
					if string(rec.Payload) == "fail" {
						return nil, nil, failure
					}

					return state.(int) + 1, nil, nil
				}
			})

			It("retains the last good state", func() {
				run(ctx)

				send(packer.PackCommand(inst.ID, nil))
				send(packer.PackCommand(inst.ID, []byte("fail")))

				Eventually(func() Status {
					return inst.Snapshot().Status
				}).Should(Equal(Errored))

				snap := inst.Snapshot()
				Expect(snap.State).To(Equal(1))
				Expect(snap.Version).To(BeEquivalentTo(1))
			})

			It("publishes an error record carrying the failure", func() {
				sub := fanout.Subscribe()
				defer sub.Close()

				run(ctx)
				send(packer.PackCommand(inst.ID, []byte("fail")))

				rec, err := sub.Next(ctx)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(rec.Type).To(Equal(record.ErrorType))
				Expect(string(rec.Payload)).To(ContainSubstring("<failure>"))
			})

			It("continues processing subsequent records", func() {
				run(ctx)

				send(packer.PackCommand(inst.ID, []byte("fail")))
				send(packer.PackCommand(inst.ID, nil))

				Eventually(func() uint64 {
					return inst.Snapshot().Version
				}).Should(BeEquivalentTo(1))

				Expect(inst.Snapshot().Status).To(Equal(Idle))
			})

			It("stops if the failure is fatal", func() {
				inst.Workflow = func(
					context.Context,
					*record.Record,
					any,
				) (any, []*record.Record, error) {
					return nil, nil, Fatal(failure)
				}

				run(ctx)
				send(packer.PackCommand(inst.ID, nil))

				var err error
				Eventually(runDone).Should(Receive(&err))
				Expect(errors.Is(err, failure)).To(BeTrue())
				Expect(inst.Snapshot().Status).To(Equal(Terminated))
			})
		})

		When("a record expires while queued", func() {
			It("reports the expiry without invoking the workflow", func() {
				invoked := false
				inst.Workflow = func(
					_ context.Context,
					_ *record.Record,
					state any,
				) (any, []*record.Record, error) {
					invoked = true
					return state, nil, nil
				}

				rec := packer.PackCommand(inst.ID, nil)
				rec.Meta.Timeout = 10 * time.Millisecond
				rec.Meta.ScheduledFor = time.Now().Add(1 * time.Hour)
				send(rec)

				sub := fanout.Subscribe()
				defer sub.Close()

				run(ctx)

				got, err := sub.Next(ctx)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(got.Type).To(Equal(record.ErrorType))
				Expect(got.Meta.CausationID).To(Equal(rec.ID))
				Expect(invoked).To(BeFalse())
			})
		})

		When("a store append fails", func() {
			It("reports the failure and keeps running", func() {
				stub.AppendFunc = func(
					context.Context,
					...*record.Record,
				) error {
					return errors.New("<store failure>")
				}

				inst.Workflow = increment

				sub := fanout.Subscribe()
				defer sub.Close()

				run(ctx)

				rec := packer.PackCommand(inst.ID, nil)
				rec.Meta.Persistent = true
				send(rec)

				got, err := sub.Next(ctx)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(got.Type).To(Equal(record.ErrorType))
				Expect(string(got.Payload)).To(ContainSubstring("<store failure>"))

				// The commit itself survives the store failure.
				Expect(inst.Snapshot().Version).To(BeEquivalentTo(1))
			})
		})

		When("the instance is terminated", func() {
			It("closes the mailbox and subscriptions", func() {
				inst.Workflow = increment

				sub := fanout.Subscribe()
				defer sub.Close()

				runCtx, cancelRun := context.WithCancel(ctx)
				run(runCtx)
				cancelRun()

				Eventually(runDone).Should(Receive())

				err := mb.Put(ctx, packer.PackCommand(inst.ID, nil))
				Expect(err).To(Equal(mailbox.ErrClosed))

				_, err = sub.Next(ctx)
				Expect(err).To(Equal(subscription.ErrClosed))
			})

			It("abandons an in-flight workflow invocation once the grace period elapses", func() {
				blocked := make(chan struct{})

				inst.GracePeriod = 20 * time.Millisecond
				inst.Workflow = func(
					ctx context.Context,
					_ *record.Record,
					state any,
				) (any, []*record.Record, error) {
					close(blocked)
					<-ctx.Done()
					return state, nil, ctx.Err()
				}

				runCtx, cancelRun := context.WithCancel(ctx)
				run(runCtx)

				send(packer.PackCommand(inst.ID, nil))
				Eventually(blocked).Should(BeClosed())

				cancelRun()

				Eventually(runDone).Should(Receive())
				Expect(inst.Snapshot().Status).To(Equal(Terminated))
			})

			It("commits a workflow invocation that finishes within the grace period", func() {
				blocked := make(chan struct{})

				inst.GracePeriod = 1 * time.Second
				inst.Workflow = func(
					_ context.Context,
					_ *record.Record,
					state any,
				) (any, []*record.Record, error) {
					close(blocked)
					time.Sleep(20 * time.Millisecond)
					return state.(int) + 1, nil, nil
				}

				runCtx, cancelRun := context.WithCancel(ctx)
				run(runCtx)

				send(packer.PackCommand(inst.ID, nil))
				Eventually(blocked).Should(BeClosed())

				cancelRun()

				Eventually(runDone).Should(Receive())
				Expect(inst.Snapshot().Version).To(BeEquivalentTo(1))
			})
		})
	})

	Describe("func Snapshot()", func() {
		It("returns the initial state before the loop starts", func() {
			inst.InitialState = 42

			snap := inst.Snapshot()
			Expect(snap.RuntimeID).To(Equal(inst.ID))
			Expect(snap.State).To(Equal(42))
			Expect(snap.Status).To(Equal(Idle))
			Expect(snap.Version).To(BeZero())
		})
	})
})
