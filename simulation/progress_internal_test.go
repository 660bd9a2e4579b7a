package simulation

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/monitoring"
	"github.com/sarchlab/cachesim/sim/hooking"
)

var _ = Describe("progressTracker", func() {
	var (
		bar     *monitoring.ProgressBar
		tracker *progressTracker
	)

	fire := func(pos *hooking.HookPos, bytesRead int64) {
		tracker.Func(hooking.HookCtx{
			Pos:  pos,
			Item: trace.RecordItem{BytesRead: bytesRead},
		})
	}

	BeforeEach(func() {
		bar = monitoring.NewMonitor().CreateProgressBar("trace", 13)
		tracker = &progressTracker{}
		tracker.start(bar)
	})

	It("should keep the current record in progress until it ends", func() {
		fire(trace.HookPosRecordStart, 6)

		Expect(bar.InProgress).To(Equal(uint64(6)))
		Expect(bar.Finished).To(Equal(uint64(0)))

		fire(trace.HookPosRecordEnd, 6)

		Expect(bar.InProgress).To(Equal(uint64(0)))
		Expect(bar.Finished).To(Equal(uint64(6)))

		fire(trace.HookPosRecordStart, 13)
		fire(trace.HookPosRecordEnd, 13)

		Expect(bar.InProgress).To(Equal(uint64(0)))
		Expect(bar.Finished).To(Equal(uint64(13)))
	})

	It("should not count records processed without a reader", func() {
		fire(trace.HookPosRecordStart, 0)
		fire(trace.HookPosRecordEnd, 0)

		Expect(bar.Finished).To(Equal(uint64(0)))
	})

	It("should ignore records once stopped", func() {
		tracker.stop()

		fire(trace.HookPosRecordStart, 6)
		fire(trace.HookPosRecordEnd, 6)

		Expect(bar.Finished).To(Equal(uint64(0)))
	})
})
