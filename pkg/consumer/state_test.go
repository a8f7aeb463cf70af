package consumer_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/consumer"
)

var _ = Describe("State", func() {
	DescribeTable("names and terminality",
		func(s consumer.State, name string, terminal bool) {
			Expect(s.String()).To(Equal(name))
			Expect(s.Terminal()).To(Equal(terminal))
		},
		Entry("idle", consumer.StateIdle, "idle", false),
		Entry("requesting", consumer.StateRequesting, "requesting", false),
		Entry("streaming", consumer.StateStreaming, "streaming", false),
		Entry("completed", consumer.StateCompleted, "completed", true),
		Entry("failed", consumer.StateFailed, "failed", true),
		Entry("out of range", consumer.State(42), "unknown", false),
	)
})

var _ = Describe("EstimateTokens", func() {
	It("counts whitespace separated words", func() {
		Expect(consumer.EstimateTokens("")).To(BeZero())
		Expect(consumer.EstimateTokens("hello")).To(Equal(1))
		Expect(consumer.EstimateTokens("  the quick\nbrown\tfox ")).To(Equal(4))
	})
})

var _ = Describe("ObserverFuncs", func() {
	It("forwards to the functions that are set", func() {
		var states []consumer.State
		obs := consumer.ObserverFuncs{OnState: func(s consumer.State) { states = append(states, s) }}

		obs.StateChanged(consumer.StateStreaming)
		obs.Progress(consumer.Progress{Chunks: 1})

		Expect(states).To(Equal([]consumer.State{consumer.StateStreaming}))
	})
})
