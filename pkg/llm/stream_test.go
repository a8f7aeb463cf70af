package llm_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/llm"
)

var _ = Describe("StreamEvent", func() {
	Describe("MarshalJSON", func() {
		DescribeTable("produces exactly one wire key",
			func(ev llm.StreamEvent, expected string) {
				b, err := json.Marshal(ev)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(b)).To(Equal(expected))
			},
			Entry("text", llm.TextEvent("Hel"), `{"text":"Hel"}`),
			Entry("empty text", llm.TextEvent(""), `{"text":""}`),
			Entry("done", llm.DoneEvent(), `{"done":true}`),
			Entry("error", llm.ErrorEvent("overloaded"), `{"error":"overloaded"}`),
		)

		It("refuses an unknown kind", func() {
			_, err := json.Marshal(llm.StreamEvent{Kind: llm.EventKind(42)})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("UnmarshalJSON", func() {
		DescribeTable("decodes each variant",
			func(payload string, expected llm.StreamEvent) {
				var ev llm.StreamEvent
				Expect(json.Unmarshal([]byte(payload), &ev)).To(Succeed())
				Expect(ev).To(Equal(expected))
			},
			Entry("text", `{"text":"lo"}`, llm.TextEvent("lo")),
			Entry("done", `{"done":true}`, llm.DoneEvent()),
			Entry("error", `{"error":"boom"}`, llm.ErrorEvent("boom")),
			Entry("error wins over done", `{"done":true,"error":"boom"}`, llm.ErrorEvent("boom")),
			Entry("empty error is ignored", `{"error":"","text":"a"}`, llm.TextEvent("a")),
		)

		It("reports payloads with no known key", func() {
			var ev llm.StreamEvent
			Expect(json.Unmarshal([]byte(`{"done":false}`), &ev)).To(MatchError(llm.ErrUnknownEvent))
		})

		It("reports malformed JSON", func() {
			var ev llm.StreamEvent
			Expect(json.Unmarshal([]byte(`not-json`), &ev)).NotTo(Succeed())
		})
	})

	It("marks done and error as terminal", func() {
		Expect(llm.TextEvent("x").Terminal()).To(BeFalse())
		Expect(llm.DoneEvent().Terminal()).To(BeTrue())
		Expect(llm.ErrorEvent("x").Terminal()).To(BeTrue())
	})
})
