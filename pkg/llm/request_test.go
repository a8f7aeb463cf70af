package llm_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/llm"
)

var _ = Describe("GenerationRequest", func() {
	Describe("ParseGenerationRequest", func() {
		DescribeTable("rejects invalid bodies with a validation message",
			func(body, message string) {
				req, err := llm.ParseGenerationRequest([]byte(body))
				Expect(req).To(BeNil())

				var verr *llm.ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())
				Expect(verr.Message).To(Equal(message))
			},
			Entry("empty body", "", "Missing request body"),
			Entry("whitespace body", "  \n", "Missing request body"),
			Entry("null body", "null", "Missing request body"),
			Entry("malformed JSON", `{"apiKey":`, "Invalid request body"),
			Entry("array body", `["k","hi"]`, "Invalid request body"),
			Entry("missing apiKey", `{"prompt":"hi"}`, "Missing API key"),
			Entry("empty apiKey", `{"apiKey":"","prompt":"hi"}`, "Missing API key"),
			Entry("missing prompt", `{"apiKey":"k"}`, "Missing prompt"),
			Entry("empty object", `{}`, "Missing API key"),
		)

		It("decodes optional parameters", func() {
			req, err := llm.ParseGenerationRequest([]byte(
				`{"apiKey":"k","prompt":"hi","model":"claude-3-5-haiku-latest","max_tokens":256,"temperature":0}`,
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(req.APIKey).To(Equal("k"))
			Expect(req.Prompt).To(Equal("hi"))
			Expect(req.Model).To(Equal("claude-3-5-haiku-latest"))
			Expect(*req.MaxTokens).To(Equal(256))
			Expect(*req.Temperature).To(BeZero())
		})
	})

	Describe("ApplyDefaults", func() {
		It("fills omitted fields", func() {
			req := &llm.GenerationRequest{APIKey: "k", Prompt: "hi"}
			req.ApplyDefaults(llm.Defaults{Model: "claude-3-7-sonnet-20250219", MaxTokens: 1000, Temperature: 0.7})

			Expect(req.Model).To(Equal("claude-3-7-sonnet-20250219"))
			Expect(*req.MaxTokens).To(Equal(1000))
			Expect(*req.Temperature).To(Equal(0.7))
		})

		It("keeps explicit values including a zero temperature", func() {
			maxTokens, temperature := 10, 0.0
			req := &llm.GenerationRequest{Model: "m", MaxTokens: &maxTokens, Temperature: &temperature}
			req.ApplyDefaults(llm.NewDefaults())

			Expect(req.Model).To(Equal("m"))
			Expect(*req.MaxTokens).To(Equal(10))
			Expect(*req.Temperature).To(BeZero())
		})

		It("falls back to the built-in token limit", func() {
			req := &llm.GenerationRequest{}
			req.ApplyDefaults(llm.Defaults{})

			Expect(req.Model).To(BeEmpty())
			Expect(*req.MaxTokens).To(Equal(llm.DefaultMaxTokens))
		})
	})
})
