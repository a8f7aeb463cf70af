package provider_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/llm/provider"
)

var _ = Describe("New", func() {
	DescribeTable("builds each supported provider",
		func(name, defaultModel string) {
			p, err := provider.New(name, provider.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name()).To(Equal(name))
			Expect(p.DefaultModel()).To(Equal(defaultModel))
		},
		Entry("anthropic", provider.Anthropic, "claude-3-7-sonnet-20250219"),
		Entry("openai", provider.OpenAI, "gpt-4o"),
		Entry("ollama", provider.Ollama, "llama3.2"),
	)

	It("lists every provider New accepts", func() {
		for _, name := range provider.SupportedProviders() {
			_, err := provider.New(name, provider.Options{})
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("rejects unknown providers", func() {
		_, err := provider.New("bedrock", provider.Options{})
		Expect(err).To(MatchError(ContainSubstring(`unknown provider type: "bedrock"`)))
	})
})
