package anthropic_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/llm/provider/anthropic"
)

const helloStream = "event: message_start\n" +
	"data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":9,\"output_tokens\":1}}}\n\n" +
	"event: content_block_start\n" +
	"data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n" +
	"event: ping\n" +
	"data: {\"type\":\"ping\"}\n\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hel\"}}\n\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n" +
	"event: content_block_stop\n" +
	"data: {\"type\":\"content_block_stop\",\"index\":0}\n\n" +
	"event: message_delta\n" +
	"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":2}}\n\n" +
	"event: message_stop\n" +
	"data: {\"type\":\"message_stop\"}\n\n"

// drain pulls every text increment and returns them with the terminal error.
func drain(s llm.Stream) ([]string, error) {
	var texts []string
	for {
		ev, err := s.Next()
		if err != nil || ev == nil {
			return texts, err
		}
		texts = append(texts, ev.Text)
	}
}

var _ = Describe("Anthropic Provider", func() {
	var (
		upstream    *httptest.Server
		handler     http.HandlerFunc
		lastHeaders http.Header
		lastBody    map[string]any
		p           *anthropic.Provider
		req         *llm.GenerationRequest
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, helloStream)
		}

		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/messages"))

			lastHeaders = r.Header.Clone()
			lastBody = map[string]any{}
			Expect(json.NewDecoder(r.Body).Decode(&lastBody)).To(Succeed())
			handler(w, r)
		}))
		DeferCleanup(upstream.Close)

		p = anthropic.New(upstream.URL, upstream.Client())

		temperature := 0.5
		req = &llm.GenerationRequest{APIKey: "sk-ant-test", Prompt: "hi", Temperature: &temperature}
	})

	It("names itself and its default model", func() {
		Expect(p.Name()).To(Equal("anthropic"))
		Expect(p.DefaultModel()).To(Equal("claude-3-7-sonnet-20250219"))
	})

	It("streams text increments in order and ends cleanly", func() {
		s, err := p.Stream(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		texts, err := drain(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(texts).To(Equal([]string{"Hel", "lo"}))
		Expect(s.Usage()).To(Equal(llm.Usage{InputTokens: 9, OutputTokens: 2}))

		ev, err := s.Next()
		Expect(ev).To(BeNil())
		Expect(err).NotTo(HaveOccurred())
	})

	It("sends the Messages API request with the caller's key", func() {
		s, err := p.Stream(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())

		Expect(lastHeaders.Get("X-Api-Key")).To(Equal("sk-ant-test"))
		Expect(lastHeaders.Get("Anthropic-Version")).To(Equal("2023-06-01"))
		Expect(lastBody["model"]).To(Equal(anthropic.DefaultModel))
		Expect(lastBody["max_tokens"]).To(BeNumerically("==", llm.DefaultMaxTokens))
		Expect(lastBody["temperature"]).To(BeNumerically("==", 0.5))
		Expect(lastBody["stream"]).To(BeTrue())
		Expect(lastBody["messages"]).To(Equal([]any{map[string]any{"role": "user", "content": "hi"}}))
	})

	It("returns an upstream error when the call is rejected", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
		}

		s, err := p.Stream(context.Background(), req)
		Expect(s).To(BeNil())

		var upstreamErr *llm.UpstreamError
		Expect(err).To(BeAssignableToTypeOf(upstreamErr))
		upstreamErr = err.(*llm.UpstreamError)
		Expect(upstreamErr.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(upstreamErr.Type).To(Equal("authentication_error"))
		Expect(err.Error()).To(Equal("invalid x-api-key"))
	})

	It("falls back to a status message for unparseable error bodies", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "<html>bad gateway</html>")
		}

		_, err := p.Stream(context.Background(), req)
		Expect(err).To(MatchError("anthropic: upstream returned status 502"))
	})

	It("surfaces a mid-stream error event after earlier increments", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w,
				"event: content_block_delta\n"+
					"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"partial\"}}\n\n"+
					"event: error\n"+
					"data: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
		}

		s, err := p.Stream(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		texts, err := drain(s)
		Expect(texts).To(Equal([]string{"partial"}))
		Expect(err).To(MatchError("Overloaded"))

		_, again := s.Next()
		Expect(again).To(MatchError("Overloaded"))
	})

	It("fails when the body ends before message_stop", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "event: content_block_delta\n"+
				"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"cut\"}}\n\n")
		}

		s, err := p.Stream(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		texts, err := drain(s)
		Expect(texts).To(Equal([]string{"cut"}))
		Expect(err).To(MatchError(anthropic.ErrIncomplete))
	})

	It("fails on a malformed event payload", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "event: content_block_delta\ndata: {nope\n\n")
		}

		s, err := p.Stream(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		_, err = drain(s)
		Expect(err).To(MatchError(ContainSubstring("decoding \"content_block_delta\" event")))
	})

	It("closes more than once", func() {
		s, err := p.Stream(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())
		Expect(s.Close()).To(Succeed())
	})
})
