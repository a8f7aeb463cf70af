package generatecmder_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"github.com/viant/afs"

	generatecmder "github.com/papercomputeco/relay/cmd/relay/generate"
	"github.com/papercomputeco/relay/pkg/credentials"
	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/logger"
	testutils "github.com/papercomputeco/relay/pkg/utils/test"
	"github.com/papercomputeco/relay/relay"
)

// startRelay serves prov on a loopback listener and returns the endpoint.
func startRelay(prov *testutils.MockProvider) string {
	r, err := relay.New(relay.Config{Provider: prov, Defaults: llm.NewDefaults()}, logger.Nop())
	Expect(err).NotTo(HaveOccurred())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	go func() {
		_ = r.RunWithListener(ln)
	}()
	DeferCleanup(func() { _ = r.Close() })

	return "http://" + ln.Addr().String() + relay.DefaultRoute
}

func newCmd(out, errOut *bytes.Buffer, args ...string) *cobra.Command {
	cmd := generatecmder.NewGenerateCmd()
	cmd.PersistentFlags().Bool("debug", false, "")
	cmd.PersistentFlags().String("config-dir", "", "")
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{}, args...))
	cmd.SetContext(context.Background())
	return cmd
}

var _ = Describe("Generate Command", func() {
	var (
		tmpDir      string
		out, errOut *bytes.Buffer
		prov        *testutils.MockProvider
		endpoint    string
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
		errOut = &bytes.Buffer{}
		prov = testutils.NewMockProvider("Hello", ", ", "world")
		endpoint = startRelay(prov)

		for _, env := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY"} {
			if prev, ok := os.LookupEnv(env); ok {
				DeferCleanup(os.Setenv, env, prev)
			}
			Expect(os.Unsetenv(env)).To(Succeed())
		}
	})

	It("defines its flags", func() {
		cmd := generatecmder.NewGenerateCmd()
		for _, name := range []string{"endpoint", "provider", "api-key", "model", "max-tokens", "temperature", "file", "output", "interval", "render"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})

	It("prints the streamed response", func() {
		cmd := newCmd(out, errOut, "--config-dir", tmpDir, "--endpoint", endpoint, "--api-key", "k", "Say hello")

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(Equal("Hello, world\n"))

		req := prov.LastRequest()
		Expect(req.Prompt).To(Equal("Say hello"))
		Expect(req.APIKey).To(Equal("k"))
	})

	It("forwards explicit generation options only", func() {
		cmd := newCmd(out, errOut,
			"--config-dir", tmpDir, "--endpoint", endpoint, "--api-key", "k",
			"--model", "m", "--temperature", "0", "hi",
		)

		Expect(cmd.Execute()).To(Succeed())

		req := prov.LastRequest()
		Expect(req.Model).To(Equal("m"))
		Expect(*req.Temperature).To(BeZero())
		Expect(*req.MaxTokens).To(Equal(llm.DefaultMaxTokens))
	})

	It("uses the stored credential for the provider", func() {
		mgr, err := credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.SetKey("anthropic", "sk-stored")).To(Succeed())

		cmd := newCmd(out, errOut, "--config-dir", tmpDir, "--endpoint", endpoint, "hi")

		Expect(cmd.Execute()).To(Succeed())
		Expect(prov.LastRequest().APIKey).To(Equal("sk-stored"))
	})

	It("fails without any api key", func() {
		cmd := newCmd(out, errOut, "--config-dir", tmpDir, "--endpoint", endpoint, "hi")

		err := cmd.Execute()
		Expect(errors.Is(err, credentials.ErrNoKey)).To(BeTrue())
		Expect(prov.Calls()).To(BeZero())
	})

	It("requires a prompt", func() {
		cmd := newCmd(out, errOut, "--config-dir", tmpDir, "--endpoint", endpoint, "--api-key", "k")

		Expect(cmd.Execute()).To(MatchError(ContainSubstring("prompt is required")))
	})

	It("appends the document after the instructions", func() {
		doc := filepath.Join(tmpDir, "notes.md")
		Expect(os.WriteFile(doc, []byte("# Notes\nline"), 0o644)).To(Succeed())

		cmd := newCmd(out, errOut, "--config-dir", tmpDir, "--endpoint", endpoint, "--api-key", "k", "-f", doc, "Summarize")

		Expect(cmd.Execute()).To(Succeed())
		Expect(prov.LastRequest().Prompt).To(Equal("Summarize\n\n# Notes\nline"))
	})

	It("writes the response to the output location", func() {
		location := "mem://localhost/generate/" + uuid.NewString() + ".md"

		cmd := newCmd(out, errOut, "--config-dir", tmpDir, "--endpoint", endpoint, "--api-key", "k", "-o", location, "hi")

		Expect(cmd.Execute()).To(Succeed())

		data, err := afs.New().DownloadWithURL(context.Background(), location)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("Hello, world"))
		Expect(errOut.String()).To(ContainSubstring("Response completed!"))
	})

	It("keeps partial output when the stream fails", func() {
		prov.StreamErr = errors.New("overloaded")
		location := filepath.Join(tmpDir, "partial.md")

		cmd := newCmd(out, errOut, "--config-dir", tmpDir, "--endpoint", endpoint, "--api-key", "k", "-o", location, "hi")

		Expect(cmd.Execute()).To(MatchError("overloaded"))

		data, err := os.ReadFile(location)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("Hello, world"))
		Expect(errOut.String()).To(ContainSubstring("Error: overloaded"))
	})

	It("refuses to overwrite an existing output", func() {
		location := filepath.Join(tmpDir, "exists.md")
		Expect(os.WriteFile(location, []byte("keep me"), 0o644)).To(Succeed())

		cmd := newCmd(out, errOut, "--config-dir", tmpDir, "--endpoint", endpoint, "--api-key", "k", "-o", location, "hi")

		Expect(cmd.Execute()).To(HaveOccurred())
		data, err := os.ReadFile(location)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("keep me"))
		Expect(prov.Calls()).To(BeZero())
	})

	It("rejects an invalid interval", func() {
		cmd := newCmd(out, errOut, "--config-dir", tmpDir, "--endpoint", endpoint, "--api-key", "k", "--interval", "soon", "hi")

		Expect(cmd.Execute()).To(MatchError(ContainSubstring("invalid interval")))
	})
})
