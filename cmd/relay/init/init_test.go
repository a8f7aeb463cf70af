package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/relay/cmd/relay/init"
	"github.com/papercomputeco/relay/pkg/config"
)

var _ = Describe("Init Command", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(os.Chdir, origDir)
	})

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(out)
		cmd.SetArgs(append([]string{}, args...))
		return cmd.Execute()
	}

	It("creates a local .relay directory", func() {
		Expect(run()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".relay"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
		Expect(out.String()).To(ContainSubstring("Initialized"))
	})

	It("is idempotent", func() {
		Expect(run()).To(Succeed())
		out.Reset()

		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Already initialized"))
	})

	It("writes a preset config", func() {
		Expect(run("--preset", "ollama")).To(Succeed())

		data, err := os.ReadFile(filepath.Join(tmpDir, ".relay", "config.toml"))
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.ParseConfigTOML(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Relay.Provider).To(Equal("ollama"))
		Expect(cfg.Relay.Upstream).To(Equal("http://localhost:11434"))
	})

	It("rejects an unknown preset before creating anything", func() {
		Expect(run("--preset", "bogus")).To(MatchError(ContainSubstring("unknown preset")))

		_, err := os.Stat(filepath.Join(tmpDir, ".relay"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
