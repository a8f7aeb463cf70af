package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/logger"
)

func decodeRecord(buf *bytes.Buffer) map[string]any {
	var record map[string]any
	ExpectWithOffset(1, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record)).To(Succeed())
	return record
}

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("writes text records by default", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf)).Info("relay listening", "addr", ":8080")

			Expect(buf.String()).To(ContainSubstring("relay listening"))
			Expect(buf.String()).To(ContainSubstring("addr=:8080"))
		})

		It("drops debug records unless debug is enabled", func() {
			var quiet, verbose bytes.Buffer
			logger.New(logger.WithWriter(&quiet)).Debug("frame written")
			logger.New(logger.WithWriter(&verbose), logger.WithDebug(true)).Debug("frame written")

			Expect(quiet.String()).To(BeEmpty())
			Expect(verbose.String()).To(ContainSubstring("frame written"))
		})

		It("writes JSON records", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithJSON(true)).Info("stream complete", "chunks", 3)

			record := decodeRecord(&buf)
			Expect(record["msg"]).To(Equal("stream complete"))
			Expect(record["chunks"]).To(BeNumerically("==", 3))
		})

		It("writes pretty records through charmbracelet/log", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithDebug(true)).Debug("streaming")

			Expect(buf.String()).To(ContainSubstring("streaming"))
		})

		It("records the source location when asked", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithSource(true)).Warn("client went away")

			source, ok := decodeRecord(&buf)["source"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(source["file"]).To(HaveSuffix("logger_test.go"))
		})

		It("carries bound attributes and groups", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.With("request_id", "abc").WithGroup("upstream").Info("usage", "output_tokens", 12)

			record := decodeRecord(&buf)
			Expect(record["request_id"]).To(Equal("abc"))
			group, ok := record["upstream"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(group["output_tokens"]).To(BeNumerically("==", 12))
		})
	})

	Describe("Nop", func() {
		It("is disabled at every level", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() { l.With("k", "v").Error("ignored") }).NotTo(Panic())
		})
	})

	Describe("Multi", func() {
		It("dispatches each record to every logger", func() {
			var text, structured bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&text)),
				logger.New(logger.WithWriter(&structured), logger.WithJSON(true)),
			)

			multi.With("component", "relay").Info("broadcast")

			Expect(text.String()).To(ContainSubstring("broadcast"))
			Expect(decodeRecord(&structured)["component"]).To(Equal("relay"))
		})

		It("only forwards to enabled handlers", func() {
			var info, debug bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&info)),
				logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
			)

			multi.Debug("detail")

			Expect(info.String()).To(BeEmpty())
			Expect(debug.String()).To(ContainSubstring("detail"))
		})
	})
})
