package consumer

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
)

// Sink is the durable artifact a GenerateTo invocation owns exclusively.
type Sink interface {
	// Create makes the empty artifact. It fails if the artifact exists.
	Create(ctx context.Context) error

	// Overwrite replaces the full contents of the artifact.
	Overwrite(ctx context.Context, content string) error
}

// FileSink stores the artifact at an afs URL (a local path, file:// or mem://).
type FileSink struct {
	fs  afs.Service
	url string
}

// NewFileSink returns a Sink writing to url through fs.
func NewFileSink(fs afs.Service, url string) *FileSink {
	return &FileSink{fs: fs, url: url}
}

// URL returns the artifact location.
func (s *FileSink) URL() string {
	return s.url
}

func (s *FileSink) Create(ctx context.Context) error {
	exists, err := s.fs.Exists(ctx, s.url)
	if err != nil {
		return fmt.Errorf("checking %s: %w", s.url, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrArtifactExists, s.url)
	}
	return s.Overwrite(ctx, "")
}

func (s *FileSink) Overwrite(ctx context.Context, content string) error {
	if err := s.fs.Upload(ctx, s.url, 0o644, strings.NewReader(content)); err != nil {
		return fmt.Errorf("writing %s: %w", s.url, err)
	}
	return nil
}
