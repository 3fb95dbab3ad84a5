package migration

import (
	"fmt"
	"os"

	"github.com/danielolaszy/bz2jira/internal/logging"
	"github.com/spf13/afero"
)

const stagePattern = "bz2jira-attachment-*"

// Stager writes attachment payloads to transient files so they can be
// streamed to the tracker. Files never outlive the record they belong to.
type Stager struct {
	fs  afero.Fs
	dir string
}

// NewStager stages files in dir on fs. An empty dir means the OS temp dir.
func NewStager(fs afero.Fs, dir string) *Stager {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Stager{fs: fs, dir: dir}
}

// Stage writes data to a new transient file and returns its path. The file
// name never derives from the attachment name.
func (s *Stager) Stage(data []byte) (string, error) {
	if err := s.fs.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	f, err := afero.TempFile(s.fs, s.dir, stagePattern)
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		s.Remove(f.Name())
		return "", fmt.Errorf("failed to write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		s.Remove(f.Name())
		return "", fmt.Errorf("failed to close staging file: %w", err)
	}
	return f.Name(), nil
}

// Open opens a staged file for reading.
func (s *Stager) Open(path string) (afero.File, error) {
	return s.fs.Open(path)
}

// Remove deletes a staged file. Failures are logged, not returned.
func (s *Stager) Remove(path string) {
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove staging file", "path", path, "error", err)
	}
}
