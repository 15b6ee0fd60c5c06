package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/scan-gateway/internal/logging"
)

const (
	uploadAttempts  = 3
	uploadBaseDelay = 200 * time.Millisecond
)

// ObjectStore is the subset of the S3 client the archive needs.
type ObjectStore interface {
	UploadFile(ctx context.Context, key, filePath, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, key string) error
}

// Archiver keeps copies of downloaded reports in object storage. Downloads
// are staged in a scratch directory, uploaded, and then served from the
// staged copy.
type Archiver struct {
	store      ObjectStore
	scratchDir string
}

func NewArchiver(store ObjectStore, scratchDir string) *Archiver {
	return &Archiver{store: store, scratchDir: scratchDir}
}

// Archive stages src and uploads it under key. The returned reader serves the
// staged copy and removes it on Close. archived is false when the upload
// failed; the staged copy is still returned so the caller can serve it.
func (a *Archiver) Archive(ctx context.Context, key string, src io.Reader, contentType string) (rc io.ReadCloser, archived bool, err error) {
	log := logging.FromContext(ctx)

	scratch := filepath.Join(a.scratchDir, uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, false, fmt.Errorf("create scratch dir: %w", err)
	}
	staged := filepath.Join(scratch, filepath.Base(key))

	if err := writeFile(staged, src); err != nil {
		_ = os.RemoveAll(scratch)
		return nil, false, fmt.Errorf("stage report: %w", err)
	}

	err = retry(ctx, "upload report", uploadAttempts, uploadBaseDelay, func() error {
		return a.store.UploadFile(ctx, key, staged, contentType)
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Report archive upload failed")
	} else {
		log.Info().Str("key", key).Msg("Report archived")
	}

	f, openErr := os.Open(staged)
	if openErr != nil {
		_ = os.RemoveAll(scratch)
		return nil, false, fmt.Errorf("open staged report: %w", openErr)
	}
	return &stagedFile{File: f, dir: scratch}, err == nil, nil
}

func (a *Archiver) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return a.store.Open(ctx, key)
}

func (a *Archiver) Remove(ctx context.Context, key string) error {
	return a.store.Remove(ctx, key)
}

func writeFile(path string, src io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// stagedFile removes its scratch directory when closed.
type stagedFile struct {
	*os.File
	dir string
}

func (s *stagedFile) Close() error {
	err := s.File.Close()
	_ = os.RemoveAll(s.dir)
	return err
}
