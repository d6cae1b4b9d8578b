package chunkio

import (
	"os"

	"github.com/adapipe/adapipe/internal/errs"
)

// stagingSuffix names the temporary file a Writer commits through: a
// staged-write-then-rename pattern that keeps a failed or cancelled run
// from ever leaving a partial file at targetPath.
const stagingSuffix = ".part"

// Writer is a transactional sink: bytes written before Commit are only
// visible in a staging file; Commit atomically renames it into place, and
// Rollback discards it. A Writer is used for exactly one run and is not
// safe for concurrent use — the executor's single writer goroutine owns it.
type Writer struct {
	targetPath  string
	stagingPath string
	f           *os.File
	began       bool
	committed   bool
}

// NewWriter prepares a Writer for targetPath. No file is created until
// Begin is called.
func NewWriter(targetPath string) *Writer {
	return &Writer{targetPath: targetPath, stagingPath: targetPath + stagingSuffix}
}

// Begin creates the staging file, truncating any leftover staging file from
// a prior failed run.
func (w *Writer) Begin() error {
	if w.began {
		return errs.New(errs.InternalError, "chunkio.Writer.Begin", nil)
	}
	f, err := os.OpenFile(w.stagingPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(errs.IoError, "chunkio.Writer.Begin", "create staging file", err)
	}
	w.f = f
	w.began = true
	return nil
}

// WriteChunk appends payload to the staging file in the order called. The
// executor's writer goroutine guarantees this order equals sequence order.
func (w *Writer) WriteChunk(payload []byte) error {
	if !w.began {
		return errs.New(errs.InternalError, "chunkio.Writer.WriteChunk", nil)
	}
	if _, err := w.f.Write(payload); err != nil {
		return errs.Wrap(errs.IoError, "chunkio.Writer.WriteChunk", "write chunk to staging file", err)
	}
	return nil
}

// Commit fsyncs the staging file and atomically renames it onto targetPath.
func (w *Writer) Commit() error {
	if !w.began || w.committed {
		return errs.New(errs.InternalError, "chunkio.Writer.Commit", nil)
	}
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		return errs.Wrap(errs.IoError, "chunkio.Writer.Commit", "fsync staging file", err)
	}
	if err := w.f.Close(); err != nil {
		return errs.Wrap(errs.IoError, "chunkio.Writer.Commit", "close staging file", err)
	}
	if err := os.Rename(w.stagingPath, w.targetPath); err != nil {
		return errs.Wrap(errs.IoError, "chunkio.Writer.Commit", "rename staging file into place", err)
	}
	w.committed = true
	return nil
}

// Rollback closes and removes the staging file. Idempotent: calling it more
// than once, or after it was never begun, is a no-op.
func (w *Writer) Rollback() error {
	if !w.began || w.committed {
		return nil
	}
	_ = w.f.Close()
	if err := os.Remove(w.stagingPath); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.IoError, "chunkio.Writer.Rollback", "remove staging file", err)
	}
	w.began = false
	return nil
}

// StagingPath reports the path a commit will rename from, for diagnostics.
func (w *Writer) StagingPath() string { return w.stagingPath }

// TargetPath reports the final path a commit will rename to.
func (w *Writer) TargetPath() string { return w.targetPath }
