package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"

	"github.com/ppiankov/poseprep/internal/logger"
)

var (
	// ErrNotZip is returned when the archive is not a zip file
	ErrNotZip = errors.New("not a zip archive")
	// ErrUnsafePath is returned for entries that would land outside the unzip dir
	ErrUnsafePath = errors.New("entry escapes extraction dir")
)

// Extractor unpacks dataset archives
type Extractor struct {
	fs           afero.Fs
	showProgress bool
}

// NewExtractor creates an extractor working on fs
func NewExtractor(fs afero.Fs, showProgress bool) *Extractor {
	return &Extractor{fs: fs, showProgress: showProgress}
}

// Extract unpacks every entry of zipPath into unzipDir, creating it if needed
func (e *Extractor) Extract(ctx context.Context, zipPath, unzipDir string) error {
	log := logger.FromContext(ctx)

	info, err := e.fs.Stat(zipPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("zip file not found at %s: %w", zipPath, err)
		}
		return fmt.Errorf("stat archive: %w", err)
	}

	if err := e.fs.MkdirAll(unzipDir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	f, err := e.fs.Open(zipPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := checkZip(f); err != nil {
		return fmt.Errorf("%s: %w", zipPath, err)
	}

	log.Info(fmt.Sprintf("Extracting %s to %s", zipPath, unzipDir))

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	var bar *progressbar.ProgressBar
	if e.showProgress {
		bar = progressbar.NewOptions(len(zr.File),
			progressbar.OptionSetDescription("extracting"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
	}

	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.writeEntry(entry, unzipDir); err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	log.Info(fmt.Sprintf("Extraction complete: %s to %s", zipPath, unzipDir), "entries", len(zr.File))
	return nil
}

func (e *Extractor) writeEntry(entry *zip.File, unzipDir string) error {
	target, err := safeJoin(unzipDir, entry.Name)
	if err != nil {
		return err
	}

	if entry.FileInfo().IsDir() {
		return e.fs.MkdirAll(target, 0755)
	}
	if err := e.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", entry.Name, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := e.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return dst.Close()
}

// checkZip sniffs the content and rewinds r
func checkZip(r io.ReadSeeker) error {
	mime, err := mimetype.DetectReader(r)
	if err != nil {
		return fmt.Errorf("detect type: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind: %w", err)
	}

	for m := mime; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return nil
		}
	}
	return fmt.Errorf("%w (detected %s)", ErrNotZip, mime.String())
}

func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	return target, nil
}
