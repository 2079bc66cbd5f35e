package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/ppiankov/poseprep/internal/cache"
	"github.com/ppiankov/poseprep/internal/logger"
	"github.com/ppiankov/poseprep/internal/model"
	"github.com/ppiankov/poseprep/internal/util"
	"github.com/ppiankov/poseprep/internal/worker"
)

// ConversionStageName is the name the conversion stage logs under
const ConversionStageName = "Annotation Conversion"

var (
	// ErrNoDocuments is returned when the glob matches nothing
	ErrNoDocuments = errors.New("no annotation documents found")
	// ErrOutputClash is recorded for a document whose JSON file would
	// replace one already written in the same run
	ErrOutputClash = errors.New("output already written")
)

// ConversionStage converts every annotation document under a directory and
// writes one JSON file per document
type ConversionStage struct {
	fs        afero.Fs
	sourceDir string
	glob      string
	outputDir string
	paths     []string
	batch     *worker.BatchConverter
	renderer  *Renderer
	docs      []model.DocumentReport
}

// NewConversionStage reads documents from the ingestion unzip dir
func NewConversionStage(cfg *model.Config, fs afero.Fs, c cache.Cache) *ConversionStage {
	return &ConversionStage{
		fs:        fs,
		sourceDir: cfg.DataIngestion.UnzipDir,
		glob:      cfg.Conversion.AnnotationGlob,
		outputDir: cfg.Conversion.OutputDir,
		batch:     worker.NewBatchConverter(fs, c, cfg.Conversion.Workers),
		renderer:  NewRenderer(fs, nil),
	}
}

// WithSourceDir overrides the directory searched for documents
func (s *ConversionStage) WithSourceDir(dir string) *ConversionStage {
	s.sourceDir = dir
	return s
}

// WithPaths converts exactly paths instead of globbing the source dir
func (s *ConversionStage) WithPaths(paths []string) *ConversionStage {
	s.paths = paths
	return s
}

// WithOutputDir overrides where JSON files are written
func (s *ConversionStage) WithOutputDir(dir string) *ConversionStage {
	s.outputDir = dir
	return s
}

// WithBatchConverter overrides the batch converter
func (s *ConversionStage) WithBatchConverter(b *worker.BatchConverter) *ConversionStage {
	s.batch = b
	return s
}

// Name implements Stage
func (s *ConversionStage) Name() string {
	return ConversionStageName
}

// Documents returns the per-document outcome of the last run
func (s *ConversionStage) Documents() []model.DocumentReport {
	return s.docs
}

// Run converts every matching document. A failing document is recorded and
// does not stop the others; the stage still fails if any document did.
func (s *ConversionStage) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	s.docs = nil

	paths := s.paths
	if paths == nil {
		found, err := FindDocuments(s.fs, s.sourceDir, s.glob)
		if err != nil {
			return err
		}
		paths = found
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: %q under %s", ErrNoDocuments, s.glob, s.sourceDir)
	}
	log.Info("converting annotation documents", "count", len(paths), "dir", s.sourceDir)

	if err := util.CreateDirs(s.fs, []string{s.outputDir}, false); err != nil {
		return err
	}

	root := s.outputRoot(paths)
	written := make(map[string]string, len(paths))
	failed := 0
	for _, res := range s.batch.ConvertPaths(ctx, paths) {
		doc := model.DocumentReport{Source: res.Path, Cached: res.Cached}
		if res.Error != nil {
			failed++
			doc.Error = res.Error.Error()
			log.Error("conversion failed", "path", res.Path, "error", res.Error)
			s.docs = append(s.docs, doc)
			continue
		}

		out := s.outputPath(root, res.Path)
		if prev, ok := written[out]; ok {
			failed++
			err := fmt.Errorf("%w: %s is taken by %s", ErrOutputClash, out, prev)
			doc.Error = err.Error()
			log.Error("conversion failed", "path", res.Path, "error", err)
			s.docs = append(s.docs, doc)
			continue
		}
		written[out] = res.Path

		if err := s.fs.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
		if err := s.renderer.RenderJSON(res.Annotations, out); err != nil {
			failed++
			doc.Error = err.Error()
			s.docs = append(s.docs, doc)
			continue
		}

		doc.Output = out
		doc.Images = len(res.Annotations)
		s.docs = append(s.docs, doc)
		log.Debug("document converted", "path", res.Path, "images", doc.Images, "cached", res.Cached)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(paths))
	}
	return nil
}

// outputRoot is the directory output names are taken relative to: the
// source dir when it holds every document, otherwise the deepest directory
// shared by all of them
func (s *ConversionStage) outputRoot(paths []string) string {
	inside := true
	for _, p := range paths {
		if _, ok := relativeTo(s.sourceDir, p); !ok {
			inside = false
			break
		}
	}
	if inside {
		return s.sourceDir
	}
	return commonDir(paths)
}

// outputPath mirrors the document's location below root, so documents at
// the top level map to <output>/<base>.json
func (s *ConversionStage) outputPath(root, docPath string) string {
	rel, ok := relativeTo(root, docPath)
	if !ok {
		rel = filepath.Base(docPath)
	}
	return filepath.Join(s.outputDir, strings.TrimSuffix(rel, filepath.Ext(rel))+".json")
}

// relativeTo returns path relative to root, or false when path lies outside it
func relativeTo(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		absRoot, rerr := filepath.Abs(root)
		absPath, perr := filepath.Abs(path)
		if rerr != nil || perr != nil {
			return "", false
		}
		if rel, err = filepath.Rel(absRoot, absPath); err != nil {
			return "", false
		}
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func commonDir(paths []string) string {
	sep := string(filepath.Separator)
	var common []string
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		parts := strings.Split(filepath.Dir(abs), sep)
		if i == 0 {
			common = parts
			continue
		}
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
	}
	if dir := strings.Join(common, sep); dir != "" {
		return dir
	}
	return sep
}

// FindDocuments returns the sorted files under dir on fs whose path
// relative to dir matches the doublestar pattern. A missing dir yields no
// documents.
func FindDocuments(fs afero.Fs, dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "**/*.xml"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("glob %q: %w", pattern, doublestar.ErrBadPattern)
	}

	var matches []string
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if doublestar.MatchUnvalidated(pattern, filepath.ToSlash(rel)) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("glob %q under %s: %w", pattern, dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}
