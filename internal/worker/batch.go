package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/ppiankov/poseprep/internal/cache"
	"github.com/ppiankov/poseprep/internal/keypoint"
)

// Converter turns one annotation document into reordered keypoints
type Converter func(path string) (keypoint.Annotations, error)

// ConvertJob converts a single document
type ConvertJob struct {
	Index   int
	Path    string
	Fs      afero.Fs
	Convert Converter
	Cache   cache.Cache
}

// Execute runs the conversion, consulting the cache first when one is set
func (j *ConvertJob) Execute(ctx context.Context) Result {
	res := &ConvertResult{Index: j.Index, Path: j.Path}
	if err := ctx.Err(); err != nil {
		res.Error = err
		return res
	}

	key := ""
	if j.Cache != nil && j.Fs != nil {
		if fp, err := keypoint.FingerprintFs(j.Fs, j.Path); err == nil {
			key = cache.CacheKey(fp)
			if data, ok := j.Cache.Get(key); ok {
				var cached keypoint.Annotations
				if err := json.Unmarshal(data, &cached); err == nil {
					res.Annotations = cached
					res.Cached = true
					return res
				}
			}
		}
	}

	annotations, err := j.Convert(j.Path)
	if err != nil {
		res.Error = err
		return res
	}
	res.Annotations = annotations

	if key != "" {
		if data, err := json.Marshal(annotations); err == nil {
			_ = j.Cache.Set(key, data, 0)
		}
	}
	return res
}

// ConvertResult is the outcome of converting one document
type ConvertResult struct {
	Index       int
	Path        string
	Annotations keypoint.Annotations
	Cached      bool
	Error       error
}

// GetError returns the conversion error, if any
func (r *ConvertResult) GetError() error {
	return r.Error
}

// BatchConverter converts many documents concurrently. A failing document
// does not affect the others.
type BatchConverter struct {
	fs          afero.Fs
	convert     Converter
	cache       cache.Cache
	concurrency int
}

// NewBatchConverter creates a batch converter reading documents from fs
// (the OS filesystem when nil). c may be nil to disable caching.
func NewBatchConverter(fs afero.Fs, c cache.Cache, concurrency int) *BatchConverter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	convert := func(path string) (keypoint.Annotations, error) {
		return keypoint.ConvertFileFs(fs, path)
	}
	return &BatchConverter{
		fs:          fs,
		convert:     convert,
		cache:       c,
		concurrency: concurrency,
	}
}

// WithConverter replaces the per-document conversion function
func (b *BatchConverter) WithConverter(fn Converter) *BatchConverter {
	b.convert = fn
	return b
}

// ConvertPaths converts every path and returns one result per path, in
// input order. Paths left unprocessed after ctx is cancelled carry ctx's error.
func (b *BatchConverter) ConvertPaths(ctx context.Context, paths []string) []*ConvertResult {
	if len(paths) == 0 {
		return []*ConvertResult{}
	}

	jobs := make([]Job, len(paths))
	for i, path := range paths {
		jobs[i] = &ConvertJob{
			Index:   i,
			Path:    path,
			Fs:      b.fs,
			Convert: b.convert,
			Cache:   b.cache,
		}
	}

	pool := NewPool(ctx, b.concurrency)
	results := pool.Run(jobs)

	out := make([]*ConvertResult, 0, len(paths))
	done := make(map[int]bool, len(results))
	for _, r := range results {
		cr := r.(*ConvertResult)
		done[cr.Index] = true
		out = append(out, cr)
	}
	for i, path := range paths {
		if done[i] {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		out = append(out, &ConvertResult{Index: i, Path: path, Error: err})
	}

	sort.Slice(out, func(a, c int) bool { return out[a].Index < out[c].Index })
	return out
}

// ReadPathsFromFile reads document paths from a file, one per line.
// Blank lines and # comments are skipped and duplicates dropped.
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return paths, nil
}
