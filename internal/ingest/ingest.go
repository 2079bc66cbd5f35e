// Package ingest fetches the dataset archive and unpacks it.
package ingest

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/ppiankov/poseprep/internal/logger"
	"github.com/ppiankov/poseprep/internal/model"
	"github.com/ppiankov/poseprep/internal/util"
)

// StageName is the name the ingestion stage logs under
const StageName = "Data Ingestion"

// Downloader fetches a URL into a local file
type Downloader interface {
	Download(ctx context.Context, rawURL, dest string) error
}

// Ingestion makes the dataset archive available locally and extracts it
type Ingestion struct {
	cfg        model.DataIngestionConfig
	fs         afero.Fs
	downloader Downloader
	extractor  *Extractor
}

// NewIngestion wires the ingestion stage from the full config
func NewIngestion(cfg *model.Config, fs afero.Fs) *Ingestion {
	return &Ingestion{
		cfg:        cfg.DataIngestion,
		fs:         fs,
		downloader: NewFetcher(cfg.HTTP, cfg.RateLimiting, fs),
		extractor:  NewExtractor(fs, cfg.HTTP.ShowProgress),
	}
}

// WithDownloader swaps the downloader
func (i *Ingestion) WithDownloader(d Downloader) *Ingestion {
	i.downloader = d
	return i
}

// Name implements the pipeline stage
func (i *Ingestion) Name() string {
	return StageName
}

// Run downloads the archive when it is missing (or when forced) and a
// source URL is configured, then extracts it
func (i *Ingestion) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	if err := util.CreateDirs(i.fs, []string{i.cfg.RootDir}, false); err != nil {
		return err
	}

	if i.cfg.SourceURL != "" {
		exists, err := afero.Exists(i.fs, i.cfg.LocalDataFile)
		if err != nil {
			return fmt.Errorf("stat archive: %w", err)
		}
		if !exists || i.cfg.Force {
			log.Info("downloading dataset", "url", i.cfg.SourceURL, "dest", i.cfg.LocalDataFile)
			if err := i.downloader.Download(ctx, i.cfg.SourceURL, i.cfg.LocalDataFile); err != nil {
				return fmt.Errorf("download: %w", err)
			}
			if size, err := util.GetSize(i.fs, i.cfg.LocalDataFile); err == nil {
				log.Info("dataset downloaded", "path", i.cfg.LocalDataFile, "size", size)
			}
		} else {
			log.Debug("archive already present, skipping download", "path", i.cfg.LocalDataFile)
		}
	}

	return i.extractor.Extract(ctx, i.cfg.LocalDataFile, i.cfg.UnzipDir)
}
