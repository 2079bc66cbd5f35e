package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/poseprep/internal/cache"
	"github.com/ppiankov/poseprep/internal/pipeline"
	"github.com/ppiankov/poseprep/internal/worker"
)

var (
	concurrency int
	outputDir   string
	globPattern string
	pathsFile   string
	noCache     bool
	reportPath  string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [dir]",
	Short: "Convert many annotation documents in parallel",
	Long: `Batch converts every annotation document under a directory
(default: the ingestion unzip directory):
- Find documents with a doublestar glob (default **/*.xml)
- Convert them in parallel with configurable worker count
- Write one JSON file per document; a failing document does not stop the rest

Example:
  poseprep batch
  poseprep batch ./data --glob 'train/**/*.xml' --concurrency 8 --output-dir ./annotations
  poseprep batch --paths-file documents.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addConversionFlags(batchCmd)
	batchCmd.Flags().StringVar(&pathsFile, "paths-file", "", "convert the documents listed in this file (one per line) instead of globbing")
}

func addConversionFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: conversion.workers)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory for JSON files (default: conversion.output_dir)")
	cmd.Flags().StringVar(&globPattern, "glob", "", "doublestar pattern for documents (default: conversion.annotation_glob)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the annotation cache")
	cmd.Flags().StringVar(&reportPath, "report", "", "write the run report as JSON to this path")
}

func applyConversionFlags() {
	cfg := appConfig
	if concurrency > 0 {
		cfg.Conversion.Workers = concurrency
	}
	if outputDir != "" {
		cfg.Conversion.OutputDir = outputDir
	}
	if globPattern != "" {
		cfg.Conversion.AnnotationGlob = globPattern
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
}

func newConversionStage() *pipeline.ConversionStage {
	return pipeline.NewConversionStage(appConfig, appFs, cache.New(appConfig.Cache, appFs))
}

func runBatch(cmd *cobra.Command, args []string) error {
	applyConversionFlags()

	stage := newConversionStage()
	if len(args) == 1 {
		stage.WithSourceDir(args[0])
	}
	if pathsFile != "" {
		paths, err := worker.ReadPathsFromFile(pathsFile)
		if err != nil {
			return fmt.Errorf("read paths: %w", err)
		}
		stage.WithPaths(paths)
	}

	return runStages(cmd, stage)
}

// runStages runs stages as one pipeline and prints the summary
func runStages(cmd *cobra.Command, stages ...pipeline.Stage) error {
	renderer := pipeline.NewRenderer(appFs, cmd.ErrOrStderr())

	report, err := pipeline.New(stages...).Run(cmd.Context())
	renderer.RenderSummary(report)

	if reportPath != "" {
		if rErr := renderer.RenderReport(report, reportPath); rErr != nil {
			return fmt.Errorf("write report: %w", rErr)
		}
	}
	return err
}
