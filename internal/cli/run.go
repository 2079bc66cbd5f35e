package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/poseprep/internal/ingest"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage: ingestion, then annotation conversion",
	Long: `Run executes the full preparation pipeline:
  01 Data Ingestion         download (if needed) and extract the archive
  02 Annotation Conversion  convert every document under the unzip directory

The pipeline stops at the first failing stage.

Example:
  poseprep run
  poseprep run --force --report artifacts/report.json`,
	Args: cobra.NoArgs,
	RunE: runAll,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addIngestFlags(runCmd)
	addConversionFlags(runCmd)
}

func runAll(cmd *cobra.Command, args []string) error {
	applyIngestFlags(cmd)
	applyConversionFlags()

	return runStages(cmd,
		ingest.NewIngestion(appConfig, appFs),
		newConversionStage(),
	)
}
