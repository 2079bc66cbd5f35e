package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/poseprep/internal/ingest"
	"github.com/ppiankov/poseprep/internal/pipeline"
)

var (
	sourceURL   string
	forceFetch  bool
	noProgress  bool
	ignoreRobot bool
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Download (if needed) and extract the dataset archive",
	Long: `Stage 01 - Data Ingestion:
- Download the dataset archive when it is missing (or --force is given)
  and a source URL is configured
- Extract the archive into the unzip directory

Example:
  poseprep ingest
  poseprep ingest --source-url https://example.com/poses.zip --force`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	addIngestFlags(ingestCmd)
}

func addIngestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "dataset archive URL (overrides data_ingestion.source_url)")
	cmd.Flags().BoolVar(&forceFetch, "force", false, "re-download even if the archive exists")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide progress bars")
	cmd.Flags().BoolVar(&ignoreRobot, "ignore-robots", false, "do not consult robots.txt")
}

func applyIngestFlags(cmd *cobra.Command) {
	cfg := appConfig
	if cmd.Flags().Changed("source-url") {
		cfg.DataIngestion.SourceURL = sourceURL
	}
	if forceFetch {
		cfg.DataIngestion.Force = true
	}
	if noProgress {
		cfg.HTTP.ShowProgress = false
	}
	if ignoreRobot {
		cfg.HTTP.RespectRobots = false
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	applyIngestFlags(cmd)

	p := pipeline.New(ingest.NewIngestion(appConfig, appFs))
	_, err := p.Run(cmd.Context())
	return err
}
