package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/poseprep/internal/keypoint"
	"github.com/ppiankov/poseprep/internal/logger"
	"github.com/ppiankov/poseprep/internal/pipeline"
)

var convertOut string

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert <document.xml>",
	Short: "Convert one annotation document to COCO keypoint order",
	Long: `Convert reads a CVAT-style annotation document and writes
{"<image name>": [[x, y, 1.0], ...17 keypoints]} as JSON.

The whole document fails if any image is malformed; nothing is written.

Example:
  poseprep convert annotations.xml
  poseprep convert annotations.xml --out annotations.json`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "-", "output file (- for stdout)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	log := logger.FromContext(cmd.Context())

	annotations, err := keypoint.ConvertFileFs(appFs, args[0])
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	renderer := pipeline.NewRenderer(appFs, cmd.OutOrStdout())
	if err := renderer.RenderJSON(annotations, convertOut); err != nil {
		return fmt.Errorf("render JSON: %w", err)
	}
	if convertOut != "-" && convertOut != "" {
		log.Info("wrote annotations", "path", convertOut, "images", len(annotations))
	}
	return nil
}
