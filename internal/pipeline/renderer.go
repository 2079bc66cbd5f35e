package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/ppiankov/poseprep/internal/keypoint"
	"github.com/ppiankov/poseprep/internal/model"
	"github.com/ppiankov/poseprep/internal/util"
)

// Renderer writes converted annotations and run summaries
type Renderer struct {
	fs  afero.Fs
	out io.Writer
}

// NewRenderer creates a renderer writing files to fs and summaries to out
// (stderr when nil)
func NewRenderer(fs afero.Fs, out io.Writer) *Renderer {
	if out == nil {
		out = os.Stderr
	}
	return &Renderer{fs: fs, out: out}
}

// RenderJSON writes annotations as {"<image>": [[x, y, c], ...]} with a
// one-space indent. An empty path or "-" writes to the renderer's output.
func (r *Renderer) RenderJSON(annotations keypoint.Annotations, path string) error {
	if path == "" || path == "-" {
		data, err := json.MarshalIndent(annotations, "", " ")
		if err != nil {
			return fmt.Errorf("marshal annotations: %w", err)
		}
		_, err = fmt.Fprintln(r.out, string(data))
		return err
	}
	return util.SaveJSON(r.fs, path, annotations)
}

// LoadAnnotations reads a file written by RenderJSON
func (r *Renderer) LoadAnnotations(path string) (keypoint.Annotations, error) {
	var annotations keypoint.Annotations
	if err := util.LoadJSON(r.fs, path, &annotations); err != nil {
		return nil, err
	}
	return annotations, nil
}

// RenderReport writes the run report as JSON
func (r *Renderer) RenderReport(report *model.Report, path string) error {
	return util.SaveJSON(r.fs, path, report)
}

// RenderSummary prints a human-readable summary of the run
func (r *Renderer) RenderSummary(report *model.Report) {
	w := r.out
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Run Summary\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")

	for _, s := range report.Stages {
		if s.Error != "" {
			fmt.Fprintf(w, "✗ %s (%v): %s\n", s.Name, s.Duration.Round(time.Millisecond), s.Error)
			continue
		}
		fmt.Fprintf(w, "✓ %s (%v)\n", s.Name, s.Duration.Round(time.Millisecond))
	}

	if len(report.Documents) > 0 {
		cached, failed := 0, 0
		for _, d := range report.Documents {
			if d.Cached {
				cached++
			}
			if d.Error != "" {
				failed++
			}
		}
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "  Documents: %d (%d cached, %d failed)\n", len(report.Documents), cached, failed)
		fmt.Fprintf(w, "  Images:    %d\n", report.ImageCount())
	}
	fmt.Fprintf(w, "\n")
}
