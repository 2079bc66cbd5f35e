// Package pipeline runs the dataset preparation stages in order.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/poseprep/internal/logger"
	"github.com/ppiankov/poseprep/internal/model"
)

// Stage is one step of the preparation pipeline
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}

// documentReporter is implemented by stages that convert documents
type documentReporter interface {
	Documents() []model.DocumentReport
}

// Pipeline runs stages sequentially and stops at the first failure
type Pipeline struct {
	stages []Stage
	now    func() time.Time
}

// New creates a pipeline from stages, run in the given order
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, now: time.Now}
}

// Run executes every stage. The returned report covers the stages that
// ran, including the failing one.
func (p *Pipeline) Run(ctx context.Context) (*model.Report, error) {
	log := logger.FromContext(ctx)
	report := &model.Report{StartedAt: p.now().UTC()}
	defer func() { report.FinishedAt = p.now().UTC() }()

	for _, stage := range p.stages {
		name := stage.Name()
		log.Info(fmt.Sprintf(">>>>>>>>>> %s - Started <<<<<<<<<<", name))

		start := p.now()
		err := stage.Run(ctx)
		sr := model.StageReport{Name: name, Duration: p.now().Sub(start)}
		if dr, ok := stage.(documentReporter); ok {
			report.Documents = append(report.Documents, dr.Documents()...)
		}

		if err != nil {
			sr.Error = err.Error()
			report.Stages = append(report.Stages, sr)
			log.Error(fmt.Sprintf("Error in %s: %v", name, err))
			return report, fmt.Errorf("%s: %w", name, err)
		}

		report.Stages = append(report.Stages, sr)
		log.Info(fmt.Sprintf(">>>>>>>>>> %s - Completed <<<<<<<<<<", name))
	}

	return report, nil
}
