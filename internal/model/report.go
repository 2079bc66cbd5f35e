package model

import "time"

// Report summarizes one pipeline run
type Report struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Stages     []StageReport    `json:"stages"`
	Documents  []DocumentReport `json:"documents,omitempty"` // Filled by the conversion stage
}

// StageReport records how a single stage ended
type StageReport struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// DocumentReport records the conversion of one annotation document
type DocumentReport struct {
	Source string `json:"source"`           // Annotation XML path
	Output string `json:"output,omitempty"` // Written JSON path
	Images int    `json:"images"`           // Number of converted images
	Cached bool   `json:"cached"`           // Served from the annotation cache
	Error  string `json:"error,omitempty"`
}

// Failed reports whether any stage or document failed
func (r *Report) Failed() bool {
	for _, s := range r.Stages {
		if s.Error != "" {
			return true
		}
	}
	for _, d := range r.Documents {
		if d.Error != "" {
			return true
		}
	}
	return false
}

// ImageCount totals converted images across documents
func (r *Report) ImageCount() int {
	n := 0
	for _, d := range r.Documents {
		n += d.Images
	}
	return n
}
