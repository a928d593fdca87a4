package api

import (
	"time"

	"github.com/google/uuid"
)

type PredictResponse struct {
	Image     string
	OutputDir string
}

type RunRequest struct {
	Stages []string `json:"Stages,omitempty"`
}

type RunSubmitResponse struct {
	Message string
	RunId   uuid.UUID
}

type ListRunsParams struct {
	Limit  int    `schema:"limit"`
	Status string `schema:"status"`
}

type StageRun struct {
	Stage          string
	Position       int
	Status         string
	StartTime      time.Time
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`
	Error          string     `json:"Error,omitempty"`
}

type PipelineRun struct {
	Id     uuid.UUID
	Status string
	Origin string
	Stages []string

	CreationTime   time.Time
	StartTime      *time.Time `json:"StartTime,omitempty"`
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`
	Error          string     `json:"Error,omitempty"`

	StageRuns []StageRun `json:"StageRuns,omitempty"`
}
