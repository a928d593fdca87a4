package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobQueued    string = "QUEUED"
	JobRunning   string = "RUNNING"
	JobCompleted string = "COMPLETED"
	JobFailed    string = "FAILED"
)

const (
	OriginCLI string = "cli"
	OriginAPI string = "api"
)

type PipelineRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Status string `gorm:"size:20;not null"`
	Origin string `gorm:"size:20;not null;default:cli"`

	Stages datatypes.JSON // JSON-encoded []string, empty means every stage

	CreationTime   time.Time
	StartTime      sql.NullTime
	CompletionTime sql.NullTime
	Error          sql.NullString

	StageRuns []StageRun `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

type StageRun struct {
	RunId    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Stage    string    `gorm:"size:40;primaryKey"`
	Position int

	Status         string `gorm:"size:20;not null"`
	StartTime      time.Time
	CompletionTime sql.NullTime
	Error          sql.NullString
}
