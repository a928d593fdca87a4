package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PipelineRun struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Status string    `gorm:"size:20;not null"`
	Stages datatypes.JSON

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

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&PipelineRun{}, &StageRun{}); err != nil {
		return fmt.Errorf("error creating run history tables: %w", err)
	}
	return nil
}
