package migration_1

import (
	"fmt"

	"gorm.io/gorm"
)

type PipelineRun struct {
	Origin string `gorm:"size:20;not null;default:cli"`
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&PipelineRun{}, "Origin"); err != nil {
		return fmt.Errorf("error adding Origin column: %w", err)
	}

	if err := db.Model(&PipelineRun{}).
		Where("origin IS NULL").
		Update("origin", "cli").Error; err != nil {
		return fmt.Errorf("error setting default value for Origin: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&PipelineRun{}, "Origin"); err != nil {
		return fmt.Errorf("error dropping Origin column: %w", err)
	}

	return nil
}
