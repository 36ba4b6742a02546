package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/domain/jobs"
)

// AutoMigrateAll creates or updates every table. Parents come first so the
// foreign keys on clause and amendment resolve.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&contracts.Document{},
		&contracts.Clause{},
		&contracts.Amendment{},

		&jobs.JobRun{},
	)
}
