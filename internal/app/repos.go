package app

import (
	"gorm.io/gorm"

	repos "github.com/yungbote/contractlens-backend/internal/data/repos/contracts"
	jobrepos "github.com/yungbote/contractlens-backend/internal/data/repos/jobs"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

type Repos struct {
	Document  repos.DocumentRepo
	Clause    repos.ClauseRepo
	Amendment repos.AmendmentRepo
	Analytics repos.AnalyticsRepo
	JobRun    jobrepos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Document:  repos.NewDocumentRepo(db, log),
		Clause:    repos.NewClauseRepo(db, log),
		Amendment: repos.NewAmendmentRepo(db, log),
		Analytics: repos.NewAnalyticsRepo(db, log),
		JobRun:    jobrepos.NewJobRunRepo(db, log),
	}
}
