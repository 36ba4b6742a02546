package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/contractlens-backend/internal/jobs/pipeline/contract_analysis"
	jobruntime "github.com/yungbote/contractlens-backend/internal/jobs/runtime"
	"github.com/yungbote/contractlens-backend/internal/jobs/worker"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis/extractor"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis/steps"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
	"github.com/yungbote/contractlens-backend/internal/services"
)

type Services struct {
	Contracts services.ContractService

	// Jobs + notifications
	JobNotifier      services.JobNotifier
	DocumentNotifier services.DocumentNotifier
	JobService       services.JobService

	Orchestrator *analysis.Orchestrator

	// Job infra
	JobRegistry *jobruntime.Registry
	JobWorker   *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	// Events always go through the bus; every API instance forwards bus
	// messages to its local hub.
	emitter := &services.BusEmitter{Bus: clients.Bus, Log: log}
	jobNotifier := services.NewJobNotifier(emitter)
	documentNotifier := services.NewDocumentNotifier(emitter)
	jobService := services.NewJobService(db, log, repos.JobRun, jobNotifier)

	contractService := services.NewContractService(
		db, log,
		repos.Document,
		repos.Clause,
		repos.Amendment,
		repos.Analytics,
		clients.Files,
	)

	textExtractor := extractor.New(log, clients.Files, clients.GcpDocument, cfg.MaxUploadBytes)
	orchestrator, err := analysis.New(analysis.Deps{
		DB:         db,
		Log:        log,
		Stages:     steps.NewStages(clients.Model, log),
		Extractor:  textExtractor,
		Files:      clients.Files,
		Documents:  repos.Document,
		Clauses:    repos.Clause,
		Amendments: repos.Amendment,
		Notify:     documentNotifier,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init analysis orchestrator: %w", err)
	}

	// Job registry
	jobRegistry := jobruntime.NewRegistry()
	for _, h := range []jobruntime.Handler{
		contract_analysis.NewIngest(orchestrator, log),
		contract_analysis.NewReanalyze(orchestrator, log),
		contract_analysis.NewRiskBatch(orchestrator, log),
		contract_analysis.NewAmendmentBatch(orchestrator, log),
	} {
		if err := jobRegistry.Register(h); err != nil {
			return Services{}, err
		}
	}

	var jobWorker *worker.Worker
	if cfg.RunWorker {
		jobWorker = worker.NewWorker(db, log, repos.JobRun, jobRegistry, jobNotifier, cfg.Worker)
	}

	return Services{
		Contracts:        contractService,
		JobNotifier:      jobNotifier,
		DocumentNotifier: documentNotifier,
		JobService:       jobService,
		Orchestrator:     orchestrator,
		JobRegistry:      jobRegistry,
		JobWorker:        jobWorker,
	}, nil
}
