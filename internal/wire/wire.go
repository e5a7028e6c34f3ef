// Package wire provides dependency injection for the podium application.
// It creates singleton services with lazy initialization.
package wire

import (
	"log"
	"sync"

	"github.com/example/podium/internal/adapters/source"
	"github.com/example/podium/internal/adapters/sqlite"
	"github.com/example/podium/internal/app"
	"github.com/example/podium/internal/config"
	"github.com/example/podium/internal/db"
	"github.com/example/podium/internal/ports/primary"
)

var (
	parseService   primary.ParseService
	ratingService  primary.RatingService
	stageService   primary.StageService
	contestService primary.ContestService
	cfg            *config.Config
	once           sync.Once
)

// ParseService returns the singleton ParseService instance.
func ParseService() primary.ParseService {
	once.Do(initServices)
	return parseService
}

// RatingService returns the singleton RatingService instance.
func RatingService() primary.RatingService {
	once.Do(initServices)
	return ratingService
}

// StageService returns the singleton StageService instance.
func StageService() primary.StageService {
	once.Do(initServices)
	return stageService
}

// ContestService returns the singleton ContestService instance.
func ContestService() primary.ContestService {
	once.Do(initServices)
	return contestService
}

// Config returns the loaded application configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	dir, err := config.Dir()
	if err != nil {
		log.Fatalf("failed to resolve config dir: %v", err)
	}
	cfg, err = config.LoadConfig(dir)
	if err != nil {
		// No config file yet; run on defaults until `podium init`.
		cfg = config.Default()
	}
	if cfg.DBPath != "" {
		db.SetPath(cfg.DBPath)
	}

	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	sources := config.NewSourceRegistry(nil)
	if cfg.SourcesFile != "" {
		if sources, err = config.LoadSources(cfg.SourcesFile); err != nil {
			log.Fatalf("failed to load sources: %v", err)
		}
	}

	contestRepo := sqlite.NewContestRepository(database)
	scheduleRepo := sqlite.NewScheduleRepository(database)
	accountRepo := sqlite.NewAccountRepository(database)
	statisticsRepo := sqlite.NewStatisticsRepository(database)

	stageService = app.NewStageService(contestRepo, accountRepo, statisticsRepo)
	parseService = app.NewParseService(
		contestRepo, scheduleRepo, accountRepo, statisticsRepo,
		sources, stageService, source.Resolve, cfg)
	ratingService = app.NewRatingService(contestRepo, accountRepo, statisticsRepo)
	contestService = app.NewContestService(contestRepo, statisticsRepo)
}
