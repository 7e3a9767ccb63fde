package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/acolher/apps/api/echo"
	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/casefile"
	"github.com/trezcool/acolher/core/child"
	"github.com/trezcool/acolher/core/community"
	"github.com/trezcool/acolher/core/finance"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/core/profile"
	"github.com/trezcool/acolher/core/schedule"
	"github.com/trezcool/acolher/services/blob"
	"github.com/trezcool/acolher/services/cache"
	"github.com/trezcool/acolher/services/email"
	"github.com/trezcool/acolher/services/logger"
	"github.com/trezcool/acolher/storage/database"
	"github.com/trezcool/acolher/storage/database/sqlboiler"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.NewZapLogger(conf.Log.Level, conf.Log.Format, "api")
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()
	tx := database.NewTransactor(db)

	// set up stores
	ctx := context.Background()
	blobs, err := blobsvc.NewBlobStore(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up blob store: %v", err), err)
	}

	var cache core.Cache
	redisCache, err := cachesvc.Open(ctx, conf)
	if err != nil {
		// the overdue listing works uncached
		logger.Warn(fmt.Sprintf("redis unavailable, running without cache: %v", err), err)
	} else if redisCache != nil {
		cache = redisCache
		defer redisCache.Close()
	}

	// set up services
	mailSvc := emailsvc.NewEmailService(conf, logger)

	instRepo := boiledrepos.NewInstitutionRepository(db)
	childRepo := boiledrepos.NewChildRepository(db)

	instSvc := institution.NewService(tx, instRepo, blobs, logger)
	profSvc := profile.NewService(tx, boiledrepos.NewProfileRepository(db), mailSvc, conf, logger)
	childSvc := child.NewService(tx, childRepo, blobs, logger)
	cfSvc := casefile.NewService(tx, boiledrepos.NewCaseFileRepository(db), childRepo, cache, conf, logger)
	commSvc := community.NewService(tx, boiledrepos.NewCommunityRepository(db))
	schedSvc := schedule.NewService(boiledrepos.NewTaskRepository(db), childRepo)
	finSvc := finance.NewService(boiledrepos.NewFinanceRepository(db))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	profile.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	metrics := echoapi.NewMetrics("acolher")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus exposition of the API metrics.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", metrics.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
			Metrics:    metrics,

			InstitutionSvc: instSvc,
			ProfileSvc:     profSvc,
			ChildSvc:       childSvc,
			CaseFileSvc:    cfSvc,
			CommunitySvc:   commSvc,
			ScheduleSvc:    schedSvc,
			FinanceSvc:     finSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}

		// invites queued by the last requests
		mailSvc.Wait()
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
