package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/finance"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/services/blob"
	"github.com/trezcool/acolher/services/email"
	"github.com/trezcool/acolher/services/logger"
	"github.com/trezcool/acolher/storage/database"
	"github.com/trezcool/acolher/storage/database/sqlboiler"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf.Log.Level, "console", "admin")
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	blobs, err := blobsvc.NewBlobStore(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up blob store: %v", err), err)
	}

	core.ParseEmailTemplates(conf, logger)
	mailSvc := emailsvc.NewEmailService(conf, logger)

	// start CLI
	cli := commandLine{
		db:       db,
		profRepo: boiledrepos.NewProfileRepository(db),
		instSvc:  institution.NewService(database.NewTransactor(db), boiledrepos.NewInstitutionRepository(db), blobs, logger),
		finSvc:   finance.NewService(boiledrepos.NewFinanceRepository(db)),
		mailSvc:  mailSvc,
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
