// Command sink is a development receiver for statline's Bosun-format
// output. It accepts datapoints on /api/put and metadata on
// /api/metadata/put, stores them in memory or Postgres, and serves them
// back on /api/series and /api/metadata.
package main

import (
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/emberfield/statline/cmd/sink/store"
	"github.com/emberfield/statline/pkg/util"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	util.PrintBuildInfo(buildVersion, buildDate, buildCommit)

	cfg, err := loadConfig(os.Args[1:], nil)
	if err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	var st store.Store
	if cfg.DSN != "" {
		pg, err := store.OpenPostgres(cfg.DSN)
		if err != nil {
			logger.Fatal("open postgres", zap.Error(err))
		}
		st = pg
	} else {
		st = store.NewMemory()
	}
	defer st.Close()

	r := newRouter(NewHandler(st), logger)

	logger.Info("sink listening", zap.String("addr", cfg.Address), zap.Bool("postgres", cfg.DSN != ""))
	if err := http.ListenAndServe(cfg.Address, r); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}
