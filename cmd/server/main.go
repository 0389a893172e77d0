package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/minisql/minisql/internal/config"
	"github.com/minisql/minisql/internal/facade"
	"github.com/minisql/minisql/internal/httpapi"
	"github.com/minisql/minisql/internal/logging"
	"github.com/minisql/minisql/internal/storage"
)

var flagConfig = flag.String("config", "", "path to a YAML config file (optional, env vars always apply on top)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Init(cfg.LogLevel)
	logger := logging.WithComponent("main")

	cat, err := storage.Open(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open catalog", "data_dir", cfg.DataDir, "error", err)
		return
	}

	fac := facade.New(cat, cfg.MaxResultRows, cfg.MaxHistory)
	fac.SetMaxQueryLen(cfg.MaxQueryLen)

	srv := httpapi.New(fac,
		httpapi.WithCORSOrigins(cfg.CORSOrigins),
		httpapi.WithMaxQueryLen(cfg.MaxQueryLen),
		httpapi.WithDefaultHistoryLimit(cfg.MaxHistory),
	)

	logger.Info("minisql listening", "addr", cfg.HTTPAddr, "data_dir", cfg.DataDir)
	if err := http.ListenAndServe(cfg.HTTPAddr, srv.Routes()); err != nil {
		logger.Error("http serve error", "error", err)
	}
}
