package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"salesdata/api"
	"salesdata/internal/app"
	"salesdata/internal/config"
	"salesdata/internal/sales"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		panic(fmt.Errorf("error building logger: %v", err))
	}
	defer logger.Sync()

	opts, err := cfg.GeneratorOptions()
	if err != nil {
		logger.Fatal("invalid generator options", zap.Error(err))
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer application.Close()

	// Serve the stored dataset, generating one on first start.
	_, err = application.LoadOrGenerate(ctx, opts)
	logStartup(logger, err)

	r := gin.Default()
	api.InitRoutes(r, application.Service, opts, logger)

	logger.Info("listening", zap.String("addr", cfg.Server.Addr))
	if err := r.Run(cfg.Server.Addr); err != nil {
		logger.Fatal("error trying to start server", zap.Error(err))
	}
}

// logStartup reports how LoadOrGenerate went. A publish failure still leaves
// a stored dataset to serve.
func logStartup(logger *zap.Logger, err error) {
	switch {
	case err == nil:
	case errors.Is(err, sales.ErrPublishFailed):
		logger.Warn("dataset stored but publishing failed", zap.Error(err))
	default:
		logger.Warn("starting without a dataset", zap.Error(err))
	}
}
