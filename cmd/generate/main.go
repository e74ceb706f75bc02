// Command generate writes a synthetic sales dataset to disk.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"salesdata/internal/app"
	"salesdata/internal/config"
	"salesdata/internal/sales"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "generate:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	seed := fs.Uint64("seed", 0, "random seed (0 keeps the configured seed)")
	customers := fs.Int("customers", 0, "number of customers")
	products := fs.Int("products", 0, "number of products")
	orders := fs.Int("orders", 0, "number of orders")
	out := fs.String("out", "", "output directory")
	asOf := fs.String("as-of", "", "anchor date, YYYY-MM-DD (default today)")
	publish := fs.Bool("publish", false, "run the configured publishers and notifier")
	randomSeed := fs.Bool("random-seed", false, "ignore the configured seed and draw a fresh one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	overrideConfig(&cfg, *seed, *customers, *products, *orders, *out, *asOf, *randomSeed)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts, err := cfg.GeneratorOptions()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	application, err := app.New(ctx, cfg, logger, *publish)
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		return err
	}
	defer application.Close()

	ds, err := application.Service.Generate(ctx, opts)
	if err != nil && !errors.Is(err, sales.ErrPublishFailed) {
		logger.Error("failed to generate dataset", zap.Error(err))
		return err
	}

	fmt.Printf("Dataset written to %s (seed %d, run %s)\n", application.Storage.Dir(), ds.Manifest.Seed, ds.Manifest.RunID)
	fmt.Print(ds.Manifest.Summary())
	return err
}

// overrideConfig applies the flags that were set on top of cfg.
func overrideConfig(cfg *config.Config, seed uint64, customers, products, orders int, out, asOf string, randomSeed bool) {
	if seed != 0 {
		cfg.Generator.Seed = seed
	}
	if randomSeed {
		cfg.Generator.Seed = 0
	}
	if customers != 0 {
		cfg.Generator.Customers = customers
	}
	if products != 0 {
		cfg.Generator.Products = products
	}
	if orders != 0 {
		cfg.Generator.Orders = orders
	}
	if out != "" {
		cfg.Generator.OutputDir = out
	}
	if asOf != "" {
		cfg.Generator.AsOf = asOf
	}
}
