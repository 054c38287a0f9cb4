package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/dummyjson"
	"storefront/internal/importer"
	"storefront/internal/logging"
	productrepo "storefront/internal/repository/product"
	catalogsvc "storefront/internal/service/catalog"
)

func main() {
	app := &cli.App{
		Name:  "importer",
		Usage: "load catalog products into the storefront database",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "parallelism", Value: 4, Usage: "concurrent product upserts"},
		},
		Commands: []*cli.Command{
			{
				Name:  "dummyjson",
				Usage: "fetch products from the dummyjson API",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 40, Usage: "number of products to fetch"},
				},
				Action: func(c *cli.Context) error {
					return run(c, func(cfg config.Config, logger *zap.Logger) (importer.ProductSource, func(), error) {
						client := dummyjson.New(cfg.DummyJSONURL, &http.Client{Timeout: 30 * time.Second}, logger)
						src := catalogsvc.NewDummyJSONSource(client, logger).WithProductLimit(c.Int("limit"))
						return src, func() {}, nil
					})
				},
			},
			{
				Name:  "csv",
				Usage: "read products from a CSV export",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Required: true, Usage: "path to the CSV file"},
				},
				Action: func(c *cli.Context) error {
					return run(c, func(cfg config.Config, _ *zap.Logger) (importer.ProductSource, func(), error) {
						f, err := os.Open(c.String("file"))
						if err != nil {
							return nil, nil, fmt.Errorf("open file: %w", err)
						}
						return importer.NewCSVSource(f, cfg.DefaultCurrency), func() { _ = f.Close() }, nil
					})
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type sourceFunc func(cfg config.Config, logger *zap.Logger) (importer.ProductSource, func(), error)

func run(c *cli.Context, open sourceFunc) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New("importer", cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	src, closeSrc, err := open(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	pool, err := db.Connect(c.Context, cfg.DBConnString, logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer pool.Close()

	start := time.Now()
	imp := importer.New(src, productrepo.NewPostgres(pool, logger), c.Int("parallelism"), logger)
	count, err := imp.Run(c.Context)
	if err != nil {
		return fmt.Errorf("import failed after %d products: %w", count, err)
	}

	fmt.Printf("Imported %d products in %s\n", count, time.Since(start).Truncate(time.Millisecond))
	return nil
}
