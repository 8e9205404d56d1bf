package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		pattern     string
		opts        Options
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&pattern, "files", "data/coupons*.csv.gz", "glob of gzipped CSV files with code,amount rows")
	flag.IntVar(&opts.Workers, "workers", 4, "concurrent database writers")
	flag.BoolVar(&opts.Overwrite, "overwrite", false, "update the amount of codes that already exist")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	files, err := filepath.Glob(pattern)
	if err != nil {
		lg.Fatal("Bad file pattern", zap.Error(err))
	}
	if len(files) == 0 {
		lg.Fatal("No files match", zap.String("pattern", pattern))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, files, opts); err != nil {
		lg.Fatal("Coupon import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, files []string, opts Options) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	imp, err := NewImporter(ctx, lg, postgres.NewStore(pool).Coupons(), opts)
	if err != nil {
		return err
	}
	stats, err := imp.Import(ctx, files...)
	if err != nil {
		return err
	}
	lg.Info("Coupon import completed",
		zap.Int64("inserted", stats.Inserted.Load()),
		zap.Int64("updated", stats.Updated.Load()),
		zap.Int64("skipped", stats.Skipped.Load()),
		zap.Int64("invalid", stats.Invalid.Load()),
	)
	return nil
}
