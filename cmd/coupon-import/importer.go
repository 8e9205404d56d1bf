package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// Options controls an import run.
type Options struct {
	Workers   int
	Overwrite bool
}

// Stats counts import outcomes. Safe for concurrent use.
type Stats struct {
	Inserted atomic.Int64
	Updated  atomic.Int64
	Skipped  atomic.Int64
	Invalid  atomic.Int64
}

// Importer upserts coupons read from gzipped CSV files. A bloom filter of
// known codes lets most new codes skip the existence lookup.
type Importer struct {
	lg   *zap.Logger
	repo coupon.Repository
	opts Options

	mu    sync.Mutex
	known *bloom.BloomFilter
}

// NewImporter loads every stored code into the filter.
func NewImporter(ctx context.Context, lg *zap.Logger, repo coupon.Repository, opts Options) (*Importer, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	imp := &Importer{
		lg:    lg,
		repo:  repo,
		opts:  opts,
		known: bloom.NewWithEstimates(bloomCapacity, bloomFPR),
	}
	var n int
	if err := repo.Codes(ctx, func(code string) error {
		imp.known.AddString(code)
		n++
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "load known codes")
	}
	lg.Info("Loaded known coupon codes", zap.Int("count", n))
	return imp, nil
}

// Import reads files concurrently and writes their rows with Options.Workers
// writers. The first read or write error cancels the run.
func (imp *Importer) Import(ctx context.Context, files ...string) (*Stats, error) {
	stats := new(Stats)
	rows := make(chan *coupon.Coupon, 1024)

	g, ctx := errgroup.WithContext(ctx)
	var readers sync.WaitGroup
	for _, path := range files {
		readers.Add(1)
		g.Go(func() error {
			defer readers.Done()
			return imp.readFile(ctx, path, rows, stats)
		})
	}
	go func() {
		readers.Wait()
		close(rows)
	}()
	for range imp.opts.Workers {
		g.Go(func() error {
			for c := range rows {
				if err := imp.write(ctx, c, stats); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (imp *Importer) readFile(ctx context.Context, path string, out chan<- *coupon.Coupon, stats *Stats) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	r.Comment = '#'

	var line int64
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		line++
		if line%progressEvery == 0 {
			imp.lg.Info("Import progress", zap.String("file", path), zap.Int64("rows", line))
		}

		c, err := parseRecord(rec)
		if err != nil {
			if line == 1 {
				// Header row.
				continue
			}
			stats.Invalid.Add(1)
			imp.lg.Warn("Skipping invalid row", zap.String("file", path), zap.Int64("line", line), zap.Error(err))
			continue
		}
		select {
		case out <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	imp.lg.Info("File read", zap.String("file", path), zap.Int64("rows", line))
	return nil
}

// parseRecord converts a code,amount row. Amounts are decimal strings in
// major currency units.
func parseRecord(rec []string) (*coupon.Coupon, error) {
	if len(rec) < 2 {
		return nil, errors.Errorf("want 2 fields, got %d", len(rec))
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(rec[1]))
	if err != nil {
		return nil, errors.Wrap(err, "amount")
	}
	return coupon.Parse(rec[0], amount.Shift(2).Round(0).IntPart())
}

// write inserts c unless the code already exists. A filter hit is confirmed
// against the repository since the filter may report false positives.
func (imp *Importer) write(ctx context.Context, c *coupon.Coupon, stats *Stats) error {
	imp.mu.Lock()
	maybeKnown := imp.known.TestOrAddString(c.Code)
	imp.mu.Unlock()

	exists := false
	if maybeKnown {
		_, err := imp.repo.FindByCode(ctx, c.Code)
		switch {
		case err == nil:
			exists = true
		case !errors.Is(err, coupon.ErrNotFound):
			return errors.Wrapf(err, "lookup %s", c.Code)
		}
	}
	if exists && !imp.opts.Overwrite {
		stats.Skipped.Add(1)
		return nil
	}
	if err := imp.repo.Upsert(ctx, c); err != nil {
		return err
	}
	if exists {
		stats.Updated.Add(1)
	} else {
		stats.Inserted.Add(1)
	}
	return nil
}
