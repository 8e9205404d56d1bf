package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/storefront/internal/domain/coupon"
)

type memCoupons struct {
	mu      sync.Mutex
	byCode  map[string]int64
	lookups int
}

func newMemCoupons(seed map[string]int64) *memCoupons {
	m := &memCoupons{byCode: map[string]int64{}}
	for k, v := range seed {
		m.byCode[k] = v
	}
	return m
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	amount, ok := m.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &coupon.Coupon{Code: code, Amount: amount}, nil
}

func (m *memCoupons) Upsert(_ context.Context, c *coupon.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byCode[c.Code] = c.Amount
	return nil
}

func (m *memCoupons) Codes(_ context.Context, fn func(string) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code := range m.byCode {
		if err := fn(code); err != nil {
			return err
		}
	}
	return nil
}

func writeGz(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestImporter_Import(t *testing.T) {
	repo := newMemCoupons(map[string]int64{"EXISTING": 100})
	a := writeGz(t, "a.csv.gz", "code,amount\nSPRING10,10.00\nSUMMER5,5\n,3.00\n")
	b := writeGz(t, "b.csv.gz", "# comment\nEXISTING,7.50\nAUTUMN,0.99\nBAD,abc\n")

	imp, err := NewImporter(context.Background(), zaptest.NewLogger(t), repo, Options{Workers: 3})
	require.NoError(t, err)
	stats, err := imp.Import(context.Background(), a, b)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Inserted.Load())
	assert.Equal(t, int64(1), stats.Skipped.Load())
	assert.Equal(t, int64(0), stats.Updated.Load())
	assert.Equal(t, int64(2), stats.Invalid.Load())

	assert.Equal(t, map[string]int64{
		"EXISTING": 100,
		"SPRING10": 1000,
		"SUMMER5":  500,
		"AUTUMN":   99,
	}, repo.byCode)
}

func TestImporter_Overwrite(t *testing.T) {
	repo := newMemCoupons(map[string]int64{"EXISTING": 100})
	path := writeGz(t, "a.csv.gz", "EXISTING,2.50\n")

	imp, err := NewImporter(context.Background(), zaptest.NewLogger(t), repo, Options{Workers: 1, Overwrite: true})
	require.NoError(t, err)
	stats, err := imp.Import(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Updated.Load())
	assert.Equal(t, int64(250), repo.byCode["EXISTING"])
}

func TestImporter_DuplicateInImport(t *testing.T) {
	repo := newMemCoupons(nil)
	path := writeGz(t, "a.csv.gz", "TWICE,1.00\nTWICE,2.00\n")

	imp, err := NewImporter(context.Background(), zaptest.NewLogger(t), repo, Options{Workers: 1})
	require.NoError(t, err)
	stats, err := imp.Import(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Inserted.Load())
	assert.Equal(t, int64(1), stats.Skipped.Load())
	assert.Equal(t, int64(100), repo.byCode["TWICE"])
	assert.Equal(t, 1, repo.lookups, "only the filter hit is confirmed")
}

type failingCoupons struct{ *memCoupons }

func (failingCoupons) Upsert(context.Context, *coupon.Coupon) error {
	return errors.New("connection reset")
}

func TestImporter_WriteError(t *testing.T) {
	path := writeGz(t, "a.csv.gz", "ONE,1\nTWO,2\nTHREE,3\n")

	imp, err := NewImporter(context.Background(), zaptest.NewLogger(t), failingCoupons{newMemCoupons(nil)}, Options{Workers: 2})
	require.NoError(t, err)
	_, err = imp.Import(context.Background(), path)
	assert.ErrorContains(t, err, "connection reset")
}

func TestImporter_MissingFile(t *testing.T) {
	imp, err := NewImporter(context.Background(), zaptest.NewLogger(t), newMemCoupons(nil), Options{})
	require.NoError(t, err)
	_, err = imp.Import(context.Background(), filepath.Join(t.TempDir(), "nope.csv.gz"))
	assert.Error(t, err)
}

func TestParseRecord(t *testing.T) {
	c, err := parseRecord([]string{" SAVE ", "12.345"})
	require.NoError(t, err)
	assert.Equal(t, "SAVE", c.Code)
	assert.Equal(t, int64(1235), c.Amount)

	_, err = parseRecord([]string{"ONLY"})
	assert.Error(t, err)
	_, err = parseRecord([]string{"NEG", "-1"})
	assert.Error(t, err)
}
