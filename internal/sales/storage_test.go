package sales

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage_SaveThenLoad(t *testing.T) {
	ctx := context.Background()
	store := NewFileStorage(filepath.Join(t.TempDir(), "data", "raw"))

	ds, err := Generate(smallOptions(9))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, ds))

	for _, name := range DatasetFiles {
		info, err := os.Stat(filepath.Join(store.Dir(), name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, ds, loaded)
	assert.NoError(t, Validate(loaded))
}

func TestFileStorage_RerunReplacesDataset(t *testing.T) {
	ctx := context.Background()
	store := NewFileStorage(t.TempDir())

	for _, seed := range []uint64{1, 2, 2} {
		ds, err := Generate(smallOptions(seed))
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, ds))

		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, seed, loaded.Manifest.Seed)
		assert.NotEmpty(t, loaded.Records)
	}

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, len(DatasetFiles), "no temp files should be left behind")
}

func TestFileStorage_LoadMissing(t *testing.T) {
	_, err := NewFileStorage(t.TempDir()).Load(context.Background())
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestFileStorage_LoadMalformed(t *testing.T) {
	ctx := context.Background()
	store := NewFileStorage(t.TempDir())

	ds, err := Generate(smallOptions(4))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, ds))

	path := filepath.Join(store.Dir(), SalesFile)
	require.NoError(t, os.WriteFile(path, []byte("sale_id,order_id\nSALE_1,ORD_1\n"), 0o644))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrMalformedCSV)
}

func TestFileStorage_RejectsEmptyDataset(t *testing.T) {
	err := NewFileStorage(t.TempDir()).Save(context.Background(), &Dataset{})
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestReadRecords_BadNumber(t *testing.T) {
	data := "order_id,sale_id,customer_id,customer_name,category,product_id,product_name,order_date,quantity,unit_price,discount_rate,total_amount\n" +
		"ORD_000001,SALE_000001_1,CUST_00001,Ann Lee,Books,PROD_00001,Atlas,2025-01-02,two,10,0,20\n"

	_, err := ReadRecords([]byte(data))
	require.ErrorIs(t, err, ErrMalformedCSV)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStorage()

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	ds, err := Generate(smallOptions(8))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, ds))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, ds, loaded)
}
