package sales

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// ErrDatasetNotFound is returned when no dataset has been stored yet.
var ErrDatasetNotFound = errors.New("dataset not found")

// ErrEmptyDataset is returned when trying to store a dataset without records.
var ErrEmptyDataset = errors.New("empty dataset")

// Storage is the main interface for our dataset storage layer.
type Storage interface {
	Save(ctx context.Context, ds *Dataset) error
	Load(ctx context.Context) (*Dataset, error)
}

// LocalStorage keeps the last saved dataset in memory.
type LocalStorage struct {
	ds *Dataset
}

// NewLocalStorage instantiates an empty LocalStorage.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

// Save returns ErrEmptyDataset if the dataset has no records.
func (l *LocalStorage) Save(_ context.Context, ds *Dataset) error {
	if ds == nil || len(ds.Records) == 0 {
		return ErrEmptyDataset
	}
	l.ds = ds
	return nil
}

// Load returns ErrDatasetNotFound until something was saved.
func (l *LocalStorage) Load(_ context.Context) (*Dataset, error) {
	if l.ds == nil {
		return nil, ErrDatasetNotFound
	}
	return l.ds, nil
}

// FileStorage stores a dataset as a directory of CSV files plus a manifest.
type FileStorage struct {
	dir string
}

// NewFileStorage returns a FileStorage rooted at dir. The directory is
// created on first save.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

// Dir returns the directory the dataset lives in.
func (f *FileStorage) Dir() string {
	return f.dir
}

// Save writes every table through a temp file and an atomic rename, so
// readers always see either the previous or the new version of each file.
// The manifest goes last and marks the dataset complete.
func (f *FileStorage) Save(ctx context.Context, ds *Dataset) error {
	if ds == nil || len(ds.Records) == 0 {
		return ErrEmptyDataset
	}
	files, err := EncodeTables(ds)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", f.dir, err)
	}

	for _, name := range DatasetFiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(f.dir, name)
		if err := renameio.WriteFile(path, files[name], 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

// Load reads every file of the dataset. A missing file yields ErrDatasetNotFound.
// Files are renamed one at a time, so an interrupted save can leave tables
// from two runs side by side; Service.Load rejects those through Validate.
func (f *FileStorage) Load(ctx context.Context) (*Dataset, error) {
	files := make(map[string][]byte, len(DatasetFiles))
	for _, name := range DatasetFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(f.dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		files[name] = data
	}
	return DecodeTables(files)
}
