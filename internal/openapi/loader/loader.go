package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// Loader reads catalogue documents from disk or from an fs.FS.
type Loader struct {
	fs fs.FS
}

// New returns a Loader. files backs SourceKindFS sources and may be nil when
// only file sources are used.
func New(files fs.FS) *Loader {
	return &Loader{fs: files}
}

// Load fetches the document behind src.
func (l *Loader) Load(ctx context.Context, src schema.Source) (schema.Document, error) {
	if src == nil {
		return schema.Document{}, errors.New("catalogue loader: source is nil")
	}
	if err := ctx.Err(); err != nil {
		return schema.Document{}, err
	}

	var (
		data []byte
		err  error
	)
	switch src.Kind() {
	case schema.SourceKindFile:
		data, err = loadFile(src.Location())
	case schema.SourceKindFS:
		data, err = loadFromFS(l.fs, src.Location())
	default:
		err = fmt.Errorf("catalogue loader: unsupported source kind %q", src.Kind())
	}
	if err != nil {
		return schema.Document{}, err
	}
	return schema.NewDocument(src, data)
}

func loadFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("catalogue loader: file path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

func loadFromFS(files fs.FS, name string) ([]byte, error) {
	if files == nil {
		return nil, errors.New("catalogue loader: filesystem is not configured")
	}
	if name == "" {
		return nil, errors.New("catalogue loader: fs path is required")
	}
	return fs.ReadFile(files, name)
}
