package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by an Opener when the named table does not exist.
var ErrNotFound = errors.New("input not found")

// Opener opens an input table by its slash-separated name relative to the
// input root, such as "automated/Chile.csv".
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// DirOpener reads input tables from a local directory.
type DirOpener struct {
	Root string
}

// Open implements Opener.
func (d DirOpener) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("open %q: invalid input name", name)
	}
	f, err := os.Open(filepath.Join(d.Root, filepath.FromSlash(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}
