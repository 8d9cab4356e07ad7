// Package storage reads and writes run inputs and outputs through afs, so a
// workload spec or summary can live on the local disk, in memory (mem://) or
// on any backend afs supports.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

var fs = afs.New()

// URL turns a plain filesystem path into a file:// URL. Anything that already
// carries a scheme is returned as is.
func URL(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("empty location")
	}
	if strings.Contains(location, "://") {
		return location, nil
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Read downloads the whole object at location.
func Read(ctx context.Context, location string) ([]byte, error) {
	u, err := URL(location)
	if err != nil {
		return nil, err
	}
	exists, err := fs.Exists(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", location, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", location, ErrNotFound)
	}
	data, err := fs.DownloadWithURL(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", location, err)
	}
	return data, nil
}

// Write replaces the object at location with data.
func Write(ctx context.Context, location string, data []byte) error {
	u, err := URL(location)
	if err != nil {
		return err
	}
	if err := fs.Upload(ctx, u, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", location, err)
	}
	return nil
}
