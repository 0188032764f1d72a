package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStore writes images under a media root on the local disk. The
// router serves the root back at the media base URL.
type FSStore struct {
	root    string
	baseURL string
}

func NewFSStore(root, baseURL string) *FSStore {
	return &FSStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *FSStore) Save(_ context.Context, objectPath string, r io.Reader, _ int64, _ string) error {
	full := filepath.Join(s.root, filepath.FromSlash(objectPath))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	f, err := os.Create(full)

	if err != nil {
		return err
	}

	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return err
	}

	return f.Sync()
}

func (s *FSStore) Delete(_ context.Context, objectPath string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(objectPath)))

	if os.IsNotExist(err) {
		return nil
	}

	return err
}

func (s *FSStore) URL(objectPath string) string {
	return s.baseURL + "/" + objectPath
}
