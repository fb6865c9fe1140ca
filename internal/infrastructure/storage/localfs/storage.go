package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage keeps uploaded files on the local filesystem. Private copies
// go into a separate subtree so they can be excluded from business
// exports and backups wholesale.
type Storage struct {
	basePath string
}

const privateSubdir = "private"

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(basePath, privateSubdir), 0o700); err != nil {
		return nil, fmt.Errorf("create private storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	return writeFile(filepath.Join(s.basePath, key), data)
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.basePath, key))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *Storage) SavePrivate(_ context.Context, key string, data io.Reader) error {
	return writeFile(filepath.Join(s.basePath, privateSubdir, key), data)
}

func writeFile(path string, data io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}
