package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type DiskConfig struct {
	BasePath  string `mapstructure:"base_path"`
	PublicURL string `mapstructure:"public_url"`
}

// DiskStore keeps objects as files below a root directory and links them
// under a URL prefix the HTTP server mounts.
type DiskStore struct {
	root  string
	mount string
}

func NewDiskStore(cfg DiskConfig) (*DiskStore, error) {
	base := cfg.BasePath
	if base == "" {
		base = "./data/media"
	}
	root, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %s: %w", base, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", root, err)
	}

	mount := strings.TrimRight(cfg.PublicURL, "/")
	if mount == "" {
		mount = "/media"
	}
	return &DiskStore{root: root, mount: mount}, nil
}

// Root is the directory objects are written below.
func (d *DiskStore) Root() string { return d.root }

// Mount is the URL prefix links start with.
func (d *DiskStore) Mount() string { return d.mount }

// resolve maps a key to a file path. Cleaning against "/" first keeps ".."
// segments from climbing out of the root.
func (d *DiskStore) resolve(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(path.Clean("/"+key)))
}

func (d *DiskStore) Put(_ context.Context, obj Object) error {
	dst := d.resolve(obj.Key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for %s: %w", obj.Key, err)
	}

	// Write to a sibling temp file and rename so readers never see a partial
	// picture.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: temp file for %s: %w", obj.Key, err)
	}
	_, copyErr := io.Copy(tmp, obj.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: write %s: %w", obj.Key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: commit %s: %w", obj.Key, err)
	}
	return nil
}

func (d *DiskStore) Has(_ context.Context, key string) (bool, error) {
	info, err := os.Stat(d.resolve(key))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("storage: stat %s: %w", key, err)
	}
	return !info.IsDir(), nil
}

func (d *DiskStore) Purge(_ context.Context, prefix string) (int, error) {
	dir := d.resolve(prefix)
	if dir == d.root {
		return 0, errors.New("storage: refusing to purge the root")
	}

	removed := 0
	err := filepath.WalkDir(dir, func(_ string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() {
			removed++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: scan %s: %w", prefix, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("storage: purge %s: %w", prefix, err)
	}
	return removed, nil
}

func (d *DiskStore) Link(_ context.Context, key string) (string, error) {
	return d.mount + path.Clean("/"+key), nil
}
