package storage

import (
	"context"
	"fmt"
	"io"
)

// Object is a blob to be stored under Key.
type Object struct {
	Key         string
	Body        io.Reader
	Size        int64 // -1 when unknown
	ContentType string
}

// Store keeps chat pictures. Keys are slash separated; a prefix ending in
// "/" groups every object of one owner.
type Store interface {
	Put(ctx context.Context, obj Object) error
	Has(ctx context.Context, key string) (bool, error)
	// Purge removes every object under prefix and reports how many went.
	Purge(ctx context.Context, prefix string) (int, error)
	// Link returns the URL clients fetch the object from.
	Link(ctx context.Context, key string) (string, error)
}

type Config struct {
	Driver string     `mapstructure:"driver"`
	Disk   DiskConfig `mapstructure:"local"`
	S3     S3Config   `mapstructure:"s3"`
}

func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewDiskStore(cfg.Disk)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	}
	return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
}
