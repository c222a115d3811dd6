// Package gcs publishes the output directory to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/couchcryptid/vaccination-data-etl/internal/config"
	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

const maxConcurrentUploads = 4

// object describes one upload.
type object struct {
	Name        string
	ContentType string
	Metadata    map[string]string
}

// uploader stores one object. The bucket client implements it for GCS.
type uploader interface {
	Upload(ctx context.Context, obj object, r io.Reader) error
}

type bucketUploader struct {
	bucket *storage.BucketHandle
}

func (b bucketUploader) Upload(ctx context.Context, obj object, r io.Reader) error {
	w := b.bucket.Object(obj.Name).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.CacheControl = "no-cache, max-age=0"
	w.Metadata = obj.Metadata
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Publisher uploads every file under the output directory. It implements
// pipeline.Loader and must run after the file writer.
type Publisher struct {
	client   *storage.Client
	uploader uploader
	dir      string
	prefix   string
	logger   *slog.Logger
}

// NewPublisher creates a storage client for the configured bucket. Without a
// credentials file the client uses application default credentials.
func NewPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Publisher, error) {
	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		if _, err := os.Stat(cfg.GCSCredentialsFile); err != nil {
			return nil, fmt.Errorf("gcs credentials file: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Publisher{
		client:   client,
		uploader: bucketUploader{bucket: client.Bucket(cfg.GCSBucket)},
		dir:      cfg.OutputDir,
		prefix:   cfg.GCSPrefix,
		logger:   logger,
	}, nil
}

// Name implements pipeline.Loader.
func (p *Publisher) Name() string { return "gcs" }

// Load uploads the output directory under the configured prefix, keeping the
// relative layout. Objects carry the run ID as metadata.
func (p *Publisher) Load(ctx context.Context, ds domain.Dataset) error {
	files, err := p.files()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)
	for _, rel := range files {
		g.Go(func() error {
			return p.upload(ctx, rel, ds)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	p.logger.Info("output published", "objects", len(files), "prefix", p.prefix)
	return nil
}

func (p *Publisher) upload(ctx context.Context, rel string, ds domain.Dataset) error {
	f, err := os.Open(filepath.Join(p.dir, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("open %s: %w", rel, err)
	}
	defer f.Close()

	obj := object{
		Name:        ObjectName(p.prefix, rel),
		ContentType: contentType(rel),
		Metadata:    map[string]string{"run_id": ds.RunID},
	}
	if err := p.uploader.Upload(ctx, obj, f); err != nil {
		return fmt.Errorf("upload %s: %w", obj.Name, err)
	}
	p.logger.Debug("uploaded object", "object", obj.Name)
	return nil
}

// files lists the output files as slash-separated paths relative to the
// output directory, skipping temporary files.
func (p *Publisher) files() ([]string, error) {
	var out []string
	err := filepath.WalkDir(p.dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(p.dir, file)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list output files: %w", err)
	}
	return out, nil
}

// Close releases the storage client.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// ObjectName joins prefix and a relative output path into an object name.
func ObjectName(prefix, rel string) string {
	return path.Join(strings.Trim(prefix, "/"), rel)
}

func contentType(name string) string {
	switch ext := path.Ext(name); ext {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}
