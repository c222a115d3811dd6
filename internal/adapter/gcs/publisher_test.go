package gcs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string]object
	bodies  map[string]string
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, obj object, r io.Reader) error {
	if f.err != nil {
		return f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string]object)
		f.bodies = make(map[string]string)
	}
	f.objects[obj.Name] = obj
	f.bodies[obj.Name] = string(data)
	return nil
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestPublisher(dir string, up uploader) *Publisher {
	return &Publisher{
		uploader: up,
		dir:      dir,
		prefix:   "vaccinations/",
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestPublisher_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vaccinations.csv", "location,date\n")
	writeFile(t, dir, "vaccinations.json", "[]\n")
	writeFile(t, dir, "report.md", "# run\n")
	writeFile(t, dir, "country_data/United Kingdom.csv", "location\n")
	writeFile(t, dir, ".tmp-123", "partial")

	up := &fakeUploader{}
	p := newTestPublisher(dir, up)
	assert.Equal(t, "gcs", p.Name())

	require.NoError(t, p.Load(context.Background(), domain.Dataset{RunID: "run-9"}))

	names := make([]string, 0, len(up.objects))
	for name := range up.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"vaccinations/country_data/United Kingdom.csv",
		"vaccinations/report.md",
		"vaccinations/vaccinations.csv",
		"vaccinations/vaccinations.json",
	}, names)

	csvObj := up.objects["vaccinations/vaccinations.csv"]
	assert.Equal(t, "text/csv; charset=utf-8", csvObj.ContentType)
	assert.Equal(t, "run-9", csvObj.Metadata["run_id"])
	assert.Equal(t, "location,date\n", up.bodies["vaccinations/vaccinations.csv"])
	assert.Equal(t, "application/json", up.objects["vaccinations/vaccinations.json"].ContentType)
}

func TestPublisher_Load_UploadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vaccinations.csv", "location,date\n")
	p := newTestPublisher(dir, &fakeUploader{err: errors.New("permission denied")})

	err := p.Load(context.Background(), domain.Dataset{RunID: "run-9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload vaccinations/vaccinations.csv: permission denied")
}

func TestPublisher_Load_MissingDir(t *testing.T) {
	p := newTestPublisher(filepath.Join(t.TempDir(), "absent"), &fakeUploader{})

	err := p.Load(context.Background(), domain.Dataset{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list output files")
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		prefix, rel, want string
	}{
		{"vaccinations", "report.md", "vaccinations/report.md"},
		{"/public/data/", "country_data/Chile.csv", "public/data/country_data/Chile.csv"},
		{"", "locations.csv", "locations.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectName(tt.prefix, tt.rel))
		})
	}
}
