package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/koki-187/200-sub000/internal/raster"
)

// Job artifacts are stored under jobs/<job_id>/ with an index prefix so a
// recovery worker can replay them in submission order after a restart.

func jobDir(jobID string) string {
	return "jobs/" + jobID
}

// WriteJobFiles persists a job's prepared artifacts for later replay.
func (s *FileStore) WriteJobFiles(ctx context.Context, jobID string, files []raster.File) error {
	for i, f := range files {
		key := fmt.Sprintf("%s/%03d-%s", jobDir(jobID), i, filepath.Base(f.Name))
		if _, err := s.Write(ctx, key, f.Data); err != nil {
			return err
		}
	}
	return nil
}

// ReadJobFiles loads a job's stored artifacts in submission order.
func (s *FileStore) ReadJobFiles(ctx context.Context, jobID string) ([]raster.File, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.basePath, filepath.FromSlash(jobDir(jobID)))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: read job dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	files := make([]raster.File, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("storage: read job file: %w", err)
		}
		original := name
		if idx := strings.Index(name, "-"); idx > 0 {
			original = name[idx+1:]
		}
		files = append(files, raster.File{
			Name: original,
			MIME: mimeForExtension(original),
			Data: data,
		})
	}
	return files, nil
}

// RemoveJobFiles drops a job's stored artifacts once the job is terminal.
func (s *FileStore) RemoveJobFiles(ctx context.Context, jobID string) error {
	if s == nil {
		return errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.basePath, filepath.FromSlash(jobDir(jobID))))
}

func mimeForExtension(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
