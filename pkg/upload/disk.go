package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tongue/fotbroms/pkg/dom"
)

const (
	metaSuffix = ".meta"
	tempPrefix = ".upload-"
)

// DiskStore stores uploads on the local filesystem as <dir>/<sha256><ext>
// with a JSON sidecar holding the original name and type.
type DiskStore struct {
	dir     string
	prefix  string
	maxSize int64
}

type diskMeta struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewDiskStore creates a new DiskStore.
//
// Parameters:
//   - dir: Directory to store files in
//   - maxSize: Maximum file size in bytes (0 = no limit)
//
// Stored paths are prefixed with the directory's base name, so a store in
// ./uploads reports "uploads/<sha256>.png".
func NewDiskStore(dir string, maxSize int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	prefix := ""
	if base := filepath.Base(filepath.Clean(dir)); base != "." && base != string(filepath.Separator) {
		prefix = base + "/"
	}
	return &DiskStore{dir: dir, prefix: prefix, maxSize: maxSize}, nil
}

// WithPrefix sets the prefix of reported paths.
func (s *DiskStore) WithPrefix(prefix string) *DiskStore {
	s.prefix = prefix
	return s
}

// Dir returns the storage directory.
func (s *DiskStore) Dir() string { return s.dir }

// Save implements Store.
func (s *DiskStore) Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (*File, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return nil, ErrTooLarge
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after the rename

	reader := io.Reader(ctxReader{ctx: ctx, r: r})
	if s.maxSize > 0 {
		reader = io.LimitReader(reader, s.maxSize+1) // +1 to detect overflow
	}

	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, h), reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	if s.maxSize > 0 && written > s.maxSize {
		return nil, ErrTooLarge
	}

	name := hex.EncodeToString(h.Sum(nil)) + storedExt(filename)
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		return nil, err
	}

	meta := &diskMeta{
		Filename:    filename,
		ContentType: contentType,
		Size:        written,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.saveMeta(name, meta); err != nil {
		return nil, err
	}

	return &File{
		Path:        s.prefix + name,
		Filename:    filename,
		ContentType: contentType,
		Size:        written,
		StoredAt:    meta.CreatedAt,
	}, nil
}

// Open implements Store.
func (s *DiskStore) Open(_ context.Context, path string) (*File, error) {
	name, ok := s.name(path)
	if !ok {
		return nil, ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	meta, err := s.loadMeta(name)
	if err != nil {
		// Files copied in without a sidecar are still served.
		meta = &diskMeta{Filename: name, ContentType: dom.TypeByName(name), CreatedAt: info.ModTime()}
	}

	return &File{
		Path:        path,
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		Size:        info.Size(),
		StoredAt:    meta.CreatedAt,
		Reader:      f,
	}, nil
}

// Cleanup implements Store. Abandoned temp files are removed too.
func (s *DiskStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, metaSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			continue
		}
		os.Remove(s.metaPath(name))
		if !strings.HasPrefix(name, tempPrefix) {
			removed++
		}
	}
	return removed, nil
}

// name maps a reported path to a file name in dir.
func (s *DiskStore) name(path string) (string, bool) {
	if !strings.HasPrefix(path, s.prefix) {
		return "", false
	}
	name := strings.TrimPrefix(path, s.prefix)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") || strings.HasSuffix(name, metaSuffix) {
		return "", false
	}
	return name, true
}

func (s *DiskStore) metaPath(name string) string {
	return filepath.Join(s.dir, name+metaSuffix)
}

func (s *DiskStore) saveMeta(name string, meta *diskMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(name), data, 0644)
}

func (s *DiskStore) loadMeta(name string) (*diskMeta, error) {
	data, err := os.ReadFile(s.metaPath(name))
	if err != nil {
		return nil, err
	}
	var meta diskMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
