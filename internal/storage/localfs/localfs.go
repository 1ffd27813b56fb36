// Package localfs stores artifacts as plain files under a root directory.
package localfs

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

	"waveconv/entity"
)

// Store -.
type Store struct {
	root string
}

var _ entity.ArtifactStore = (*Store)(nil)

// New creates root when it does not exist.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("localfs - New - os.MkdirAll: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("localfs - New - filepath.Abs: %w", err)
	}
	return &Store{root: abs}, nil
}

// resolve maps a key to a path below root. Keys are slash separated and
// relative; anything escaping root is rejected.
func (s *Store) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	clean := path.Clean(key)
	if clean != strings.TrimSuffix(key, "/") || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes to a temp file next to the target and renames it into place.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, _ string) (entity.StoredRef, error) {
	p, err := s.resolve(key)
	if err != nil {
		return entity.StoredRef{}, err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return entity.StoredRef{}, fmt.Errorf("localfs - Put - os.MkdirAll: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return entity.StoredRef{}, fmt.Errorf("localfs - Put - os.CreateTemp: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		tmp.Close()
		return entity.StoredRef{}, fmt.Errorf("localfs - Put - io.Copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return entity.StoredRef{}, fmt.Errorf("localfs - Put - Close: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return entity.StoredRef{}, fmt.Errorf("localfs - Put - os.Rename: %w", err)
	}

	return entity.StoredRef{Key: key, Size: n}, nil
}

func (s *Store) Get(_ context.Context, key string) (*entity.Artifact, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, entity.ErrNotFound
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("localfs - Get - os.Open: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("localfs - Get - Stat: %w", err)
	}
	if st.IsDir() {
		f.Close()
		return nil, entity.ErrNotFound
	}
	return &entity.Artifact{Body: f, Size: st.Size(), ModTime: st.ModTime()}, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("localfs - Delete - os.Remove: %w", err)
	}
	return nil
}

// List returns the files below prefix, which must name a directory ("uploads/").
func (s *Store) List(_ context.Context, prefix string) ([]entity.ArtifactInfo, error) {
	dir := s.root
	if prefix != "" {
		p, err := s.resolve(prefix)
		if err != nil {
			return nil, err
		}
		dir = p
	}

	var out []entity.ArtifactInfo
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			// removed while walking
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		out = append(out, entity.ArtifactInfo{
			Key:     filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("localfs - List - filepath.WalkDir: %w", err)
	}
	return out, nil
}

// PublicURL is always empty; files are served through the download route.
func (s *Store) PublicURL(context.Context, string) (string, error) {
	return "", nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
