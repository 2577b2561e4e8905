package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/jimlawless/whereami"
)

// ArtifactStore хранит объекты артефакта в каталоге на диске. Ключи - пути через "/".
type ArtifactStore struct {
	root string
}

func NewArtifactStore(root string) (*ArtifactStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &ArtifactStore{root: abs}, nil
}

func (s *ArtifactStore) Root() string {
	return s.root
}

// Get открывает объект. Отсутствующий файл даёт e.ErrArtifactNotFound.
func (s *ArtifactStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, _, err := s.Open(ctx, key)
	return rc, err
}

// Open открывает объект и возвращает его размер.
func (s *ArtifactStore) Open(_ context.Context, key string) (io.ReadCloser, int64, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, 0, notFound(key, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%s is a directory: %w", key, e.ErrArtifactNotFound)
	}

	return f, info.Size(), nil
}

// Put атомарно записывает объект: сначала во временный файл, затем rename.
func (s *ArtifactStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if err := tmp.Close(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := os.Rename(tmp.Name(), p); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (s *ArtifactStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return !info.IsDir(), nil
}

// Delete удаляет объект; отсутствие объекта ошибкой не считается.
func (s *ArtifactStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// List возвращает ключи всех файлов под корнем в лексикографическом порядке.
func (s *ArtifactStore) List(ctx context.Context) ([]string, error) {
	var keys []string

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || d.Name()[0] == '.' {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, notFound(s.root, err)
	}

	slices.Sort(keys)

	return keys, nil
}

// path переводит ключ в путь внутри корня, не позволяя выйти за его пределы.
func (s *ArtifactStore) path(key string) (string, error) {
	local := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(local) {
		return "", fmt.Errorf("%q: %w", key, e.ErrInvalidArtifactPath)
	}

	return filepath.Join(s.root, local), nil
}

func notFound(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, e.ErrArtifactNotFound)
	}

	return e.Wrap(whereami.WhereAmI(), err)
}
