package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const localPrefix = "/uploads/"

// LocalStore keeps media on disk under root and hands out "/uploads/<name>" refs.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Save(ctx context.Context, data []byte) (string, error) {
	kind, err := Detect(data)
	if err != nil {
		return "", err
	}
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	name := id + "." + kind.Extension
	if err := os.WriteFile(filepath.Join(s.root, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write media: %w", err)
	}
	return localPrefix + name, nil
}

func (s *LocalStore) Resolve(ctx context.Context, ref string) (*Resolved, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, ref)
	}

	res := &Resolved{Ref: ref, Path: path}
	if kind, err := filetype.MatchFile(path); err == nil {
		res.MIME = kind.MIME.Value
	}
	return res, nil
}

func (s *LocalStore) Remove(ctx context.Context, ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) path(ref string) (string, error) {
	name := filepath.Base(strings.TrimPrefix(ref, localPrefix))
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("%w: empty reference", ErrNotFound)
	}
	return filepath.Join(s.root, name), nil
}
